package storage

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"github.com/annel0/blockdisguise/internal/definition"
	"github.com/annel0/blockdisguise/internal/logging"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

const (
	subChunkPrefix = "subChunk"
	reloadIDKey    = "chunk-reload-id"
)

type entryDoc struct {
	ID          string `yaml:"id"`
	SecondBlock bool   `yaml:"secondBlock,omitempty"`
	Disguised   string `yaml:"disguised-block,omitempty"`
}

type recordDoc struct {
	ReloadID  *float64                       `yaml:"chunk-reload-id,omitempty"`
	SubChunks map[string]map[string]entryDoc `yaml:",inline"`
}

// RecordCodec кодирует ChunkRecord в YAML, при необходимости сжимая zstd.
// Сжатые данные распознаются по магическому числу независимо от настройки.
type RecordCodec struct {
	compress bool
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
	logger   *logging.Logger
}

// NewRecordCodec создаёт кодек записей
func NewRecordCodec(compress bool) (*RecordCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("не удалось создать zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("не удалось создать zstd decoder: %w", err)
	}
	return &RecordCodec{compress: compress, encoder: enc, decoder: dec, logger: logging.GetStorageLogger()}, nil
}

// Close освобождает ресурсы zstd
func (c *RecordCodec) Close() {
	c.encoder.Close()
	c.decoder.Close()
}

// Encode сериализует запись
func (c *RecordCodec) Encode(rec *ChunkRecord) ([]byte, error) {
	doc := recordDoc{SubChunks: make(map[string]map[string]entryDoc, len(rec.SubChunks))}
	if rec.HasReloadID {
		id := rec.ReloadID
		doc.ReloadID = &id
	}
	for y, section := range rec.SubChunks {
		if len(section) == 0 {
			continue
		}
		entries := make(map[string]entryDoc, len(section))
		for pos, e := range section {
			entries[pos.String()] = entryDoc{
				ID:          e.ID,
				SecondBlock: e.Slot == definition.Secondary,
				Disguised:   e.Disguised,
			}
		}
		doc.SubChunks[subChunkPrefix+strconv.Itoa(y)] = entries
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации записи %s: %w", rec.Key, err)
	}
	if c.compress {
		return c.encoder.EncodeAll(data, nil), nil
	}
	return data, nil
}

// Decode восстанавливает запись. Ошибка возвращается только если данные
// не читаются целиком; неизвестная секция, некорректный ключ позиции или
// запись без id пропускаются с предупреждением.
func (c *RecordCodec) Decode(key ChunkKey, data []byte) (*ChunkRecord, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		plain, err := c.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("ошибка распаковки записи %s: %w", key, err)
		}
		data = plain
	}

	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("ошибка десериализации записи %s: %w", key, err)
	}

	rec := NewChunkRecord(key)
	for name, node := range doc {
		if name == reloadIDKey {
			var id float64
			if err := node.Decode(&id); err != nil {
				c.logger.Warn("запись %s: некорректная метка перезагрузки: %v", key, err)
				continue
			}
			rec.ReloadID, rec.HasReloadID = id, true
			continue
		}

		y, err := parseSectionName(name)
		if err != nil {
			c.logger.Warn("запись %s: секция пропущена: %v", key, err)
			continue
		}
		var entries map[string]yaml.Node
		if err := node.Decode(&entries); err != nil {
			c.logger.Warn("запись %s: секция %q пропущена: %v", key, name, err)
			continue
		}

		for posKey, value := range entries {
			var e entryDoc
			if err := value.Decode(&e); err != nil {
				c.logger.Warn("запись %s: %s/%s пропущена: %v", key, name, posKey, err)
				continue
			}
			if e.ID == "" {
				continue
			}
			pos, err := ParseLocalPos(posKey)
			if err != nil {
				c.logger.Warn("запись %s: %s пропущена: %v", key, name, err)
				continue
			}
			rec.Put(y, pos, &Entry{
				ID:        e.ID,
				Slot:      definition.SlotOf(e.SecondBlock),
				Disguised: e.Disguised,
			})
		}
	}

	return rec, nil
}

func parseSectionName(name string) (int, error) {
	if !strings.HasPrefix(name, subChunkPrefix) {
		return 0, fmt.Errorf("неизвестная секция %q", name)
	}
	y, err := strconv.Atoi(strings.TrimPrefix(name, subChunkPrefix))
	if err != nil {
		return 0, fmt.Errorf("секция %q: %w", name, err)
	}
	return y, nil
}
