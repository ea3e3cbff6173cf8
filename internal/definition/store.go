package definition

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/annel0/blockdisguise/internal/logging"
)

type snapshot struct {
	defs map[string]*Definition
	ids  []string
}

func newSnapshot(defs map[string]*Definition) *snapshot {
	ids := make([]string, 0, len(defs))
	for id := range defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return &snapshot{defs: defs, ids: ids}
}

// Store набор определений. Снимок заменяется целиком, читатели никогда
// не видят частично обновлённый набор.
type Store struct {
	current atomic.Pointer[snapshot]
	logger  *logging.Logger
}

// NewStore создаёт пустое хранилище определений
func NewStore() *Store {
	s := &Store{logger: logging.GetDefinitionLogger()}
	s.current.Store(newSnapshot(map[string]*Definition{}))
	return s
}

// Load читает все *.yml и *.yaml файлы каталога и подменяет снимок.
// Файл с ошибкой разбора пропускается, при повторе id остаётся первое.
func (s *Store) Load(dir string) (int, error) {
	defs := make(map[string]*Definition)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yml" && ext != ".yaml" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Error("не удалось прочитать %s: %v", path, err)
			return nil
		}

		loaded, err := LoadDocument(data, path)
		if err != nil {
			s.logger.Error("ошибка в файле определений %s: %v", path, err)
		}

		ids := make([]string, 0, len(loaded))
		for id := range loaded {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if prev, exists := defs[id]; exists {
				s.logger.Warn("оверлей %q из %s уже объявлен в %s, пропущен", id, path, prev.Source)
				continue
			}
			defs[id] = loaded[id]
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("обход каталога определений %s: %w", dir, err)
	}

	s.Replace(defs)
	s.logger.Info("загружено определений оверлеев: %d из %s", len(defs), dir)
	return len(defs), nil
}

// Replace атомарно подменяет набор определений
func (s *Store) Replace(defs map[string]*Definition) {
	copied := make(map[string]*Definition, len(defs))
	for id, def := range defs {
		copied[id] = def
	}
	s.current.Store(newSnapshot(copied))
}

// Get возвращает определение по id
func (s *Store) Get(id string) (*Definition, bool) {
	def, ok := s.current.Load().defs[id]
	return def, ok
}

// Lookup как Get, но возвращает UnknownOverlayTypeError
func (s *Store) Lookup(id string) (*Definition, error) {
	if def, ok := s.Get(id); ok {
		return def, nil
	}
	return nil, &UnknownOverlayTypeError{ID: id}
}

// IDs отсортированный список id
func (s *Store) IDs() []string {
	ids := s.current.Load().ids
	return append([]string(nil), ids...)
}

// Source файл, из которого загружено определение
func (s *Store) Source(id string) string {
	if def, ok := s.Get(id); ok {
		return def.Source
	}
	return ""
}

// Len количество определений
func (s *Store) Len() int {
	return len(s.current.Load().ids)
}
