// Package storage хранит журнал оверлеев: по записи на чанк, внутри
// секции по 16 блоков высоты и записи по локальным координатам.
package storage

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/annel0/blockdisguise/internal/logging"
	"github.com/annel0/blockdisguise/internal/world"
)

// Move перенос записи из From в To
type Move struct {
	From world.Location
	To   world.Location
}

// Options параметры Store
type Options struct {
	Compression bool
	// RecomputeWorlds миры, где маскировка пересчитывается при каждой отправке
	RecomputeWorlds []string
	// Random источник метки перезагрузки; nil означает rand.Float64
	Random func() float64
}

// Store кэширует записи чанков и единолично пишет их в Backend.
// Мьютекс защищает только кэш и метку; сериализация по чанку на стороне вызывающего.
type Store struct {
	backend   Backend
	codec     *RecordCodec
	logger    *logging.Logger
	random    func() float64
	recompute map[string]struct{}

	mu    sync.Mutex
	cache map[ChunkKey]*ChunkRecord
	token float64
}

// NewStore создаёт Store поверх backend
func NewStore(backend Backend, opts Options) (*Store, error) {
	codec, err := NewRecordCodec(opts.Compression)
	if err != nil {
		return nil, err
	}

	random := opts.Random
	if random == nil {
		random = rand.Float64
	}

	recompute := make(map[string]struct{}, len(opts.RecomputeWorlds))
	for _, w := range opts.RecomputeWorlds {
		recompute[w] = struct{}{}
	}

	return &Store{
		backend:   backend,
		codec:     codec,
		logger:    logging.GetStorageLogger(),
		random:    random,
		recompute: recompute,
		cache:     make(map[ChunkKey]*ChunkRecord),
		token:     random(),
	}, nil
}

// Close закрывает backend
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[ChunkKey]*ChunkRecord)
	s.codec.Close()
	return s.backend.Close()
}

// Get возвращает запись чанка, загружая её при первом обращении.
// Отсутствующая запись даёт пустую, которая не сохраняется и не кэшируется,
// пока в неё что-то не записано. Пустая запись в хранилище удаляется при загрузке.
func (s *Store) Get(key ChunkKey) (*ChunkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(key)
}

func (s *Store) get(key ChunkKey) (*ChunkRecord, error) {
	if rec, ok := s.cache[key]; ok {
		return rec, nil
	}

	data, err := s.backend.Load(key.String())
	if errors.Is(err, ErrNotFound) {
		return NewChunkRecord(key), nil
	}
	if err != nil {
		s.logger.Error("не удалось загрузить запись %s: %v", key, err)
		return nil, fmt.Errorf("загрузка записи %s: %w", key, err)
	}

	rec, err := s.codec.Decode(key, data)
	if err != nil {
		s.logger.Error("повреждённая запись %s: %v", key, err)
		return nil, err
	}
	if rec.IsEmpty() {
		// осталась только метка перезагрузки или всё пропущено при разборе
		s.compact(rec)
		return rec, nil
	}
	s.cache[key] = rec
	return rec, nil
}

// Entry возвращает копию записи в позиции
func (s *Store) Entry(loc world.Location) (Entry, bool, error) {
	rec, err := s.Get(KeyOf(loc))
	if err != nil {
		return Entry{}, false, err
	}
	e, ok := rec.Entry(loc.Pos.SubChunkY(), LocalOf(loc.Pos))
	if !ok {
		return Entry{}, false, nil
	}
	return *e, true, nil
}

// PutEntry записывает запись и сохраняет чанк
func (s *Store) PutEntry(loc world.Location, entry Entry) error {
	rec, err := s.Get(KeyOf(loc))
	if err != nil {
		return err
	}
	e := entry
	rec.Put(loc.Pos.SubChunkY(), LocalOf(loc.Pos), &e)
	return s.Save(rec)
}

// SetDisguised обновляет кэш маскировки существующей записи
func (s *Store) SetDisguised(loc world.Location, text string) error {
	rec, err := s.Get(KeyOf(loc))
	if err != nil {
		return err
	}
	e, ok := rec.Entry(loc.Pos.SubChunkY(), LocalOf(loc.Pos))
	if !ok || e.Disguised == text {
		return nil
	}
	e.Disguised = text
	return s.Save(rec)
}

// RemoveEntry удаляет запись; пустые секции и запись целиком удаляются
func (s *Store) RemoveEntry(loc world.Location) (bool, error) {
	rec, err := s.Get(KeyOf(loc))
	if err != nil {
		return false, err
	}
	if !rec.Remove(loc.Pos.SubChunkY(), LocalOf(loc.Pos)) {
		return false, nil
	}
	return true, s.Save(rec)
}

// MoveEntry переносит запись; без записи в from ничего не делает
func (s *Store) MoveEntry(from, to world.Location) error {
	return s.MoveEntries([]Move{{From: from, To: to}})
}

// MoveEntries переносит пачку записей. Сначала снимаются все источники,
// затем вставляются приёмники, поэтому цепочка сдвигаемых блоков не
// перезаписывает сама себя. Перенос может пересекать границы чанков.
func (s *Store) MoveEntries(moves []Move) error {
	if len(moves) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make(map[ChunkKey]*ChunkRecord)
	for _, m := range moves {
		for _, loc := range []world.Location{m.From, m.To} {
			key := KeyOf(loc)
			if _, ok := touched[key]; ok {
				continue
			}
			rec, err := s.get(key)
			if err != nil {
				return err
			}
			touched[key] = rec
		}
	}

	type pending struct {
		to    world.Location
		entry *Entry
	}
	var moved []pending
	for _, m := range moves {
		rec := touched[KeyOf(m.From)]
		subY, pos := m.From.Pos.SubChunkY(), LocalOf(m.From.Pos)
		e, ok := rec.Entry(subY, pos)
		if !ok {
			continue
		}
		rec.Remove(subY, pos)
		moved = append(moved, pending{to: m.To, entry: e})
	}
	if len(moved) == 0 {
		return nil
	}

	for _, p := range moved {
		touched[KeyOf(p.to)].Put(p.to.Pos.SubChunkY(), LocalOf(p.to.Pos), p.entry)
	}

	keys := make([]ChunkKey, 0, len(touched))
	for key := range touched {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	var errs []error
	for _, key := range keys {
		if err := s.save(touched[key]); err != nil {
			errs = append(errs, err)
		}
	}
	s.logger.Debug("перенесено записей: %d", len(moved))
	return errors.Join(errs...)
}

// Save сжимает запись и сохраняет её; пустая запись удаляется из хранилища.
// При ошибке память не откатывается.
func (s *Store) Save(rec *ChunkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(rec)
}

func (s *Store) save(rec *ChunkRecord) error {
	_, removed, err := s.compact(rec)
	if err != nil || removed {
		return err
	}

	data, err := s.codec.Encode(rec)
	if err != nil {
		s.logger.Error("%v", err)
		return err
	}
	if err := s.backend.Store(rec.Key.String(), data); err != nil {
		s.logger.Error("не удалось сохранить запись %s: %v", rec.Key, err)
		return fmt.Errorf("сохранение записи %s: %w", rec.Key, err)
	}
	s.cache[rec.Key] = rec
	return nil
}

// Compact удаляет пустые секции; запись без единой записи (метка
// перезагрузки не считается) удаляется из хранилища и кэша.
func (s *Store) Compact(rec *ChunkRecord) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compact(rec)
}

func (s *Store) compact(rec *ChunkRecord) (int, bool, error) {
	sections := rec.prune()
	if !rec.IsEmpty() {
		return sections, false, nil
	}

	if err := s.backend.Delete(rec.Key.String()); err != nil {
		s.logger.Error("не удалось удалить пустую запись %s: %v", rec.Key, err)
		return sections, false, fmt.Errorf("удаление записи %s: %w", rec.Key, err)
	}
	delete(s.cache, rec.Key)
	s.logger.Debug("пустая запись %s удалена", rec.Key)
	return sections, true, nil
}

// Token текущая метка перезагрузки
func (s *Store) Token() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Reload сбрасывает кэш и выбирает новую метку, после чего маскировка
// каждого чанка при следующей отправке пересчитывается.
func (s *Store) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[ChunkKey]*ChunkRecord)
	s.token = s.random()
	s.logger.Info("журнал оверлеев перезагружен, новая метка %v", s.token)
}

// NeedsRecompute true если метка записи устарела или мир в списке пересчёта
func (s *Store) NeedsRecompute(rec *ChunkRecord) bool {
	if s.alwaysRecompute(rec.Key.World) {
		return true
	}
	return !rec.HasReloadID || rec.ReloadID != s.Token()
}

// MarkFresh ставит записи текущую метку; для миров из списка пересчёта не ставит
func (s *Store) MarkFresh(rec *ChunkRecord) {
	if s.alwaysRecompute(rec.Key.World) {
		return
	}
	rec.ReloadID, rec.HasReloadID = s.Token(), true
}

func (s *Store) alwaysRecompute(worldName string) bool {
	_, ok := s.recompute[worldName]
	return ok
}

// ChunkKeys ключи всех сохранённых записей мира
func (s *Store) ChunkKeys(worldName string) ([]ChunkKey, error) {
	raw, err := s.backend.List(WorldPrefix(worldName))
	if err != nil {
		return nil, err
	}
	keys := make([]ChunkKey, 0, len(raw))
	for _, k := range raw {
		key, err := ParseChunkKey(k)
		if err != nil {
			s.logger.Warn("пропущен ключ %q: %v", k, err)
			continue
		}
		if key.World == worldName {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// DeleteWorld удаляет все записи мира и возвращает их число
func (s *Store) DeleteWorld(worldName string) (int, error) {
	keys, err := s.ChunkKeys(worldName)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for _, key := range keys {
		if err := s.backend.Delete(key.String()); err != nil {
			return deleted, fmt.Errorf("удаление записи %s: %w", key, err)
		}
		delete(s.cache, key)
		deleted++
	}
	for key := range s.cache {
		if key.World == worldName {
			delete(s.cache, key)
		}
	}

	s.logger.Info("база оверлеев мира %s удалена, записей: %d", worldName, deleted)
	return deleted, nil
}

// CloneWorld заменяет базу мира dst копией базы src. Метки перезагрузки
// у копий сбрасываются, так что маскировка в dst будет пересчитана.
func (s *Store) CloneWorld(src, dst string) (int, error) {
	if src == dst {
		return 0, fmt.Errorf("исходный и целевой мир совпадают: %s", src)
	}
	keys, err := s.ChunkKeys(src)
	if err != nil {
		return 0, err
	}
	if _, err := s.DeleteWorld(dst); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cloned := 0
	for _, key := range keys {
		rec, err := s.get(key)
		if err != nil {
			return cloned, err
		}
		copied := rec.CloneTo(ChunkKey{World: dst, X: key.X, Z: key.Z})
		copied.ReloadID, copied.HasReloadID = 0, false
		if err := s.save(copied); err != nil {
			return cloned, err
		}
		cloned++
	}

	s.logger.Info("база оверлеев мира %s скопирована в %s, записей: %d", src, dst, cloned)
	return cloned, nil
}
