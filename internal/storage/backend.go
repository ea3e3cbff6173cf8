package storage

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound записи с таким ключом нет
var ErrNotFound = errors.New("запись не найдена")

// Backend долговременное хранилище закодированных записей по строковому ключу
type Backend interface {
	// Load возвращает ErrNotFound, если ключа нет
	Load(key string) ([]byte, error)
	Store(key string, data []byte) error
	// Delete удаляет ключ; отсутствие ключа не ошибка
	Delete(key string) error
	// List ключи с префиксом в порядке возрастания
	List(prefix string) ([]string, error)
	Close() error
}

// MemoryBackend хранилище в памяти для тестов
type MemoryBackend struct {
	mu     sync.RWMutex
	data   map[string][]byte
	writes int
	fail   error
}

// NewMemoryBackend создаёт пустое хранилище в памяти
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

// FailWith заставляет Store и Delete возвращать err (nil отключает)
func (m *MemoryBackend) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Writes количество успешных Store и Delete
func (m *MemoryBackend) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Has проверяет наличие ключа
func (m *MemoryBackend) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok
}

func (m *MemoryBackend) Load(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryBackend) Store(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.data[key] = append([]byte(nil), data...)
	m.writes++
	return nil
}

func (m *MemoryBackend) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	delete(m.data, key)
	m.writes++
	return nil
}

func (m *MemoryBackend) List(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryBackend) Close() error {
	return nil
}
