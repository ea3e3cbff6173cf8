package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v3"
)

// BadgerBackend хранилище записей оверлеев в BadgerDB
type BadgerBackend struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerBackend открывает базу в <dataPath>/overlays
func NewBadgerBackend(dataPath string) (*BadgerBackend, error) {
	dbPath := filepath.Join(dataPath, "overlays")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &BadgerBackend{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

// Close закрывает базу
func (b *BadgerBackend) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if !b.isReady {
		return nil
	}

	b.isReady = false
	return b.db.Close()
}

// Load читает запись по ключу
func (b *BadgerBackend) Load(key string) ([]byte, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	if !b.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	return data, nil
}

// Store сохраняет запись
func (b *BadgerBackend) Store(key string, data []byte) error {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	if !b.isReady {
		return fmt.Errorf("хранилище не готово")
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}

	return nil
}

// Delete удаляет запись
func (b *BadgerBackend) Delete(key string) error {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	if !b.isReady {
		return fmt.Errorf("хранилище не готово")
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления из BadgerDB: %w", err)
	}

	return nil
}

// List перечисляет ключи с префиксом; итератор Badger отдаёт их по возрастанию
func (b *BadgerBackend) List(prefix string) ([]string, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	if !b.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка перечисления ключей BadgerDB: %w", err)
	}

	return keys, nil
}
