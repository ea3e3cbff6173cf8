package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const fileExt = ".yml"

// FileBackend хранит каждую запись отдельным файлом
// <basePath>/<world>/chunk.<x>.<z>.yml, с кэшем содержимого в памяти.
type FileBackend struct {
	basePath   string
	chunkCache map[string][]byte
	mu         sync.RWMutex
}

// NewFileBackend создаёт файловое хранилище
func NewFileBackend(basePath string) (*FileBackend, error) {
	// Создаём директорию если её нет
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию %s: %w", basePath, err)
	}

	return &FileBackend{
		basePath:   basePath,
		chunkCache: make(map[string][]byte),
	}, nil
}

// Load читает файл записи, используя кэш
func (fb *FileBackend) Load(key string) ([]byte, error) {
	fb.mu.RLock()
	cached, exists := fb.chunkCache[key]
	fb.mu.RUnlock()
	if exists {
		return append([]byte(nil), cached...), nil
	}

	filename := fb.filename(key)
	data, err := os.ReadFile(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла чанка %s: %w", filename, err)
	}

	fb.mu.Lock()
	fb.chunkCache[key] = data
	fb.mu.Unlock()

	return append([]byte(nil), data...), nil
}

// Store записывает файл через временный файл и переименование
func (fb *FileBackend) Store(key string, data []byte) error {
	filename := fb.filename(key)

	// Создаём директорию если нужно
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}

	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("ошибка записи файла %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, filename); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ошибка записи файла %s: %w", filename, err)
	}

	fb.mu.Lock()
	fb.chunkCache[key] = append([]byte(nil), data...)
	fb.mu.Unlock()

	return nil
}

// Delete удаляет файл записи
func (fb *FileBackend) Delete(key string) error {
	fb.mu.Lock()
	delete(fb.chunkCache, key)
	fb.mu.Unlock()

	filename := fb.filename(key)
	if err := os.Remove(filename); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ошибка удаления файла %s: %w", filename, err)
	}
	return nil
}

// List перечисляет ключи по файлам каталога
func (fb *FileBackend) List(prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(fb.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, fileExt) {
			return nil
		}
		rel, err := filepath.Rel(fb.basePath, path)
		if err != nil {
			return err
		}
		key := strings.TrimSuffix(filepath.ToSlash(rel), fileExt)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка обхода каталога %s: %w", fb.basePath, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close сбрасывает кэш
func (fb *FileBackend) Close() error {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.chunkCache = make(map[string][]byte)
	return nil
}

// filename возвращает имя файла для ключа
func (fb *FileBackend) filename(key string) string {
	return filepath.Join(fb.basePath, filepath.FromSlash(key)+fileExt)
}
