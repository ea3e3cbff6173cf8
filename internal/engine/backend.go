package engine

import (
	"fmt"
	"path/filepath"

	"github.com/annel0/blockdisguise/internal/config"
	"github.com/annel0/blockdisguise/internal/storage"
)

// OpenBackend открывает носитель журнала, выбранный в конфигурации
func OpenBackend(cfg *config.Config) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendBadger:
		return storage.NewBadgerBackend(cfg.Overlay.DataPath)
	case config.BackendFile:
		return storage.NewFileBackend(filepath.Join(cfg.Overlay.DataPath, "BlockDatabase"))
	case config.BackendRedis:
		return storage.NewRedisBackend(storage.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	case config.BackendMemory:
		return storage.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("неизвестный backend хранилища %q", cfg.Storage.Backend)
	}
}
