package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/annel0/blockdisguise/internal/config"
	"github.com/annel0/blockdisguise/internal/engine"
	"github.com/annel0/blockdisguise/internal/logging"
	"github.com/annel0/blockdisguise/internal/world"
)

func main() {
	configPath := flag.String("config", "", "Path to overlay config (default: $OVERLAY_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	if cfg.Overlay.LogDir != "" {
		if err := logging.InitDefaultLoggerDir("overlay", cfg.Overlay.LogDir); err != nil {
			log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
		}
		defer logging.CloseDefaultLogger()
	}

	logging.Info("🎮 Запуск движка оверлеев (backend=%s, определения=%s)", cfg.Storage.Backend, cfg.Overlay.DefinitionsPath)

	// Автономный режим: мир хранится в памяти, хост подключается через engine.New
	eng, err := engine.New(cfg, world.NewMemoryWorld(), engine.Options{})
	if err != nil {
		log.Fatalf("❌ Ошибка запуска движка оверлеев: %v", err)
	}

	logging.Info("✅ Движок оверлеев готов, определений: %d", eng.Definitions().Len())
	if port := cfg.Metrics.GetMetricsPort(); port > 0 {
		logging.Info("   📊 Метрики: http://localhost:%d/metrics", port)
	}
	logging.Info("   🔄 SIGHUP перечитывает определения")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			n, err := eng.Reload()
			if err != nil {
				logging.Error("❌ Ошибка перезагрузки определений: %v", err)
				continue
			}
			logging.Info("🔄 Определения перезагружены: %d", n)
			continue
		}

		logging.Info("📡 Получен сигнал %v, завершение работы...", sig)
		break
	}

	if err := eng.Close(); err != nil {
		logging.Error("Ошибка остановки движка: %v", err)
	}
	logging.Info("👋 Движок оверлеев остановлен")
}
