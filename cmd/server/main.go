package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/annel0/mmo-levelgen/internal/api"
	"github.com/annel0/mmo-levelgen/internal/cache"
	"github.com/annel0/mmo-levelgen/internal/config"
	"github.com/annel0/mmo-levelgen/internal/eventbus"
	"github.com/annel0/mmo-levelgen/internal/logging"
	"github.com/annel0/mmo-levelgen/internal/observability"
	"github.com/annel0/mmo-levelgen/internal/storage"
	"github.com/google/uuid"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или ENV LEVELGEN_CONFIG)")
	flag.Parse()

	// Инициализируем систему логирования
	if err := logging.InitDefaultLogger(); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	logging.Info("🗺️  Запуск Level Generation Service...")

	// === КОНФИГУРАЦИЯ ===
	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error("❌ Ошибка чтения конфигурации: %v", err)
		log.Fatalf("❌ Ошибка чтения конфигурации: %v", err)
	}
	if cfg == nil {
		logging.Info("Конфигурация не задана, используются значения по умолчанию")
		cfg = config.Default()
	}

	restAddr := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	metricsAddr := fmt.Sprintf(":%d", cfg.Server.GetMetricsPort())
	logging.Info("📡 Конфигурация: REST API=%s, метрики=%s, раскладок=%d",
		restAddr, metricsAddr, len(cfg.Layouts))

	// === OBSERVABILITY ===
	ctx := context.Background()
	shutdownTelemetry, err := observability.InitTelemetry(ctx, "levelgen")
	if err != nil {
		logging.Warn("OpenTelemetry недоступен: %v", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	// === ХРАНИЛИЩЕ ===
	store, err := storage.NewLevelStorage(cfg.Storage.GetStoragePath())
	if err != nil {
		logging.Error("❌ Ошибка открытия хранилища: %v", err)
		log.Fatalf("❌ Ошибка открытия хранилища: %v", err)
	}
	defer store.Close()

	nodeID := uuid.NewString()

	// === КЕШ (опционально) ===
	var levelCache cache.CacheRepo
	var invalidator cache.CacheInvalidator
	if cfg.Cache.RedisAddr != "" {
		if cfg.EventBus.URL != "" {
			inv, err := cache.NewNATSInvalidator(&cache.InvalidatorConfig{NATSURL: cfg.EventBus.URL}, nodeID)
			if err != nil {
				logging.Warn("NATS invalidator недоступен: %v", err)
			} else {
				invalidator = inv
				defer inv.Close()
			}
		}

		rc, err := cache.NewRedisCache(&cache.CacheConfig{
			RedisURL:      cfg.Cache.RedisAddr,
			RedisPassword: cfg.Cache.RedisPassword,
			RedisDB:       cfg.Cache.RedisDB,
		}, nil, invalidator)
		if err != nil {
			logging.Warn("Redis недоступен, сервис работает без кеша: %v", err)
		} else {
			levelCache = rc
			defer rc.Close()
		}
	}

	// === ШИНА СОБЫТИЙ ===
	var bus eventbus.EventBus
	if cfg.EventBus.URL != "" {
		natsBus, err := eventbus.NewNATSBus(cfg.EventBus.URL)
		if err != nil {
			logging.Warn("NATS недоступен, используется in-memory шина: %v", err)
			bus = eventbus.NewMemoryBus(1024)
		} else {
			bus = natsBus
			defer natsBus.Close()
		}
	} else {
		bus = eventbus.NewMemoryBus(1024)
	}
	eventbus.Init(bus)

	if err := eventbus.StartLoggingListener(bus); err != nil {
		logging.Warn("Не удалось запустить лог-подписчик шины: %v", err)
	}

	busMetrics := eventbus.NewMetricsExporter(bus)
	busMetrics.StartHTTP(metricsAddr)
	defer busMetrics.Stop()

	// === СЕРВИС УРОВНЕЙ ===
	service := api.NewLevelService(cfg.Layouts, store, levelCache, bus)

	// Инвалидация на других узлах выбрасывает уровень из памяти процесса
	if invalidator != nil {
		err := invalidator.SubscribeInvalidations(ctx, func(key string) error {
			if id, ok := cache.ParseLevelBlobKey(key); ok {
				service.DropFromMemory(id)
			}
			return nil
		})
		if err != nil {
			logging.Warn("Не удалось подписаться на инвалидации: %v", err)
		}
	}

	// === REST API ===
	restServer := api.NewRestServer(api.Config{
		Port:    restAddr,
		Service: service,
	})

	go func() {
		if err := restServer.Start(); err != nil {
			logging.Error("❌ Ошибка REST сервера: %v", err)
			os.Exit(1)
		}
	}()

	logging.Info("✅ Сервис запущен")
	logging.Info("   🌐 REST API: http://localhost%s", restAddr)
	logging.Info("   📈 Метрики: http://localhost%s/metrics", metricsAddr)
	logging.Info("   ❤️  Health check: http://localhost%s/health", restAddr)
	logging.Info("💡 Пример: curl -X POST http://localhost%s/api/levels -H 'Content-Type: application/json' -d '{\"layout\":\"default\"}'", restAddr)

	// Канал для получения сигналов ОС
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logging.Info("📡 Получен сигнал %v, завершение работы...", sig)

	// === GRACEFUL SHUTDOWN ===
	if err := shutdownTelemetry(ctx); err != nil {
		logging.Error("❌ Ошибка остановки телеметрии: %v", err)
	}

	logging.Info("👋 Сервис успешно остановлен")
}
