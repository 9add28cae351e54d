package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/blockverse/internal/auth"
	"github.com/annel0/blockverse/internal/cache"
	"github.com/annel0/blockverse/internal/config"
	"github.com/annel0/blockverse/internal/eventbus"
	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/network"
	"github.com/annel0/blockverse/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию BLOCKVERSE_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	logging.Configure(logging.Options{
		Dir:          cfg.Logging.Dir,
		ConsoleLevel: logging.ParseLevel(cfg.Logging.ConsoleLevel, logging.INFO),
		FileLevel:    logging.ParseLevel(cfg.Logging.FileLevel, logging.DEBUG),
	})
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()

	logging.Info("🎮 Запуск Blockverse сервера...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === ТЕЛЕМЕТРИЯ ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		logging.Warn("⚠️ Телеметрия не запущена: %v", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	// === ШИНА СОБЫТИЙ ===
	bus, err := openEventBus(cfg.EventBus)
	if err != nil {
		log.Fatalf("❌ Ошибка подключения к шине событий: %v", err)
	}
	if _, err := eventbus.StartLoggingListener(ctx, bus, logging.GetComponentLogger("eventbus")); err != nil {
		logging.Warn("LoggingListener не запущен: %v", err)
	}

	source := eventSource()

	// === КАТАЛОГ КОМНАТ ===
	var directory cache.RoomDirectory
	if cfg.Directory.RedisAddr != "" {
		rd, err := cache.NewRedisDirectory(cfg.Directory)
		if err != nil {
			logging.Error("❌ Каталог комнат недоступен: %v", err)
		} else {
			directory = rd
			if n, err := rd.Purge(ctx, source); err != nil {
				logging.Warn("Не удалось очистить старые записи каталога: %v", err)
			} else if n > 0 {
				logging.Info("🧹 Удалено %d устаревших записей каталога", n)
			}
			if _, err := cache.StartDirectorySync(ctx, bus, rd, nil); err != nil {
				logging.Error("❌ Синхронизация каталога не запущена: %v", err)
			}
		}
	}

	// === АДМИНСКИЕ ТОКЕНЫ ===
	var tokens *auth.TokenIssuer
	if secret := cfg.Auth.GetJWTSecret(); secret != "" {
		tokens, err = auth.NewTokenIssuer(secret, cfg.Auth.TokenTTL)
		if err != nil {
			log.Fatalf("❌ Ошибка настройки JWT: %v", err)
		}
	} else {
		logging.Warn("🔐 BLOCKVERSE_JWT_SECRET не задан, админские маршруты REST отключены")
	}

	// === ИГРОВОЙ СЕРВЕР ===
	dcfg := network.DispatcherConfigFrom(cfg.Rooms)
	dcfg.Source = source

	httpAddr := fmt.Sprintf(":%d", cfg.Server.GetHTTPPort())
	srv, err := network.NewServer(network.ServerConfig{
		HTTPAddr:   httpAddr,
		KCPAddr:    cfg.Server.GetKCPAddr(),
		Dispatcher: dcfg,
		Tokens:     tokens,
		Bus:        bus,
	})
	if err != nil {
		log.Fatalf("❌ Ошибка создания сервера: %v", err)
	}
	if err := srv.Start(); err != nil {
		log.Fatalf("❌ Ошибка запуска сервера: %v", err)
	}

	logging.Info("✅ Все сервисы запущены и готовы принимать соединения")
	logging.Info("   🎮 WebSocket: ws://localhost%s/ws", httpAddr)
	if kcpAddr := srv.KCPAddr(); kcpAddr != nil {
		logging.Info("   🛰️ KCP: kcp://%s", kcpAddr)
	}
	logging.Info("   🌐 REST API: http://localhost%s/api/rooms", httpAddr)
	logging.Info("   ❤️  Health check: http://localhost%s/health", httpAddr)
	logging.Info("   📈 Метрики: http://localhost%s/metrics", httpAddr)

	// Канал для получения сигналов ОС
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logging.Info("📡 Получен сигнал %v, завершение работы...", sig)

	// === GRACEFUL SHUTDOWN ===
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()

	if err := srv.Stop(stopCtx); err != nil {
		logging.Error("❌ Ошибка остановки сервера: %v", err)
	}
	cancel()

	if err := bus.Close(); err != nil {
		logging.Error("❌ Ошибка закрытия шины событий: %v", err)
	}
	if directory != nil {
		if n, err := directory.Purge(stopCtx, source); err == nil && n > 0 {
			logging.Debug("Каталог: удалено %d записей этого сервера", n)
		}
		directory.Close()
	}
	if err := shutdownTelemetry(stopCtx); err != nil {
		logging.Warn("Ошибка остановки телеметрии: %v", err)
	}

	logging.Info("👋 Сервер успешно остановлен")
}

// openEventBus выбирает реализацию шины: JetStream при заданном URL, иначе
// шина в памяти процесса
func openEventBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		logging.Info("🚌 Шина событий: in-memory")
		return eventbus.NewMemoryBus(1024), nil
	}

	retention := time.Duration(cfg.Retention) * time.Hour
	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, retention)
	if err != nil {
		return nil, err
	}
	logging.Info("🚌 Шина событий: NATS JetStream %s (стрим %s)", cfg.URL, cfg.Stream)
	return bus, nil
}

// eventSource - имя этого экземпляра в событиях и каталоге
func eventSource() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "blockverse-server"
	}
	return "blockverse-" + host
}
