package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hackgods/consultation-scheduling/internal/api"
	"github.com/hackgods/consultation-scheduling/internal/attachment"
	"github.com/hackgods/consultation-scheduling/internal/auth"
	"github.com/hackgods/consultation-scheduling/internal/config"
	"github.com/hackgods/consultation-scheduling/internal/db"
	"github.com/hackgods/consultation-scheduling/internal/logging"
	"github.com/hackgods/consultation-scheduling/internal/notify"
	redisclient "github.com/hackgods/consultation-scheduling/internal/redis"
	"github.com/hackgods/consultation-scheduling/internal/scheduling"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	logging.Init("api-server", cfg.Env)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Str("version", version).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{})
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	if err := db.Migrate(rootCtx, pgPool); err != nil {
		log.Fatal().Err(err).Msg("migration error")
	}

	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	notifier, closeNotifier := buildNotifier(cfg)
	defer closeNotifier()
	dispatcher := notify.NewDispatcher(notifier, cfg.NotifyTimeout)

	store, err := attachment.NewLocalStore(cfg.AttachmentDir, cfg.MaxAttachmentBytes)
	if err != nil {
		log.Fatal().Err(err).Msg("attachment store error")
	}

	repo := scheduling.NewPgRepository(pgPool)
	locker := redisclient.NewRedisWindowLocker(rdb, cfg.LockTTL)
	svc := scheduling.NewService(repo, locker, dispatcher)

	router := api.NewRouter(api.RouterConfig{
		Service:            svc,
		Attachments:        store,
		MaxAttachmentBytes: cfg.MaxAttachmentBytes,
		Verifier:           auth.NewVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer),
		PostgresCheck:      pgPool.Ping,
		RedisCheck: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
		Env:     cfg.Env,
		Version: version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	// let in-flight notifications finish before their transports close
	dispatcher.Wait()
	log.Info().Msg("api-server stopped")
}

func buildNotifier(cfg config.Config) (notify.Notifier, func()) {
	switch cfg.Notifier {
	case "smtp":
		log.Info().Str("host", cfg.SMTPHost).Int("port", cfg.SMTPPort).Msg("email notifications enabled")
		return notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}), func() {}
	case "kafka":
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("kafka notifications enabled")
		kn := notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
		return kn, func() {
			if err := kn.Close(); err != nil {
				log.Error().Err(err).Msg("error closing kafka writer")
			}
		}
	default:
		return notify.LogNotifier{}, func() {}
	}
}
