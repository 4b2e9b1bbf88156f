package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	pgstore "github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/db/postgres"
	redisstore "github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/db/redis"
	grpcx "github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/transport/grpc"
	httpx "github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/transport/http"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/transport/ratelimit"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/app/credential/hasher"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/app/credential/jwt"
	appsvc "github.com/Miraines/MoonyAndStarry/credential-service/internal/app/credential/service"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/credential/repo"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/config"
	lg "github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/log"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/migrate"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/server"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		lg.Must(os.Getenv("LOG_LEVEL"), "").Fatal("failed to load config", zap.Error(err))
	}

	zapLog := lg.Must(cfg.LogLevel, cfg.LogFile)
	lg.SetDigestKey(cfg.PasswordPepper)
	defer func() { _ = zapLog.Sync() }()

	store, closeStore, err := openStore(cfg, zapLog)
	if err != nil {
		zapLog.Fatal("failed to open credential store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer closeStore()

	pwHasher, err := hasher.FromName(
		cfg.PasswordHashAlgorithm,
		cfg.PasswordPepper,
		int64(cfg.HashConcurrency),
		cfg.BcryptCost,
		hasher.DefaultArgon2Params,
	)
	if err != nil {
		zapLog.Fatal("failed to init password hasher", zap.Error(err))
	}

	issuer, err := jwt.NewJWTIssuer(cfg)
	if err != nil {
		zapLog.Fatal("failed to init JWT issuer", zap.Error(err))
	}

	svc, err := appsvc.New(store, pwHasher, issuer, appsvc.NewValidator(), zapLog)
	if err != nil {
		zapLog.Fatal("failed to init credential service", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	visitors := ratelimit.NewVisitors(cfg.RateLimit, cfg.RateBurst, 10_000, time.Hour)
	router := httpx.NewRouter(httpx.NewHandler(svc, store, zapLog), visitors, httpx.RouterConfig{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: cfg.AllowCredentials,
	})
	reporter := grpcx.NewHealthReporter(store, cfg.HealthInterval, zapLog)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(rootCtx)

	g.Go(func() error { return reporter.Run(ctx) })
	g.Go(func() error { return server.StartGRPCServer(ctx, cfg, reporter, visitors, zapLog) })
	g.Go(func() error { return server.StartHTTPServer(ctx, cfg, router, zapLog) })

	zapLog.Info("credential service started",
		zap.String("backend", cfg.StoreBackend),
		zap.String("hash", pwHasher.Algorithm()),
		zap.String("http", cfg.HTTPAddress),
		zap.String("grpc", cfg.GRPCAddress),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		zapLog.Error("server terminated", zap.Error(err))
		os.Exit(1)
	}
	zapLog.Info("shutdown complete")
}

func openStore(cfg *config.Config, log *zap.Logger) (repo.UserStore, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return redisstore.NewRedisUserStore(client), func() { _ = client.Close() }, nil

	default:
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		if err := migrate.Up(sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, nil, err
		}
		if v, dirty, err := migrate.Version(sqlDB); err == nil {
			log.Info("schema ready", zap.Uint("version", v), zap.Bool("dirty", dirty))
		}
		return pgstore.NewPostgresUserStore(db), func() { _ = sqlDB.Close() }, nil
	}
}
