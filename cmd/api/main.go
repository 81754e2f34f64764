package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"user-directory/internal/config"
	"user-directory/internal/db"
	apihttp "user-directory/internal/http"
	"user-directory/internal/repository"
	"user-directory/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// store agrupa el repositorio elegido con su health check y cierre.
type store struct {
	users repository.UserRepository
	ping  apihttp.PingFunc
	close func()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, _ := zap.NewProduction()
	if cfg.Environment == "development" {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store init", zap.Error(err))
	}
	defer st.close()

	guard := service.NewMemoryRegistrationGuard()
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()

		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-process registration guard", zap.Error(err))
		} else {
			guard = service.NewRedisRegistrationGuard(redisClient, logger, cfg.RegistrationLockTTL)
		}
		cancel()
	}

	jwtSvc, err := service.NewJWTService(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.AccessTTL())
	if err != nil {
		logger.Fatal("jwt init", zap.Error(err))
	}
	hasher := service.NewArgon2Hasher(service.DefaultArgon2Params, cfg.PasswordHashConcurrency)

	userSvc := service.NewUserService(logger, st.users, hasher, jwtSvc, guard)
	gate := service.NewAuthGate(logger, jwtSvc, st.users)

	router := apihttp.NewRouter(
		logger,
		gate,
		apihttp.NewAuthHandler(logger, userSvc),
		apihttp.NewUserHandler(logger, userSvc),
		apihttp.NewHealthHandler(logger, st.ping),
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("environment", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
	}
}

// openStore elige postgres (pgx + goose) o sqlite (gorm) según DATABASE_URL.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store, error) {
	if cfg.UsesSQLite() {
		gdb, err := db.OpenSQLite(cfg.SQLitePath(), &repository.UserRecord{})
		if err != nil {
			return store{}, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return store{}, err
		}
		logger.Info("using sqlite store", zap.String("path", cfg.SQLitePath()))
		return store{
			users: repository.NewGormUserRepository(gdb),
			ping:  sqlDB.PingContext,
			close: func() { _ = sqlDB.Close() },
		}, nil
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return store{}, err
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return store{}, err
	}
	logger.Info("using postgres store")
	return store{
		users: repository.NewPgUserRepository(pool, cfg.DBQueryTimeout),
		ping:  func(ctx context.Context) error { return db.Ping(ctx, pool) },
		close: pool.Close,
	}, nil
}
