package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Jeyavarma/lost-found-sub000/cmd/api/router/v1"
	cacheadapter "github.com/Jeyavarma/lost-found-sub000/internal/infrastructure/cache/adapter"
	cacheport "github.com/Jeyavarma/lost-found-sub000/internal/infrastructure/cache/port"
	"github.com/Jeyavarma/lost-found-sub000/internal/infrastructure/database"
	queueadapter "github.com/Jeyavarma/lost-found-sub000/internal/infrastructure/queue/adapter"
	qport "github.com/Jeyavarma/lost-found-sub000/internal/infrastructure/queue/port"
	"github.com/Jeyavarma/lost-found-sub000/internal/infrastructure/realtime"
	"github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/application/relay"
	"github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/application/task"
	"github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/persistence/repository/adapter"

	"github.com/Netflix/go-env"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// Config holds the API process settings, loaded from the environment.
type Config struct {
	Port                int    `env:"PORT,default=8080"`
	LogLevel            string `env:"LOG_LEVEL,default=info"`
	GinMode             string `env:"GIN_MODE,default=release"`
	RetentionCap        int    `env:"MESSAGE_RETENTION_CAP,default=1000"`
	ParticipantCacheTTL int    `env:"PARTICIPANT_CACHE_TTL_SECONDS,default=30"`
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: .env file not found or could not be loaded: %v\n", err)
	}

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(config.LogLevel)
	gin.SetMode(config.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to the database on startup
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	pool, err := database.NewPoolFromEnv(connectCtx)
	cancel()
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis participant cache and the asynq background queue are optional:
	// without them the relay reads participants from Postgres on every submit
	// and skips retention/notification tasks.
	var cache cacheport.Cache
	if redisCache, err := cacheadapter.NewRedisAdapter(); err != nil {
		log.Warn("participant cache disabled", "error", err)
	} else {
		cache = redisCache
		defer redisCache.Close()
	}

	var tasks qport.Client
	if client, err := queueadapter.NewAsynqClientFromEnv(); err != nil {
		log.Warn("background queue disabled", "error", err)
	} else {
		tasks = client
		defer client.Close()
	}

	repo := adapter.NewPgRoomRepository(pool)
	registry := realtime.NewRegistry()
	defer registry.Close()

	rly := relay.New(repo, registry, cache, tasks, log, relay.Options{
		RetentionCap:        config.RetentionCap,
		ParticipantCacheTTL: time.Duration(config.ParticipantCacheTTL) * time.Second,
	})

	// Run the task consumer in-process when the queue is reachable. Retention
	// pruning and offline notification both ride on it.
	if tasks != nil {
		srv, err := queueadapter.NewAsynqServer()
		if err != nil {
			log.Warn("task consumer disabled", "error", err)
		} else {
			task.RegisterPruneRoomTask(srv, repo, log)
			task.RegisterNotifyOfflineTask(srv, nil, log)
			go func() {
				if err := srv.Run(ctx); err != nil {
					log.Error("task consumer stopped", "error", err)
				}
			}()
		}
	}

	r := gin.Default()

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "OK",
		})
	})

	v1.RegisterRoutes(r, pool, registry, rly)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Port),
		Handler: r,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown incomplete", "error", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(log)
	return log
}
