package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/gigconnect/gigconnect/internal/ai"
	"github.com/gigconnect/gigconnect/internal/api"
	"github.com/gigconnect/gigconnect/internal/auth"
	"github.com/gigconnect/gigconnect/internal/config"
	"github.com/gigconnect/gigconnect/internal/database"
	"github.com/gigconnect/gigconnect/internal/mailqueue"
	"github.com/gigconnect/gigconnect/internal/middleware"
	"github.com/gigconnect/gigconnect/internal/notifications"
	"github.com/gigconnect/gigconnect/internal/realtime"
	"github.com/gigconnect/gigconnect/internal/repository"
	"github.com/gigconnect/gigconnect/internal/storage"
	"github.com/gigconnect/gigconnect/internal/ticket"
)

var logger = log.New(log.Writer(), "[GIGCONNECT] ", log.LstdFlags)

// app holds every long-lived dependency of the server.
type app struct {
	cfg      *config.Config
	db       *sqlx.DB
	mongo    *mongo.Client
	redis    *redis.Client
	store    ticket.Store
	users    *repository.UserRepository
	queue    *mailqueue.MailQueueRepository
	sender   notifications.EmailProvider
	uploader storage.Uploader
	limiter  middleware.Limiter
	jwt      *auth.JWTManager
	hub      *realtime.Hub
	tickets  *ticket.Service
}

// openSQL connects, migrates and instruments the relational database.
func openSQL(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if cfg.Auth.JWT.Secret == "" {
		return nil, errors.New("auth.jwt.secret is required")
	}

	a := &app{cfg: cfg}
	var err error

	if a.db, err = openSQL(ctx, cfg); err != nil {
		return nil, err
	}
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, a.db, cfg.Database.Driver); err != nil {
		logger.Printf("Pool metrics not registered: %v", err)
	}

	if cfg.Mongo.URI != "" {
		if a.mongo, err = database.NewMongoClient(ctx, cfg.Mongo); err != nil {
			a.Close()
			return nil, err
		}
		repo := repository.NewMongoTicketRepository(a.mongo.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection))
		if err := repo.EnsureIndexes(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.store = repo
	} else {
		logger.Println("mongo.uri is empty, tickets are kept in memory")
		a.store = repository.NewMemoryTicketRepository()
	}

	if cfg.Redis.Addr != "" {
		if a.redis, err = database.NewRedisClient(ctx, cfg.Redis); err != nil {
			a.Close()
			return nil, err
		}
		a.limiter = middleware.NewRedisLimiter(a.redis)
	} else {
		a.limiter = middleware.NewMemoryLimiter()
	}

	if a.uploader, err = storage.NewUploader(cfg.Storage); err != nil {
		a.Close()
		return nil, err
	}

	renderer, err := notifications.NewRenderer(cfg.App.Name, cfg.App.BaseURL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("notifications: %w", err)
	}

	a.users = repository.NewUserRepository(a.db)
	a.queue = mailqueue.NewMailQueueRepository(a.db)
	a.sender = notifications.NewSMTPProvider(&cfg.Email)
	a.jwt = auth.NewJWTManager(cfg.Auth.JWT.Secret, cfg.Auth.JWT.AccessTokenTTL)
	a.hub = realtime.NewHub()
	a.tickets = ticket.NewService(a.store, a.users,
		ticket.WithNotifier(notifications.NewDispatcher(&cfg.Email, a.users, a.queue, renderer)),
		ticket.WithPublisher(a.hub),
		ticket.WithResponder(ai.FromConfig(cfg.AI)),
		ticket.WithUploader(a.uploader),
		ticket.WithAITimeout(cfg.AI.Timeout),
	)
	return a, nil
}

// handler builds the HTTP surface, websocket included.
func (a *app) handler() *gin.Engine {
	opts := api.Options{
		Tickets:   a.tickets,
		Validator: a.jwt,
		Limiter:   a.limiter,
		Limits:    a.cfg.RateLimit,
		MaxUpload: a.cfg.Storage.MaxBytes,
		Realtime:  realtime.NewServer(a.hub, a.tickets, a.jwt, a.limiter, api.MessageRule(a.cfg.RateLimit)).Handle,
		Checks:    a.healthChecks(),
	}
	if local, ok := a.uploader.(*storage.LocalUploader); ok {
		opts.UploadsDir, opts.UploadsURL = local.Dir(), local.PublicURL()
	}
	return api.NewRouter(opts)
}

// healthChecks pings each configured backend.
func (a *app) healthChecks() map[string]api.HealthCheck {
	checks := map[string]api.HealthCheck{
		"sql": func(ctx context.Context) error { return a.db.PingContext(ctx) },
	}
	if a.mongo != nil {
		checks["mongo"] = func(ctx context.Context) error { return a.mongo.Ping(ctx, nil) }
	}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	}
	return checks
}

func (a *app) Close() {
	if a.hub != nil {
		a.hub.Close()
	}
	if l, ok := a.limiter.(*middleware.MemoryLimiter); ok {
		l.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.mongo != nil {
		_ = a.mongo.Disconnect(context.Background())
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
