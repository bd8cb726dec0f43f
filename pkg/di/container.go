// Package di wires the application graph: storage backends, the generation
// client, the orchestrator and the services on top of them.
package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"ensemble-chat/backend/ai"
	"ensemble-chat/backend/internal/models"
	"ensemble-chat/backend/internal/orchestrator"
	"ensemble-chat/backend/internal/service"
	"ensemble-chat/backend/internal/store"
	"ensemble-chat/backend/internal/ws"
	"ensemble-chat/backend/pkg/config"
	"ensemble-chat/backend/pkg/health"
	"ensemble-chat/backend/pkg/jwt"
	"ensemble-chat/backend/pkg/logger"
	"ensemble-chat/backend/pkg/secrets"
)

// Container holds all the dependencies for the application
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	DB           *gorm.DB
	SessionStore *store.SessionStore
	Redis        *redis.Client

	Generation   ai.Service
	JWTService   *jwt.Service
	Hub          *ws.Hub
	Orchestrator *orchestrator.Orchestrator

	CharacterService *service.CharacterService
	SessionService   *service.SessionService
	GalleryService   *service.GalleryService
	SpeechService    *service.SpeechService

	Health *health.Checker
}

// New builds the full dependency graph from configuration.
func New(cfg *config.Config) (*Container, error) {
	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		JSON:   cfg.Logging.Format == "json",
		Output: logger.DefaultConfig().Output,
	})
	logger.SetGlobal(log)

	if err := secrets.Init(log); err != nil {
		log.Warn("secrets manager unavailable, falling back to environment", "error", err)
	}

	db, err := config.NewDB()
	if err != nil {
		return nil, fmt.Errorf("di: connect database: %w", err)
	}
	if err := db.AutoMigrate(&models.Character{}, &models.GalleryItem{}); err != nil {
		return nil, fmt.Errorf("di: migrate database: %w", err)
	}

	var mirror *redis.Client
	if cfg.Store.RedisAddr != "" {
		mirror = redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
	}

	sessionStore, err := store.Open(store.Options{
		Dir:    cfg.Store.BadgerPath,
		Mirror: mirror,
		Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("di: open session store: %w", err)
	}

	// The generation API key can live in Vault; the env var is the
	// development fallback.
	apiKey := secrets.GetSecretWithDefault(context.Background(), "GENERATION_API_KEY", cfg.Generation.APIKey)

	genClient := ai.NewClient(ai.ClientConfig{
		BaseURL: cfg.Generation.BaseURL,
		APIKey:  apiKey,
		Timeout: cfg.Generation.Timeout,
	}, log)

	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry)
	hub := ws.NewHub(log)

	characterService := service.NewCharacterService(db, genClient, log)

	orch := orchestrator.New(genClient, characterService, hub, orchestrator.Config{
		MaxTurns:               cfg.Orchestrator.MaxTurns,
		SpokenDecrement:        cfg.Orchestrator.SpokenDecrement,
		SilentDecrement:        cfg.Orchestrator.SilentDecrement,
		MinTurnDelay:           cfg.Orchestrator.MinTurnDelay,
		MaxTurnDelay:           cfg.Orchestrator.MaxTurnDelay,
		BackgroundInitialDelay: cfg.Orchestrator.BackgroundInitialDelay,
		BackgroundInterval:     cfg.Orchestrator.BackgroundInterval,
		BackgroundMinMessages:  cfg.Orchestrator.BackgroundMinMessages,
		EvolutionQueueSize:     cfg.Orchestrator.EvolutionQueueSize,
	}, log)

	sessionService := service.NewSessionService(sessionStore, characterService, orch, hub, log)

	checker := health.NewChecker(log, 30*time.Second)
	checker.RegisterDatabaseCheck(func() error {
		return config.TestConnection(db)
	})
	checker.RegisterCheck("session_store", func() (health.Status, string, error) {
		if _, err := sessionStore.List(context.Background()); err != nil {
			return health.StatusDown, "Session store unreachable", err
		}
		return health.StatusUp, "Session store is operational", nil
	})
	checker.RegisterAPICheck("generation", cfg.Generation.BaseURL+"/healthz", &http.Client{Timeout: 5 * time.Second})

	return &Container{
		Config:           cfg,
		Logger:           log,
		DB:               db,
		SessionStore:     sessionStore,
		Redis:            mirror,
		Generation:       genClient,
		JWTService:       jwtService,
		Hub:              hub,
		Orchestrator:     orch,
		CharacterService: characterService,
		SessionService:   sessionService,
		GalleryService:   service.NewGalleryService(db),
		SpeechService:    service.NewSpeechService(genClient, log),
		Health:           checker,
	}, nil
}

// Close releases everything the container owns, in dependency order.
func (c *Container) Close() {
	c.SessionService.Close()
	c.Orchestrator.Close()
	if err := c.SessionStore.Close(); err != nil {
		c.Logger.LogError(err, "failed to close session store")
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.LogError(err, "failed to close redis client")
		}
	}
	if sqlDB, err := c.DB.DB(); err == nil {
		sqlDB.Close()
	}
}
