package di

import (
	"fun-friday-chat/backend/internal/history"
	"fun-friday-chat/backend/internal/identity"
	"fun-friday-chat/backend/internal/relay"
	"fun-friday-chat/backend/internal/repository"
	"fun-friday-chat/backend/internal/rooms"
	"fun-friday-chat/backend/internal/service"
	"fun-friday-chat/backend/pkg/config"
	"fun-friday-chat/backend/pkg/jwt"
	"fun-friday-chat/backend/pkg/logger"
	"fun-friday-chat/backend/shared/redis"

	"gorm.io/gorm"
)

// Container holds all the dependencies for the application
type Container struct {
	DB          *gorm.DB
	Cache       *redis.Client
	Logger      *logger.Logger
	Config      *config.Config
	JWTService  *jwt.Service
	Users       repository.UserRepository
	Rooms       repository.RoomRepository
	Messages    repository.MessageRepository
	Resolver    *identity.Resolver
	Registry    *rooms.Registry
	Relay       *relay.Relay
	History     *history.Provider
	AuthService *service.AuthService
}

// New wires the repositories and services around an open database handle.
// cache may be nil, in which case history falls back to the store on
// every read.
func New(db *gorm.DB, cache *redis.Client, cfg *config.Config, log *logger.Logger) *Container {
	if cfg == nil {
		cfg = config.Get()
	}
	if log == nil {
		log = logger.New(logger.Config{
			Level: cfg.Logging.Level,
			JSON:  cfg.Logging.Format == "json",
		})
	}

	users := repository.NewGormUserRepository(db)
	roomRepo := repository.NewGormRoomRepository(db)
	messages := repository.NewGormMessageRepository(db)

	resolver := identity.NewResolver(users, log)
	registry := rooms.NewRegistry(roomRepo, log)
	provider := history.New(registry, messages, cache, cfg.Relay.HistoryLimit, cfg.Relay.HistoryCacheTTL, log)
	rl := relay.New(messages, registry, provider, cfg.Relay.MaxMessageLen, log)

	return &Container{
		DB:          db,
		Cache:       cache,
		Logger:      log,
		Config:      cfg,
		JWTService:  jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry),
		Users:       users,
		Rooms:       roomRepo,
		Messages:    messages,
		Resolver:    resolver,
		Registry:    registry,
		Relay:       rl,
		History:     provider,
		AuthService: service.NewAuthService(users, log),
	}
}
