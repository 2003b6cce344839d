package app

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ellyeware/idiombot/internal/db"
	"github.com/ellyeware/idiombot/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Clients  Clients
	Services Services
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	reposet := wireRepos(theDB, log)

	clientset, err := wireClients(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	serviceset, err := wireServices(cfg, reposet, clientset, log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(reposet, serviceset, clientset, log)
	middlewareset := wireMiddleware(log)
	router := wireRouter(cfg, handlerset, middlewareset)

	return &App{
		Log:      log,
		DB:       theDB,
		Router:   router,
		Cfg:      cfg,
		Repos:    reposet,
		Clients:  clientset,
		Services: serviceset,
	}, nil
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Services.Index != nil {
		if err := a.Services.Index.Close(); err != nil {
			a.Log.Warn("Failed to close search index", "error", err)
		}
	}
	if a.Clients.Vision != nil {
		if err := a.Clients.Vision.Close(); err != nil {
			a.Log.Warn("Failed to close vision client", "error", err)
		}
	}
	if a.Clients.Limiter != nil {
		if err := a.Clients.Limiter.Close(); err != nil {
			a.Log.Warn("Failed to close rate limiter", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
