package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/kingst/foodlog/internal/config"
	"github.com/kingst/foodlog/internal/db"
	"github.com/kingst/foodlog/internal/repository"
	"github.com/kingst/foodlog/internal/service"
	"github.com/kingst/foodlog/internal/service/analysis"
	"github.com/kingst/foodlog/internal/session"
	"github.com/kingst/foodlog/internal/storage"
	"github.com/kingst/foodlog/internal/workflow"
	"golang.org/x/oauth2"
)

type App struct {
	Cfg         *config.Config
	DB          *sqlx.DB
	Blobs       storage.BlobStore
	MealService *service.MealService
	Analyzer    *analysis.Client
	Workflow    *workflow.Workflow
	Tokens      oauth2.TokenSource
}

func New(cfg *config.Config) (*App, error) {
	// Storage
	blobs, err := storage.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Repositories
	var (
		database  *sqlx.DB
		mealRepo  repository.MealRepository
		goalsRepo repository.GoalsRepository
	)
	switch cfg.StoreDriver {
	case "json", "":
		slog.Info("using json meal store", "meals", cfg.MealsPath(), "goals", cfg.GoalsPath())
		mealRepo = repository.NewFileMealRepository(cfg.MealsPath())
		goalsRepo = repository.NewFileGoalsRepository(cfg.GoalsPath())
	case "sqlite", "pgx":
		database, err = db.Open(cfg.StoreDriver, cfg.DBConnection)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		mealRepo = repository.NewMealRepository(database)
		goalsRepo = repository.NewGoalsRepository(database)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.StoreDriver)
	}

	// Services
	mealService := service.NewMealService(mealRepo, goalsRepo, blobs, cfg.Retention())
	analyzer := analysis.NewClient(cfg.APIBaseURL, &http.Client{Timeout: cfg.HTTPTimeout}).
		WithSlotMethod(cfg.UploadSlotMethod)
	wf := workflow.New(analyzer, mealService, workflow.Config{
		MaxImageBytes: cfg.MaxImageBytes,
	})

	return &App{
		Cfg:         cfg,
		DB:          database,
		Blobs:       blobs,
		MealService: mealService,
		Analyzer:    analyzer,
		Workflow:    wf,
		Tokens:      session.NewTokenSource(cfg.SessionToken, cfg.SessionTokenFile),
	}, nil
}

func (a *App) Close() error {
	a.Workflow.Cancel()
	return db.Close(a.DB)
}
