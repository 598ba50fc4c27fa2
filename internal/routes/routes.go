package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/kingst/foodlog/internal/app"
	"github.com/kingst/foodlog/internal/handler"
	"github.com/kingst/foodlog/internal/metrics"
	"github.com/kingst/foodlog/internal/middleware"
	"github.com/rs/cors"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	meals := handler.NewMealHandler(app.MealService)
	analysis := handler.NewAnalysisHandler(app.Workflow, app.Tokens)

	limiter := middleware.NewRateLimiter(app.Cfg.AnalysisRateLimit, app.Cfg.AnalysisRateWindow).
		TrustProxies(app.Cfg.TrustedProxies)

	r := mux.NewRouter()
	r.Use(metrics.InstrumentHandler)

	// ============================================================================
	// MEAL HISTORY
	// ============================================================================

	r.HandleFunc("/v1/meals", meals.List).Methods(http.MethodGet)
	r.HandleFunc("/v1/meals/{id}", meals.Update).Methods(http.MethodPut)
	r.HandleFunc("/v1/meals/{id}", meals.Delete).Methods(http.MethodDelete)
	r.HandleFunc("/v1/meals/{id}/image", meals.Image).Methods(http.MethodGet)

	r.HandleFunc("/v1/goals", meals.Goals).Methods(http.MethodGet)
	r.HandleFunc("/v1/goals", meals.SetGoals).Methods(http.MethodPut)
	r.HandleFunc("/v1/totals", meals.Totals).Methods(http.MethodGet)

	// ============================================================================
	// ANALYSIS WORKFLOW
	// ============================================================================

	r.HandleFunc("/v1/analysis", limiter.Limit(analysis.Start)).Methods(http.MethodPost)
	r.HandleFunc("/v1/analysis", analysis.State).Methods(http.MethodGet)
	r.HandleFunc("/v1/analysis", analysis.Edit).Methods(http.MethodPatch)
	r.HandleFunc("/v1/analysis/preview", analysis.Preview).Methods(http.MethodGet)
	r.HandleFunc("/v1/analysis/confirm", analysis.Confirm).Methods(http.MethodPost)
	r.HandleFunc("/v1/analysis/cancel", analysis.Cancel).Methods(http.MethodPost)
	r.HandleFunc("/v1/analysis/clear", analysis.Clear).Methods(http.MethodPost)
	r.HandleFunc("/v1/analysis/events", analysis.Events).Methods(http.MethodGet)

	// ============================================================================
	// OPERATIONS
	// ============================================================================

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Storage-Degraded"},
	})

	return middleware.Chain(r,
		c.Handler,
		middleware.RequestLogging,
	)
}
