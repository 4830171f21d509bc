package handler

import (
	"context"
	"net/http"

	"github.com/wadjakorntonsri/shortlink/pkg/adapters/handler"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/repository"
	"github.com/wadjakorntonsri/shortlink/pkg/config"
	"github.com/wadjakorntonsri/shortlink/pkg/core/services"
	"github.com/wadjakorntonsri/shortlink/pkg/logger"
)

var mux http.Handler

func init() {
	cfg := config.Load()
	log := logger.New(cfg)

	// On Vercel a file: database is ephemeral; point DATABASE_URL at Turso instead.
	// There is no long running process here, so expired links are swept by the CLI.
	store, err := repository.Open(context.Background(), cfg, log)
	if err != nil {
		log.WithError(err).Panic("failed to initialize storage")
	}

	links := services.NewLinkService(store, cfg.BaseURL, cfg.DefaultExpiryDays)
	analytics := services.NewAnalyticsService(store)
	mux = handler.NewRouter(cfg, links, analytics, log)
}

// Handler is the entrypoint for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	mux.ServeHTTP(w, r)
}
