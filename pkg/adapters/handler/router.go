package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wadjakorntonsri/go-link-analytics/pkg/config"
	"github.com/wadjakorntonsri/go-link-analytics/pkg/ports"
)

// NewRouter creates and configures the main application router
func NewRouter(cfg *config.Config, service ports.LinkService) http.Handler {
	h := NewHTTPHandler(service, cfg)
	mw := NewMiddleware(cfg)

	r := mux.NewRouter()

	// Public Routes
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/short/{short_code}", h.Redirect).Methods(http.MethodGet)

	// Dashboard API
	api := r.PathPrefix("/api/url").Subrouter()
	api.HandleFunc("/shorten", h.Create).Methods(http.MethodPost)
	api.HandleFunc("/all", h.List).Methods(http.MethodGet)
	api.HandleFunc("/tag/{tag}", h.ListByTag).Methods(http.MethodGet)
	api.HandleFunc("/analytics/{short_code}", h.Analytics).Methods(http.MethodGet)
	api.HandleFunc("/{short_code}", h.GetLink).Methods(http.MethodGet)

	return mw.Wrap(r)
}
