package handler

import (
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/handlers"

	"github.com/wadjakorntonsri/go-link-analytics/pkg/config"
)

type Middleware struct {
	allowedOrigins []string
}

func NewMiddleware(cfg *config.Config) *Middleware {
	origins := []string{"*"}
	if cfg.AllowedOrigin != "" {
		origins = strings.Split(cfg.AllowedOrigin, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}
	return &Middleware{allowedOrigins: origins}
}

// Wrap applies proxy header handling, CORS for the dashboard and panic
// recovery around next. Access logging is added by the server binary.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins(m.allowedOrigins),
		handlers.AllowedHeaders([]string{"Content-Type"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(log.New(os.Stderr, "panic: ", log.LstdFlags)),
		handlers.PrintRecoveryStack(false),
	)
	return handlers.ProxyHeaders(recovery(cors(next)))
}
