package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wadjakorntonsri/go-link-analytics/pkg/config"
	"github.com/wadjakorntonsri/go-link-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/go-link-analytics/pkg/core/services"
	"github.com/wadjakorntonsri/go-link-analytics/pkg/ports"
)

type HTTPHandler struct {
	service ports.LinkService
	cfg     *config.Config
}

func NewHTTPHandler(service ports.LinkService, cfg *config.Config) *HTTPHandler {
	return &HTTPHandler{service: service, cfg: cfg}
}

// CreateLinkRequest payload
type CreateLinkRequest struct {
	OriginalURL string  `json:"originalUrl"`
	CustomCode  string  `json:"customCode,omitempty"`
	ExpiryDate  string  `json:"expiryDate,omitempty"`
	Tags        tagList `json:"tags"`
}

// tagList accepts either a JSON array or the dashboard's comma-separated string.
type tagList []string

func (t *tagList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("tags must be an array or a comma-separated string")
	}
	*t = services.SplitTags(s)
	return nil
}

type createLinkResponse struct {
	domain.Link
	ShortURL string `json:"shortUrl"`
}

type linkResponse struct {
	domain.Link
	ShortURL string `json:"shortUrl"`
	Expired  bool   `json:"expired"`
}

type analyticsResponse struct {
	*domain.AnalyticsSnapshot
	BucketWidthSeconds int64 `json:"bucketWidthSeconds"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var expiryLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04", // <input type="datetime-local">
}

// parseExpiry reads the optional expiry. Zone-less values are UTC; a bare
// date keeps the link alive through the end of that day.
func parseExpiry(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	if d, err := time.Parse("2006-01-02", s); err == nil {
		t := d.AddDate(0, 0, 1).UTC()
		return &t, nil
	}
	return nil, fmt.Errorf("%w: expiryDate %q is not a valid date", domain.ErrValidation, s)
}

// Create Link
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body: %v", domain.ErrValidation, err))
		return
	}

	expiresAt, err := parseExpiry(req.ExpiryDate)
	if err != nil {
		writeError(w, err)
		return
	}

	link, err := h.service.Shorten(r.Context(), domain.ShortenRequest{
		OriginalURL: req.OriginalURL,
		CustomCode:  req.CustomCode,
		ExpiresAt:   expiresAt,
		Tags:        req.Tags,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createLinkResponse{Link: *link, ShortURL: h.cfg.ShortURL(link.ShortCode)})
}

// Redirect to original URL and record the visit
func (h *HTTPHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["short_code"]
	if code == "" {
		writeError(w, fmt.Errorf("%w: short code missing", domain.ErrValidation))
		return
	}

	originalURL, err := h.service.ResolveForRedirect(r.Context(), visitFromRequest(r, code, h.cfg.FingerprintSalt))
	if err != nil {
		writeError(w, err)
		return
	}

	http.Redirect(w, r, originalURL, http.StatusFound)
}

// List Links
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	links, err := h.service.ListLinks(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

// List Links carrying a tag
func (h *HTTPHandler) ListByTag(w http.ResponseWriter, r *http.Request) {
	links, err := h.service.ListLinksByTag(r.Context(), mux.Vars(r)["tag"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

// Get metadata for a link, including expired ones
func (h *HTTPHandler) GetLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.service.GetLink(r.Context(), mux.Vars(r)["short_code"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, linkResponse{
		Link:     *link,
		ShortURL: h.cfg.ShortURL(link.ShortCode),
		Expired:  h.service.Expired(link),
	})
}

// Get Analytics for a Link
func (h *HTTPHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	var width time.Duration
	if raw := r.URL.Query().Get("bucket"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, fmt.Errorf("%w: bucket %q is not a positive duration", domain.ErrValidation, raw))
			return
		}
		width = d
	}

	snap, err := h.service.GetAnalytics(r.Context(), mux.Vars(r)["short_code"], width)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analyticsResponse{
		AnalyticsSnapshot:  snap,
		BucketWidthSeconds: int64(snap.BucketWidth / time.Second),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidURL), errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrCodeConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrAllocationExhausted):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrExpired):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if !services.IsClientError(err) {
		log.Printf("request failed: %v", err)
		msg = "internal error, please retry"
	}
	writeJSON(w, status, errorResponse{Error: domain.Kind(err), Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}
