// internal/server/handler.go
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/signalnine/hostwatch/internal/logclass"
	"github.com/signalnine/hostwatch/internal/logging"
	"github.com/signalnine/hostwatch/internal/protocol"
	"github.com/signalnine/hostwatch/internal/store"
)

const (
	defaultAnomalyLimit = 50
	maxAnomalyLimit     = 1000
)

// LineStore persists classified lines and reports alert counters
type LineStore interface {
	InsertLogLines(ctx context.Context, lines []protocol.LogLine) error
	Alerts(ctx context.Context) (protocol.AlertSummary, error)
}

// AnomalyStore lists recorded anomaly events
type AnomalyStore interface {
	RecentAnomalies(ctx context.Context, limit int) ([]store.StoredAnomaly, error)
}

// ClassifyRequest is the POST /classify body
type ClassifyRequest struct {
	Lines []string `json:"lines"`
}

// ClassifyResponse is the POST /classify reply
type ClassifyResponse struct {
	Results []protocol.LogLine `json:"results"`
	Summary logclass.Summary   `json:"summary"`
}

// ClassifyHandler handles POST /classify
type ClassifyHandler struct {
	classifier      *logclass.Classifier
	store           LineStore
	apiKey          string
	maxPayloadBytes int64
	logger          *zap.Logger
}

// NewClassifyHandler creates a classify handler. store may be nil; an empty
// apiKey disables authentication.
func NewClassifyHandler(c *logclass.Classifier, store LineStore, apiKey string, maxPayloadBytes int64, logger *zap.Logger) *ClassifyHandler {
	return &ClassifyHandler{
		classifier:      c,
		store:           store,
		apiKey:          apiKey,
		maxPayloadBytes: maxPayloadBytes,
		logger:          logging.OrNop(logger),
	}
}

func (h *ClassifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.apiKey != "" {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != h.apiKey {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	if r.ContentLength > h.maxPayloadBytes {
		http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxPayloadBytes+1))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	if int64(len(body)) > h.maxPayloadBytes {
		http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
		return
	}

	var req ClassifyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	results := h.classifier.ClassifyLines(req.Lines)
	if h.store != nil {
		if err := h.store.InsertLogLines(r.Context(), results); err != nil {
			h.logger.Error("store classified lines", zap.Error(err))
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
	}

	writeJSON(w, ClassifyResponse{Results: results, Summary: logclass.Summarize(results)})
}

// AlertsHandler handles GET /alerts
type AlertsHandler struct {
	store  LineStore
	logger *zap.Logger
}

// NewAlertsHandler creates an alerts handler. A nil store always reports zeros.
func NewAlertsHandler(store LineStore, logger *zap.Logger) *AlertsHandler {
	return &AlertsHandler{store: store, logger: logging.OrNop(logger)}
}

func (h *AlertsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var summary protocol.AlertSummary
	if h.store != nil {
		var err error
		if summary, err = h.store.Alerts(r.Context()); err != nil {
			h.logger.Error("read alert counts", zap.Error(err))
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
	}
	writeJSON(w, summary)
}

// AnomaliesHandler handles GET /anomalies?limit=N
type AnomaliesHandler struct {
	store  AnomalyStore
	logger *zap.Logger
}

// NewAnomaliesHandler creates an anomalies handler. A nil store always
// reports an empty list.
func NewAnomaliesHandler(store AnomalyStore, logger *zap.Logger) *AnomaliesHandler {
	return &AnomaliesHandler{store: store, logger: logging.OrNop(logger)}
}

func (h *AnomaliesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultAnomalyLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxAnomalyLimit)
	}

	events := []store.StoredAnomaly{}
	if h.store != nil {
		got, err := h.store.RecentAnomalies(r.Context(), limit)
		if err != nil {
			h.logger.Error("read recent anomalies", zap.Error(err))
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		if got != nil {
			events = got
		}
	}
	writeJSON(w, events)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}
