// Package httpapi exposes the formations listing over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"

	"FormationsCache/internal/domain"
	"FormationsCache/internal/logging"
	"FormationsCache/internal/usecase"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 64 << 10

	errInvalidBody      = "invalid request body"
	errMethodNotAllowed = "method not allowed"
)

// Lister produces the client-facing listing for a set of filters.
type Lister interface {
	List(ctx context.Context, filters domain.Filters) usecase.Response
}

// HandlerDeps wires the listing use case and ambient endpoints.
type HandlerDeps struct {
	Lister         Lister
	Metrics        http.Handler
	Health         func(ctx context.Context) error
	RequestTimeout time.Duration
	AllowedOrigin  string
	Logger         *slog.Logger
}

type handler struct {
	lister        Lister
	health        func(ctx context.Context) error
	timeout       time.Duration
	allowedOrigin string
	logger        *slog.Logger
}

type listRequest struct {
	Filters *domain.Filters `json:"filters"`
}

type ctxKey struct{}

// NewHandler builds the router: /formations, /healthz and (when provided) /metrics.
func NewHandler(deps HandlerDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	h := &handler{
		lister:        deps.Lister,
		health:        deps.Health,
		timeout:       deps.RequestTimeout,
		allowedOrigin: deps.AllowedOrigin,
		logger:        logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/formations", h.formations)
	mux.HandleFunc("/healthz", h.healthz)
	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics)
	}

	return h.withRequestID(mux)
}

func (h *handler) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), ctxKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the id attached to ctx by the handler, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (h *handler) formations(w http.ResponseWriter, r *http.Request) {
	h.setCORS(w)
	log := h.logger.With("request_id", RequestID(r.Context()), "method", r.Method)

	var filters domain.Filters
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodGet:
		q := r.URL.Query()
		filters = domain.Filters{Region: q.Get("region"), Type: q.Get("type")}
	case http.MethodPost:
		var err error
		filters, err = decodeFilters(r.Body)
		if err != nil {
			log.Warn("decode listing request", "error", err)
			h.writeJSON(w, r, http.StatusBadRequest, usecase.FailureResponse(errInvalidBody))
			return
		}
	default:
		w.Header().Set("Allow", "GET, POST, OPTIONS")
		h.writeJSON(w, r, http.StatusMethodNotAllowed, usecase.FailureResponse(errMethodNotAllowed))
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	var resp usecase.Response
	if h.lister == nil {
		resp = usecase.FailureResponse("formations listing is not configured")
	} else {
		resp = h.lister.List(ctx, filters)
	}

	status := http.StatusOK
	if !resp.Success {
		status = http.StatusInternalServerError
	}
	log.Debug("formations served", "status", status, "count", resp.Count)
	h.writeJSON(w, r, status, resp)
}

func decodeFilters(body io.Reader) (domain.Filters, error) {
	if body == nil {
		return domain.Filters{}, nil
	}

	var req listRequest
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Filters{}, nil
		}
		return domain.Filters{}, err
	}
	if req.Filters == nil {
		return domain.Filters{}, nil
	}
	return *req.Filters, nil
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.Error("health check failed", "error", err, "request_id", RequestID(r.Context()))
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *handler) setCORS(w http.ResponseWriter) {
	origin := h.allowedOrigin
	if origin == "" {
		origin = "*"
	}
	header := w.Header()
	header.Set("Access-Control-Allow-Origin", origin)
	header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	header.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type, "+strings.ToLower(requestIDHeader))
	header.Set("Access-Control-Expose-Headers", requestIDHeader)
}

// writeJSON encodes payload, compressed with br or gzip when the client accepts it.
func (h *handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	cw := brotli.HTTPCompressor(w, r)
	w.WriteHeader(status)

	if err := json.NewEncoder(cw).Encode(payload); err != nil {
		h.logger.Error("encode response", "error", err, "request_id", RequestID(r.Context()))
	}
	if err := cw.Close(); err != nil {
		h.logger.Error("flush response", "error", err, "request_id", RequestID(r.Context()))
	}
}
