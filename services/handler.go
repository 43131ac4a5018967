package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/magland/hchat/metrics"
	"github.com/magland/hchat/protocol"
)

const (
	DefaultRequestTimeout = 10 * time.Second

	// DefaultMaxBodyBytes fits a maximal message even when every UTF-16 unit
	// is JSON-escaped.
	DefaultMaxBodyBytes = 256 << 10
)

// HandlerConfig configures the protocol HTTP API.
type HandlerConfig struct {
	Log *slog.Logger

	// Metrics records per-endpoint outcomes when set.
	Metrics *metrics.MetricsServer

	// RequestTimeout bounds each request, including substrate calls.
	RequestTimeout time.Duration

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64

	// AllowedOrigins lists CORS origins; empty means any origin.
	AllowedOrigins []string
}

// Handler exposes a protocol.Gate as the four POST endpoints browser and CLI
// clients use.
type Handler struct {
	gate *protocol.Gate
	cfg  HandlerConfig
	log  *slog.Logger
}

// NewHandler creates the API handler for gate.
func NewHandler(gate *protocol.Gate, cfg HandlerConfig) *Handler {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	return &Handler{gate: gate, cfg: cfg, log: cfg.Log}
}

// RegisterRoutes registers the API under /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: h.cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
		r.Use(func(next http.Handler) http.Handler {
			return httplogger.LoggingMiddlewareSlog(h.log, next)
		})
		r.Use(middleware.Timeout(h.cfg.RequestTimeout))

		r.Post("/initiatePublish", endpoint(h, "initiatePublish",
			protocol.DecodeRequest[protocol.InitiatePublishRequest, *protocol.InitiatePublishRequest], h.gate.InitiatePublish))
		r.Post("/publish", endpoint(h, "publish",
			protocol.DecodeRequest[protocol.PublishRequest, *protocol.PublishRequest], h.gate.Publish))
		r.Post("/initiateSubscribe", endpoint(h, "initiateSubscribe",
			protocol.DecodeRequest[protocol.InitiateSubscribeRequest, *protocol.InitiateSubscribeRequest], h.gate.InitiateSubscribe))
		r.Post("/subscribe", endpoint(h, "subscribe",
			protocol.DecodeRequest[protocol.SubscribeRequest, *protocol.SubscribeRequest], h.gate.Subscribe))

		r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusMethodNotAllowed, protocol.ErrorResponse{Error: "Method not allowed"})
		})
	})
}

// endpoint adapts one Gate operation to HTTP: decode, call, encode.
func endpoint[Req, Resp any](
	h *Handler,
	name string,
	decode func(io.Reader) (*Req, error),
	call func(context.Context, *Req) (*Resp, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		outcome := "ok"
		defer func() {
			if h.cfg.Metrics != nil {
				h.cfg.Metrics.ObserveRequest(name, outcome, time.Since(start))
			}
		}()

		req, err := decode(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
		if err == nil {
			var resp *Resp
			resp, err = call(r.Context(), req)
			if err == nil {
				writeJSON(w, http.StatusOK, resp)
				return
			}
		}

		status, body := errorResponse(err)
		outcome = string(body.Reason)
		if outcome == "" {
			outcome = "error"
			h.log.Error("request failed", "endpoint", name, "err", err)
		}
		writeJSON(w, status, body)
	}
}

// errorResponse maps an error to a status code and a body that names the
// failed check without exposing internal detail.
func errorResponse(err error) (int, protocol.ErrorResponse) {
	var rej *protocol.RejectionError
	if !errors.As(err, &rej) {
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout, protocol.ErrorResponse{Error: "request timed out"}
		}
		return http.StatusInternalServerError, protocol.ErrorResponse{Error: "internal error"}
	}
	return StatusForReason(rej.Reason), protocol.ErrorResponse{Error: rej.Message, Reason: rej.Reason}
}

// StatusForReason returns the HTTP status a rejection is reported with.
func StatusForReason(reason protocol.ReasonCode) int {
	switch reason {
	case protocol.ReasonTokenSealMismatch,
		protocol.ReasonInvalidMessageSignature,
		protocol.ReasonChannelScopeMismatch,
		protocol.ReasonInvalidProofOfWork:
		return http.StatusForbidden
	case protocol.ReasonTokenTooSoon:
		return http.StatusTooEarly
	case protocol.ReasonTokenExpired:
		return http.StatusGone
	case protocol.ReasonAlreadyRedeemed:
		return http.StatusConflict
	case protocol.ReasonSubstrateError:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
