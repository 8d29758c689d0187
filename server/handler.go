package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/hupe1980/toolrelay"
	"github.com/hupe1980/toolrelay/agent"
	"github.com/hupe1980/toolrelay/core"
	"github.com/hupe1980/toolrelay/logging"
)

// ContentTypeNDJSON is the content type of the chat stream.
const ContentTypeNDJSON = "application/x-ndjson"

// HeaderRequestID carries the conversation id of a chat response.
const HeaderRequestID = "X-Request-Id"

// Options configures a Handler.
type Options struct {
	Logger logging.Logger

	// AllowedOrigin is sent as Access-Control-Allow-Origin. Empty disables CORS headers.
	AllowedOrigin string

	DefaultTemperature     float64
	DefaultMaxOutputTokens int64

	// MaxBodyBytes limits the request body. Zero means unlimited.
	MaxBodyBytes int64
}

// Handler serves the chat API.
type Handler struct {
	relay  *toolrelay.Relay
	opts   Options
	logger logging.Logger
	mux    *http.ServeMux
}

// NewHandler creates a Handler that runs every chat request on relay.
func NewHandler(relay *toolrelay.Relay, optFns ...func(o *Options)) *Handler {
	opts := Options{
		Logger:                 logging.NoOpLogger{},
		AllowedOrigin:          "*",
		DefaultTemperature:     agent.DefaultTemperature,
		DefaultMaxOutputTokens: agent.DefaultMaxOutputTokens,
		MaxBodyBytes:           4 << 20,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	h := &Handler{
		relay:  relay,
		opts:   opts,
		logger: opts.Logger,
		mux:    http.NewServeMux(),
	}
	h.mux.HandleFunc("POST /api/chat", h.handleChat)
	h.mux.HandleFunc("GET /healthz", h.handleHealthz)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.cors(h.mux).ServeHTTP(w, r)
}

func (h *Handler) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.opts.AllowedOrigin != "" {
			hdr := w.Header()
			hdr.Set("Access-Control-Allow-Origin", h.opts.AllowedOrigin)
			hdr.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			hdr.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			hdr.Set("Access-Control-Expose-Headers", HeaderRequestID)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	inv, err := h.prepare(r)
	if err != nil {
		h.logger.Warn("http.chat.rejected", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	logger := logging.With(h.logger, "conversation_id", inv.ConversationID)
	logger.Info("http.chat.start", "messages", len(inv.Messages))

	w.Header().Set(HeaderRequestID, inv.ConversationID)
	w.Header().Set("Content-Type", ContentTypeNDJSON)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	out := newNDJSONWriter(w)
	count := 0
	_, events := h.relay.Invoke(ctx, inv)
	for ev := range events {
		if ctx.Err() != nil {
			continue
		}
		if err := out.Write(ev); err != nil {
			logger.Warn("http.chat.write_failed", "error", err)
			cancel()
			continue
		}
		count++
	}

	logger.Info("http.chat.end", "events", count)
}

// prepare decodes the request and builds the invocation. A panic while doing
// so is reported as a request error.
func (h *Handler) prepare(r *http.Request) (inv agent.Invocation, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("http.chat.panic", "recover", rec)
			err = &RequestError{Message: fmt.Sprint(rec)}
		}
	}()

	req, err := decodeChatRequest(r, h.opts.MaxBodyBytes)
	if err != nil {
		return inv, err
	}

	inv = agent.Invocation{
		ConversationID:  core.NewID(),
		Messages:        req.CoreMessages(),
		Temperature:     h.opts.DefaultTemperature,
		MaxOutputTokens: h.opts.DefaultMaxOutputTokens,
	}
	if req.Temperature != nil {
		inv.Temperature = *req.Temperature
	}
	if req.MaxOutputTokens != nil {
		inv.MaxOutputTokens = *req.MaxOutputTokens
	}
	return inv, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// IsRequestError reports whether err was caused by a malformed request.
func IsRequestError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}
