package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Paribesh01/pullpal/internal/github"
	"github.com/Paribesh01/pullpal/internal/pipeline"
	"github.com/Paribesh01/pullpal/pkg/logger"
)

// GitHub caps webhook payloads at 25 MB.
const maxPayloadBytes = 25 << 20

// Processor runs a delivery through the review pipeline.
type Processor interface {
	Process(ctx context.Context, ev *github.InboundEvent) (*pipeline.Run, error)
}

// WebhookHandler receives GitHub webhook deliveries.
type WebhookHandler struct {
	processor Processor
	limiter   *RateLimiter
}

// NewWebhookHandler creates a webhook handler. ipRateLimitPerMin limits
// requests per client address before anything is verified; 0 disables it.
func NewWebhookHandler(processor Processor, ipRateLimitPerMin int) *WebhookHandler {
	h := &WebhookHandler{processor: processor}
	if ipRateLimitPerMin > 0 {
		h.limiter = NewRateLimiter(ipRateLimitPerMin)
	}
	return h
}

// ServeHTTP reads the raw body once and hands it to the pipeline unparsed.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read webhook body")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}
	defer r.Body.Close()

	ev := &github.InboundEvent{
		Type:       r.Header.Get(github.HeaderEvent),
		DeliveryID: r.Header.Get(github.HeaderDelivery),
		Signature:  r.Header.Get(github.HeaderSignature),
		TargetID:   r.Header.Get(github.HeaderHookTarget),
		Payload:    body,
		ReceivedAt: time.Now(),
	}
	if ev.Type == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing event type"})
		return
	}

	// Nothing in the request is trusted yet, so only the client address
	// can be limited here. Per-repository limits apply after verification.
	if h.limiter != nil && !h.limiter.Allow(clientIP(r)) {
		logger.Warn().Str("delivery_id", ev.DeliveryID).Str("ip", clientIP(r)).Msg("Webhook rate limit exceeded")
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		return
	}

	// The run outlives the request if GitHub stops waiting for it.
	ctx := context.WithoutCancel(r.Context())
	run, _ := h.processor.Process(ctx, ev)

	status, payload := runResponse(run)
	writeJSON(w, status, payload)
}

func runResponse(run *pipeline.Run) (int, map[string]string) {
	switch run.State {
	case pipeline.StateDone, pipeline.StateIgnored, pipeline.StateDuplicate:
		return http.StatusOK, map[string]string{"status": string(run.State), "run_id": run.ID}
	case pipeline.StateThrottled:
		return http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded", "run_id": run.ID}
	case pipeline.StateUnregistered:
		return http.StatusNotFound, map[string]string{"error": "repository not registered"}
	case pipeline.StateRejected:
		if errors.Is(run.Err, github.ErrMalformedEvent) {
			return http.StatusBadRequest, map[string]string{"error": "malformed payload"}
		}
		return http.StatusUnauthorized, map[string]string{"error": "invalid signature"}
	default:
		return http.StatusInternalServerError, map[string]string{"error": "review failed", "run_id": run.ID}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("Failed to write response")
	}
}
