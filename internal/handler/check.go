package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/admission"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/events"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/models"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// lastUsedStore stamps a key after an admitted verdict
type lastUsedStore interface {
	UpdateLastUsed(ctx context.Context, id uuid.UUID)
}

// CheckHandler is the dispatcher-facing admission endpoint. The dispatcher
// forwards the caller's API key and an endpoint label; the response carries
// the verdict plus the usual rate limit headers.
type CheckHandler struct {
	engine   *admission.Engine
	keys     lastUsedStore
	recorder *service.DecisionRecorder
}

func NewCheckHandler(engine *admission.Engine, keys lastUsedStore, recorder *service.DecisionRecorder) *CheckHandler {
	return &CheckHandler{
		engine:   engine,
		keys:     keys,
		recorder: recorder,
	}
}

func (h *CheckHandler) Check(c *gin.Context) {
	start := time.Now()

	secret := strings.TrimSpace(c.GetHeader("X-API-Key"))

	var req struct {
		Endpoint string `json:"endpoint"`
	}
	// Body is optional - an empty endpoint label is recorded as "/"
	c.ShouldBindJSON(&req)
	if req.Endpoint == "" {
		req.Endpoint = c.Query("endpoint")
	}
	if req.Endpoint == "" {
		req.Endpoint = "/"
	}

	ctx := c.Request.Context()
	verdict := h.engine.Check(ctx, secret, req.Endpoint)

	if verdict.MinuteLimit > 0 {
		remaining := int64(verdict.MinuteLimit) - verdict.MinuteCount
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", verdict.MinuteLimit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", start.Truncate(time.Minute).Add(time.Minute).Unix()))
	}

	h.record(c, verdict, req.Endpoint, start)

	if verdict.Admitted {
		if verdict.KeyID != "" {
			if id, err := uuid.Parse(verdict.KeyID); err == nil {
				h.markUsed(id)
			}
		}
		c.JSON(http.StatusOK, verdict)
		return
	}

	switch verdict.ReasonCode {
	case admission.ReasonOverLimit:
		c.Header("Retry-After", fmt.Sprintf("%d", verdict.RetryAfterSeconds))
		c.JSON(http.StatusTooManyRequests, verdict)
	case admission.ReasonDisabled:
		c.JSON(http.StatusForbidden, verdict)
	case admission.ReasonUnavailable:
		c.JSON(http.StatusServiceUnavailable, verdict)
	default:
		c.JSON(http.StatusUnauthorized, verdict)
	}
}

// markUsed stamps the key off the request path. The response is usually
// written before this runs, which cancels the request context, so the
// update gets a detached one.
func (h *CheckHandler) markUsed(id uuid.UUID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		h.keys.UpdateLastUsed(ctx, id)
	}()
}

func (h *CheckHandler) record(c *gin.Context, verdict *admission.Verdict, endpoint string, start time.Time) {
	entry := models.RequestLog{
		Timestamp:      start,
		Endpoint:       endpoint,
		Outcome:        outcomeFor(verdict),
		Reason:         verdict.ReasonCode,
		ResponseTimeMs: int(time.Since(start).Milliseconds()),
		IPAddress:      c.ClientIP(),
	}

	if verdict.KeyID != "" {
		if id, err := uuid.Parse(verdict.KeyID); err == nil {
			entry.APIKeyID = &id
		}
	}

	h.recorder.Record(entry)
}

func outcomeFor(verdict *admission.Verdict) string {
	if verdict.Admitted {
		return events.OutcomeSuccess
	}

	switch verdict.ReasonCode {
	case admission.ReasonOverLimit:
		return events.OutcomeBlocked
	case admission.ReasonDisabled:
		return events.OutcomeDisabled
	default:
		return events.OutcomeUnauthorized
	}
}
