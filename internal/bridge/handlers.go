package bridge

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/omtlabs/marketing-bridge/internal/config"
	"github.com/omtlabs/marketing-bridge/internal/errors"
	"github.com/omtlabs/marketing-bridge/internal/logger"
	"github.com/omtlabs/marketing-bridge/internal/marketing"
	"github.com/omtlabs/marketing-bridge/internal/metrics"
)

// Handler exposes the bridge's HTTP surface.
type Handler struct {
	cfg     *config.Config
	invoker marketing.Invoker
	logger  *logger.Logger
}

func NewHandler(cfg *config.Config, invoker marketing.Invoker, log *logger.Logger) *Handler {
	return &Handler{
		cfg:     cfg,
		invoker: invoker,
		logger:  log,
	}
}

// RunRequest is the body of POST /agent/run.
type RunRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id"`
}

// RunAgent handles POST /agent/run: it opens the event stream and runs one
// conversation session over it. Failures before the first byte return a
// direct non-2xx JSON response; after that, everything the client sees is an
// envelope.
func (h *Handler) RunAgent(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context()).WithComponent("agent-run")

	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.AbortWithBadRequest(c, "invalid request body", map[string]interface{}{
			"reason": err.Error(),
		})
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		errors.AbortWithBadRequest(c, "query is required", nil)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		log.Error("response writer doesn't support flushing")
		errors.AbortWithInternal(c, "streaming not supported", nil)
		return
	}

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	writer := &streamWriter{w: c.Writer, flusher: flusher}
	session := NewSession(req.ConversationID, h.invoker, writer, h.cfg.ResultDisplayLimit, h.logger)

	start := time.Now()
	if err := session.Run(c.Request.Context(), req.Query); err != nil {
		// The stream is already open; all we can do is log the delivery
		// failure. The session state machine guarantees nothing partial
		// follows it.
		log.Warn("event stream ended early", "error", err.Error())
	}

	metrics.ObserveSession(string(h.cfg.BridgeMode), string(session.State()), time.Since(start))
}

// Filters handles GET /marketing/filters.
func (h *Handler) Filters(c *gin.Context) {
	labels, fail := h.invoker.Filters(c.Request.Context())
	if fail != nil {
		h.abortWithFailure(c, fail)
		return
	}

	c.JSON(http.StatusOK, gin.H{"filters": labels})
}

// Summary handles GET /marketing/summary.
func (h *Handler) Summary(c *gin.Context) {
	summary, fail := h.invoker.Summary(c.Request.Context())
	if fail != nil {
		h.abortWithFailure(c, fail)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"mode":   string(h.cfg.BridgeMode),
	})
}

// abortWithFailure translates a pre-stream failure into a direct non-2xx
// response.
func (h *Handler) abortWithFailure(c *gin.Context, fail *marketing.Failure) {
	ce := TranslateFailure(fail)
	details := map[string]interface{}{
		"category": string(fail.Category),
	}
	if fail.UpstreamStatus > 0 {
		details["upstream_status"] = fail.UpstreamStatus
	}

	switch ce.Status {
	case http.StatusUnauthorized:
		errors.AbortWithUnauthorized(c, ce.Message, details)
	case http.StatusBadGateway:
		errors.AbortWithBadGateway(c, ce.Message, details)
	case http.StatusGatewayTimeout:
		errors.AbortWithGatewayTimeout(c, ce.Message, details)
	case http.StatusBadRequest:
		errors.AbortWithBadRequest(c, ce.Message, details)
	default:
		errors.AbortWithInternal(c, ce.Message, details)
	}
}

// streamWriter frames envelopes for the chat client: one <event>...</event>
// tag per envelope, flushed immediately.
type streamWriter struct {
	w       gin.ResponseWriter
	flusher http.Flusher
}

func (sw *streamWriter) WriteEvent(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	if _, err := sw.w.WriteString("<event>" + string(data) + "</event>\n"); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	sw.flusher.Flush()
	return nil
}
