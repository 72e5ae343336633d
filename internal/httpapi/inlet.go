package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gearforge/gearforge/internal/runtime"
)

// inlet is the patch trigger surface: POST /inlet/{id}. Validation
// failures on id or body are plain 400s returned before any stream is
// opened; once the stream is committed, every later failure, including
// a patch that fails to load, becomes a single SSE error frame instead,
// since the open stream is itself the response contract.
func (h *handlers) inlet(c *gin.Context) {
	id := c.Param("id")
	if strings.TrimSpace(id) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid patch id"})
		return
	}

	var initialInput any
	if err := c.ShouldBindJSON(&initialInput); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}

	def, loadErr := h.loadPatch(c, id)

	flusher := startSSE(c)
	if loadErr != nil {
		writeSSE(c, flusher, "error", gin.H{"message": loadErr.Error()})
		return
	}

	events, runErr := h.deps.Engine.Run(c.Request.Context(), def, initialInput)
	if runErr != nil {
		writeSSE(c, flusher, "error", gin.H{"message": runErr.Error()})
		return
	}

	ctx := c.Request.Context()
	ticker := time.NewTicker(runtimeKeepalive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			writeSSEEvent(c, flusher, ev)
		case <-ticker.C:
			writeSSEComment(c, flusher, "ping")
		}
	}
}

const runtimeKeepalive = 30 * time.Second

func writeSSEEvent(c *gin.Context, flusher http.Flusher, ev runtime.Event) {
	if ev.Type == runtime.NodeError {
		writeSSE(c, flusher, "error", ev)
		return
	}
	writeSSE(c, flusher, "", ev)
}
