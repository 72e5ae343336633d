package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// startSSE writes the headers that keep intermediate proxies from
// buffering the response and returns the response's Flusher.
func startSSE(c *gin.Context) http.Flusher {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	flusher, _ := c.Writer.(http.Flusher)
	return flusher
}

// writeSSE writes one named SSE frame and flushes it immediately so the
// client sees it without buffering delay.
func writeSSE(c *gin.Context, flusher http.Flusher, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(`{"error":"failed to marshal event payload"}`)
	}
	if event == "" {
		fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	} else {
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data)
	}
	if flusher != nil {
		flusher.Flush()
	}
}

// writeSSEComment writes a comment line, used for keepalive pings that
// must not be parsed as a data event by the client's EventSource.
func writeSSEComment(c *gin.Context, flusher http.Flusher, comment string) {
	fmt.Fprintf(c.Writer, ": %s\n\n", comment)
	if flusher != nil {
		flusher.Flush()
	}
}
