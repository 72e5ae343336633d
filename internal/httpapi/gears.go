package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gearforge/gearforge/internal/bus"
	"github.com/gearforge/gearforge/internal/errs"
	"github.com/gearforge/gearforge/internal/gear"
	"github.com/gearforge/gearforge/internal/storage"
)

type createGearRequest struct {
	Label string `json:"label"`
}

func (h *handlers) createGear(c *gin.Context) {
	var req createGearRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := uuid.NewString()
	g := gear.New(id, req.Label, h.deps.Model, newHTTPForwarder(h.deps.Guard), h.deps.PublicOrigin)

	h.mu.Lock()
	h.gears[id] = g
	h.mu.Unlock()

	if err := h.persistGear(c, g); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, g.Snapshot())
}

func (h *handlers) listGears(c *gin.Context) {
	keys, err := h.deps.Store.ListByPrefix(c.Request.Context(), "gear:")
	if err != nil {
		writeErr(c, err)
		return
	}
	out := make([]gear.SnapshotView, 0, len(keys))
	for _, key := range keys {
		id := strings.TrimPrefix(key, "gear:")
		g, err := h.loadGear(c, id)
		if err != nil {
			continue
		}
		out = append(out, g.Snapshot())
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) getGear(c *gin.Context) {
	id := c.Param("id")
	g, err := h.loadGear(c, id)
	if err != nil {
		notFound(c, id)
		return
	}
	c.JSON(http.StatusOK, g.Snapshot())
}

type updateGearRequest struct {
	Label         *string        `json:"label"`
	OutputURLs    []string       `json:"outputUrls"`
	ExampleInputs []gear.Example `json:"exampleInputs"`
	Messages      []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func (h *handlers) updateGear(c *gin.Context) {
	id := c.Param("id")
	g, err := h.loadGear(c, id)
	if err != nil {
		notFound(c, id)
		return
	}

	var req updateGearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Label != nil {
		g.SetLabel(*req.Label)
	}
	if req.OutputURLs != nil {
		g.SetOutputURLs(req.OutputURLs)
	}
	if req.ExampleInputs != nil {
		g.SetExampleInputs(req.ExampleInputs)
	}
	for _, m := range req.Messages {
		g.AddMessage(m.Role, m.Content)
	}

	if err := h.persistGear(c, g); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, g.Snapshot())
}

// gearIngressBody covers both shapes POST /gears/{id} accepts: the
// forwarded envelope a gear's own fan-out sends ({data, source_gear}),
// and the direct-caller envelope ({message, source}). Data/Message are
// left as raw JSON so presence can be checked before deciding which
// shape was sent.
type gearIngressBody struct {
	Data       json.RawMessage `json:"data"`
	SourceGear *gear.SourceRef `json:"source_gear"`
	Message    json.RawMessage `json:"message"`
	Source     *string         `json:"source"`
}

// postGear is the direct-HTTP-ingress path: the request body is either a
// forwarded or a direct envelope, processed through the gear's LLM call
// and fanned out to its configured OutputURLs. no_forward and no_log
// query flags suppress the fan-out and audit-log steps respectively, for
// testing a gear in isolation.
func (h *handlers) postGear(c *gin.Context) {
	id := c.Param("id")
	g, err := h.loadGear(c, id)
	if err != nil {
		notFound(c, id)
		return
	}

	var body gearIngressBody
	if err := c.ShouldBindJSON(&body); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var input any
	source := gear.SourceRef{Tag: "http"}
	switch {
	case len(body.Data) > 0:
		if err := json.Unmarshal(body.Data, &input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if body.SourceGear != nil {
			source = *body.SourceGear
		}
	case len(body.Message) > 0:
		if err := json.Unmarshal(body.Message, &input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if body.Source != nil {
			source = gear.SourceRef{Tag: *body.Source}
		}
	}

	noForward := c.Query("no_forward") == "true"
	noLog := c.Query("no_log") == "true"

	// Fan-out runs only after the log entry is written and persisted.
	output, err := g.ProcessWithoutForwarding(c.Request.Context(), input)
	if err != nil {
		writeErr(c, err)
		return
	}

	if !noLog {
		g.AppendLogEntry(gear.LogEntry{
			Timestamp: time.Now().UTC(),
			Input:     input,
			Output:    output,
			Source:    source,
		})
	}

	h.deps.Bus.Publish(id, "processed", output)
	if err := h.persistGear(c, g); err != nil {
		writeErr(c, err)
		return
	}
	if !noForward {
		g.ForwardOutputToGears(c.Request.Context(), output)
	}
	c.JSON(http.StatusOK, gin.H{"output": output})
}

// gearStatus streams the gear's bus.Frame feed as SSE until the client
// disconnects, sending a keepalive comment when no real traffic occurs.
func (h *handlers) gearStatus(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.loadGear(c, id); err != nil {
		notFound(c, id)
		return
	}

	sub := h.deps.Bus.Subscribe(id)
	defer sub.Unsubscribe()

	flusher := startSSE(c)
	ticker := time.NewTicker(bus.Keepalive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-sub.Frames:
			writeSSE(c, flusher, "status", frame)
		case <-ticker.C:
			writeSSEComment(c, flusher, "keepalive")
		}
	}
}

func (h *handlers) loadGear(c *gin.Context, id string) (*gear.Gear, error) {
	h.mu.RLock()
	g, ok := h.gears[id]
	h.mu.RUnlock()
	if ok {
		return g, nil
	}

	data, err := h.deps.Store.Get(c.Request.Context(), storage.GearKey(id))
	if err != nil {
		return nil, err
	}
	g = gear.New(id, "", h.deps.Model, newHTTPForwarder(h.deps.Guard), h.deps.PublicOrigin)
	if err := g.RestoreFromStorage(data); err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.gears[id] = g
	h.mu.Unlock()
	return g, nil
}

func (h *handlers) persistGear(c *gin.Context, g *gear.Gear) error {
	data, err := g.MarshalForStorage()
	if err != nil {
		return errs.Wrap(errs.BadRequest, "failed to serialize gear", err)
	}
	return h.deps.Store.Put(c.Request.Context(), storage.GearKey(g.ID), data)
}

func writeErr(c *gin.Context, err error) {
	kind, ok := errs.KindOf(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(statusForKind(kind), gin.H{"error": err.Error(), "kind": kind})
}

func statusForKind(kind errs.Kind) int {
	switch kind {
	case errs.NotFound:
		return http.StatusNotFound
	case errs.BadRequest, errs.InvalidPatch, errs.InvalidURL:
		return http.StatusBadRequest
	case errs.CycleDetected:
		return http.StatusUnprocessableEntity
	case errs.DisallowedHost:
		return http.StatusForbidden
	case errs.Timeout:
		return http.StatusGatewayTimeout
	case errs.HTTPStatus, errs.LLMFailure:
		return http.StatusBadGateway
	case errs.LocalFnMissing:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
