package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gearforge/gearforge/internal/patch"
	"github.com/gearforge/gearforge/internal/storage"
)

type patchRequest struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Nodes       []patch.Node `json:"nodes"`
	Edges       []patch.Edge `json:"edges"`
}

func (h *handlers) createPatch(c *gin.Context) {
	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	def := &patch.Definition{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := def.Validate(); err != nil {
		writeErr(c, err)
		return
	}

	if err := h.persistPatch(c, def); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, def)
}

func (h *handlers) listPatches(c *gin.Context) {
	keys, err := h.deps.Store.ListByPrefix(c.Request.Context(), "patch:")
	if err != nil {
		writeErr(c, err)
		return
	}
	out := make([]*patch.Definition, 0, len(keys))
	for _, key := range keys {
		id := strings.TrimPrefix(key, "patch:")
		def, err := h.loadPatch(c, id)
		if err != nil {
			continue
		}
		out = append(out, def)
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) getPatch(c *gin.Context) {
	id := c.Param("id")
	def, err := h.loadPatch(c, id)
	if err != nil {
		notFound(c, id)
		return
	}
	c.JSON(http.StatusOK, def)
}

func (h *handlers) updatePatch(c *gin.Context) {
	id := c.Param("id")
	existing, err := h.loadPatch(c, id)
	if err != nil {
		notFound(c, id)
		return
	}

	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	def := &patch.Definition{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
		CreatedAt:   existing.CreatedAt,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := def.Validate(); err != nil {
		writeErr(c, err)
		return
	}

	if err := h.persistPatch(c, def); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

// deletePatch removes a patch and cascades to every gear its nodes
// reference. A gear deletion failure is logged, not fatal: the patch
// itself is still removed so the caller isn't left unable to delete a
// patch over one stale gear reference.
func (h *handlers) deletePatch(c *gin.Context) {
	id := c.Param("id")

	def, err := h.loadPatch(c, id)
	if err != nil {
		notFound(c, id)
		return
	}

	for _, node := range def.Nodes {
		if node.GearID == "" {
			continue
		}
		if err := h.deps.Store.Delete(c.Request.Context(), storage.GearKey(node.GearID)); err != nil {
			h.deps.Log.Warn("cascade gear delete failed",
				"patch_id", id, "gear_id", node.GearID, "error", err)
		}
		h.mu.Lock()
		delete(h.gears, node.GearID)
		h.mu.Unlock()
	}

	if err := h.deps.Store.Delete(c.Request.Context(), storage.PatchKey(id)); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// runPatch executes the patch and streams its event sequence as SSE. A
// failure to validate or topologically sort the definition is reported
// as a 4xx before the stream opens; once the engine starts, every later
// failure is a NodeError event inside the stream instead.
func (h *handlers) runPatch(c *gin.Context) {
	id := c.Param("id")
	def, err := h.loadPatch(c, id)
	if err != nil {
		notFound(c, id)
		return
	}

	var initialInput any
	if err := c.ShouldBindJSON(&initialInput); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, err := h.deps.Engine.Run(c.Request.Context(), def, initialInput)
	if err != nil {
		writeErr(c, err)
		return
	}

	flusher := startSSE(c)
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			writeSSE(c, flusher, string(ev.Type), ev)
		}
	}
}

func (h *handlers) loadPatch(c *gin.Context, id string) (*patch.Definition, error) {
	data, err := h.deps.Store.Get(c.Request.Context(), storage.PatchKey(id))
	if err != nil {
		return nil, err
	}
	return patch.FromStorage(data)
}

func (h *handlers) persistPatch(c *gin.Context, def *patch.Definition) error {
	data, err := def.MarshalForStorage()
	if err != nil {
		return err
	}
	return h.deps.Store.Put(c.Request.Context(), storage.PatchKey(def.ID), data)
}
