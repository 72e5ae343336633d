// Package httpapi wires the gin router: the gear and patch CRUD surface,
// the inlet SSE endpoint, and a Prometheus /metrics handler.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gearforge/gearforge/internal/bus"
	"github.com/gearforge/gearforge/internal/gear"
	"github.com/gearforge/gearforge/internal/llm"
	"github.com/gearforge/gearforge/internal/runtime"
	"github.com/gearforge/gearforge/internal/storage"
	"github.com/gearforge/gearforge/internal/urlguard"
)

// Server hosts the gin router and its http.Server.
type Server struct {
	srv *http.Server
	log *slog.Logger
}

// Deps collects every collaborator a handler needs. All fields are
// required except PublicOrigin, which may be empty.
type Deps struct {
	Store        storage.Store
	Engine       *runtime.Engine
	Bus          *bus.Bus
	Model        llm.Model
	Guard        *urlguard.Guard
	PublicOrigin string
	Log          *slog.Logger
}

// NewServer builds the router and binds it to addr. Call Start to serve.
func NewServer(addr string, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(deps.Log))

	h := &handlers{deps: deps, gears: make(map[string]*gear.Gear)}

	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	patches := router.Group("/patches")
	{
		patches.POST("", h.createPatch)
		patches.GET("", h.listPatches)
		patches.GET("/:id", h.getPatch)
		patches.PUT("/:id", h.updatePatch)
		patches.DELETE("/:id", h.deletePatch)
		patches.POST("/:id/run", h.runPatch)
	}

	gears := router.Group("/gears")
	{
		gears.POST("", h.createGear)
		gears.GET("", h.listGears)
		gears.GET("/:id", h.getGear)
		gears.PUT("/:id", h.updateGear)
		gears.POST("/:id", h.postGear)
		gears.GET("/:id/status", h.gearStatus)
	}

	router.POST("/inlet/:id", h.inlet)

	return &Server{
		srv: &http.Server{Addr: addr, Handler: router},
		log: deps.Log,
	}
}

// Start runs the server in a background goroutine, returning immediately.
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("http server exited", "error", err)
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	}
}

func notFound(c *gin.Context, id string) {
	c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("not found: %s", id)})
}
