package httpapi

import (
	"sync"

	"github.com/gearforge/gearforge/internal/gear"
)

// handlers holds the live, in-process gear registry plus every
// collaborator needed to serve a request. Gears are cached in memory
// once loaded or created; Storage is the durability backstop consulted
// on a cache miss and written on every mutation.
type handlers struct {
	deps Deps

	mu    sync.RWMutex
	gears map[string]*gear.Gear
}
