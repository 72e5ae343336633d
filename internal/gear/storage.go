package gear

import (
	"encoding/json"
	"time"

	"github.com/gearforge/gearforge/internal/errs"
)

// record is the JSON-serializable projection of a Gear's persistent
// state (storage knows nothing about sync.Mutex or the llm.Model/
// Forwarder collaborators, which are wired back in at load time).
type record struct {
	ID            string     `json:"id"`
	Label         string     `json:"label"`
	Messages      []Message  `json:"messages"`
	ExampleInputs []Example  `json:"exampleInputs"`
	OutputURLs    []string   `json:"outputUrls"`
	Log           []LogEntry `json:"log"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// MarshalForStorage renders the gear's persistent fields as the opaque
// JSON value stored under key "gear:<id>" by internal/storage.
func (g *Gear) MarshalForStorage() ([]byte, error) {
	snap := g.Snapshot()
	return json.Marshal(record{
		ID:            snap.ID,
		Label:         snap.Label,
		Messages:      snap.Messages,
		ExampleInputs: snap.ExampleInputs,
		OutputURLs:    snap.OutputURLs,
		Log:           snap.Log,
		CreatedAt:     snap.CreatedAt,
		UpdatedAt:     snap.UpdatedAt,
	})
}

// RestoreFromStorage populates a freshly constructed Gear (via New) with
// the persistent fields encoded by MarshalForStorage. model/forwarder/
// originBase are not part of the stored record; New already wired them.
func (g *Gear) RestoreFromStorage(data []byte) error {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return errs.Wrap(errs.BadRequest, "stored gear record is not valid JSON", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Label = rec.Label
	g.Messages = rec.Messages
	g.ExampleInputs = rec.ExampleInputs
	g.OutputURLs = rec.OutputURLs
	g.Log = rec.Log
	g.CreatedAt = rec.CreatedAt
	g.UpdatedAt = rec.UpdatedAt
	for _, m := range rec.Messages {
		if m.Role == RoleUser {
			g.lastUserMessage = m.Content
		}
	}
	return nil
}
