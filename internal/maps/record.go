package maps

import "time"

// Record describes one successfully produced map.
type Record struct {
	Kind        Kind      `json:"kind"`
	Filename    string    `json:"filename"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	GeneratedAt time.Time `json:"generatedAt"`
	ModelUsed   string    `json:"modelUsed"`
}

// ResultSet is the outcome of one pipeline run. Maps keeps request order and
// holds successes only.
type ResultSet struct {
	RunID         string   `json:"runId,omitempty"`
	Maps          []Record `json:"maps"`
	SourceWidth   int      `json:"sourceWidth"`
	SourceHeight  int      `json:"sourceHeight"`
	InputFilename string   `json:"inputFilename"`
}

// Kinds returns the kinds of the produced maps in order.
func (r ResultSet) Kinds() []Kind {
	kinds := make([]Kind, len(r.Maps))
	for i, m := range r.Maps {
		kinds[i] = m.Kind
	}
	return kinds
}

// Status is the state carried by an Event.
type Status string

const (
	StatusStarted   Status = "started"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Event reports progress on one kind of a run.
type Event struct {
	RunID  string    `json:"runId,omitempty"`
	Kind   Kind      `json:"kind"`
	Status Status    `json:"status"`
	Error  string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}

// Observer receives events synchronously from the running goroutine.
type Observer func(Event)
