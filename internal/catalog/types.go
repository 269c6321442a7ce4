// Package catalog defines the core types and interfaces shared by the
// discovery, extraction, embedding and synchronization subsystems.
package catalog

import (
	"time"
)

// Product is one normalized catalog entry, extracted from a single detail
// page and persisted via upsert.
type Product struct {
	ID           string         `json:"id"`
	Source       string         `json:"source"`
	Brand        string         `json:"brand"`
	ProductURL   string         `json:"product_url"`
	AffiliateURL string         `json:"affiliate_url,omitempty"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Price        *float64       `json:"price,omitempty"`
	Currency     string         `json:"currency,omitempty"`
	ImageURL     string         `json:"image_url,omitempty"`
	Sizes        []string       `json:"sizes,omitempty"`
	Category     string         `json:"category,omitempty"`
	Gender       string         `json:"gender,omitempty"`
	SecondHand   bool           `json:"second_hand"`
	Embedding    []float32      `json:"embedding,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at,omitzero"`
}

// HasPrice reports whether a price was resolved during extraction.
func (p *Product) HasPrice() bool {
	return p.Price != nil
}

// RunState is one phase of the pipeline state machine.
type RunState string

// Pipeline states, entered in order during a successful run.
const (
	StateIdle        RunState = "idle"
	StateDiscovering RunState = "discovering"
	StateExtracting  RunState = "extracting"
	StateEmbedding   RunState = "embedding"
	StatePersisting  RunState = "persisting"
	StateReconciling RunState = "reconciling"
	StateDone        RunState = "done"
	StateFailed      RunState = "failed"
)

// RunCounters tracks per-run item outcomes.
type RunCounters struct {
	Discovered int `json:"discovered"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	Embedded   int `json:"embedded"`
	Deleted    int `json:"deleted"`
}

// RunSummary is the terminal report of one pipeline run.
type RunSummary struct {
	RunID      string      `json:"run_id"`
	State      RunState    `json:"state"`
	Counters   RunCounters `json:"counters"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	ErrorText  string      `json:"error_text,omitempty"`
}

// FetchResult is the raw outcome of a single transport GET.
type FetchResult struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}
