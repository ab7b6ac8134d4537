// Package analytics carries query events from the searcher to the
// analytics service over Kafka and aggregates them there.
package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventSuggest    EventType = "suggest"
	EventIndexBuilt EventType = "index_built"
)

// QueryEvent describes one answered search or suggest request.
type QueryEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Terms     []string  `json:"terms,omitempty"`
	Word      string    `json:"word,omitempty"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// IndexEvent is published once a searcher finishes building its index.
type IndexEvent struct {
	Type       EventType `json:"type"`
	Source     string    `json:"source"`
	Documents  int       `json:"documents"`
	Terms      int       `json:"terms"`
	KGrams     int       `json:"kgrams"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// EventKey is the Kafka partition key of an event.
func EventKey(event any) string {
	switch e := event.(type) {
	case QueryEvent:
		return string(e.Type)
	case IndexEvent:
		return string(e.Type)
	default:
		return "analytics"
	}
}
