package audit

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var deviceCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cxdash_device_api_calls_total",
	Help: "REST calls issued to managed switches, by category and outcome.",
}, []string{"category", "outcome"})

// Recorder accepts completed call events.
type Recorder interface {
	Record(event *Event)
}

// Filter selects events from the history.
type Filter struct {
	SwitchIP    string
	Category    string
	SuccessOnly bool
	FailureOnly bool
	Limit       int
}

// Stats summarizes recorded calls.
type Stats struct {
	TotalCalls      int            `json:"total_calls"`
	SuccessfulCalls int            `json:"successful_calls"`
	FailedCalls     int            `json:"failed_calls"`
	SuccessRate     float64        `json:"success_rate"`
	AverageDuration float64        `json:"average_duration"`
	Categories      map[string]int `json:"categories"`
	Switches        map[string]int `json:"switches"`
	LastCall        string         `json:"last_call,omitempty"`
}

// History keeps the most recent call events in a bounded ring and feeds the
// prometheus call counter. It optionally forwards every event to a secondary
// sink (the JSONL file logger).
type History struct {
	mu      sync.Mutex
	events  []*Event
	max     int
	forward Recorder
}

// NewHistory creates a history bounded to max events.
func NewHistory(max int) *History {
	if max <= 0 {
		max = 100
	}
	return &History{max: max}
}

// Forward sets a secondary sink receiving every recorded event.
func (h *History) Forward(r Recorder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.forward = r
}

// Record appends an event, evicting the oldest when full.
func (h *History) Record(event *Event) {
	outcome := "success"
	if !event.Success {
		outcome = "failure"
	}
	deviceCalls.WithLabelValues(event.Category, outcome).Inc()

	h.mu.Lock()
	h.events = append(h.events, event)
	if len(h.events) > h.max {
		h.events = h.events[1:]
	}
	fwd := h.forward
	h.mu.Unlock()

	if fwd != nil {
		fwd.Record(event)
	}
}

// Recent returns matching events, most recent last.
func (h *History) Recent(filter Filter) []*Event {
	h.mu.Lock()
	events := make([]*Event, len(h.events))
	copy(events, h.events)
	h.mu.Unlock()

	var out []*Event
	for _, e := range events {
		if filter.SwitchIP != "" && e.SwitchIP != filter.SwitchIP {
			continue
		}
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		if filter.SuccessOnly && !e.Success {
			continue
		}
		if filter.FailureOnly && e.Success {
			continue
		}
		out = append(out, e)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out
}

// Statistics computes aggregate call statistics over the retained history.
func (h *History) Statistics() Stats {
	h.mu.Lock()
	events := make([]*Event, len(h.events))
	copy(events, h.events)
	h.mu.Unlock()

	s := Stats{
		Categories: make(map[string]int),
		Switches:   make(map[string]int),
	}
	if len(events) == 0 {
		return s
	}

	var totalDuration float64
	for _, e := range events {
		s.TotalCalls++
		if e.Success {
			s.SuccessfulCalls++
		}
		totalDuration += e.DurationMS
		s.Categories[e.Category]++
		s.Switches[e.SwitchIP]++
	}
	s.FailedCalls = s.TotalCalls - s.SuccessfulCalls
	s.SuccessRate = float64(s.SuccessfulCalls) / float64(s.TotalCalls) * 100
	s.AverageDuration = totalDuration / float64(s.TotalCalls)
	s.LastCall = events[len(events)-1].Timestamp.Format("2006-01-02T15:04:05Z07:00")
	return s
}

// Clear drops all retained events and returns how many were removed.
func (h *History) Clear() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.events)
	h.events = nil
	return n
}
