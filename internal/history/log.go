// Package history keeps the per-session log of explicit predictions and
// renders it as the downloadable CSV table.
package history

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Danangellotti/app-incendios-cordoba/internal/features"
	"github.com/Danangellotti/app-incendios-cordoba/internal/ml"
	"github.com/Danangellotti/app-incendios-cordoba/internal/risk"
)

// Entry is one recorded prediction. Entries are never modified once appended.
type Entry struct {
	Timestamp   time.Time      `json:"timestamp"`
	Humidity    float64        `json:"humidity"`
	WindSpeed   float64        `json:"wind_speed"`
	Temperature float64        `json:"temperature"`
	Label       ml.Label       `json:"label"`
	Probability ml.Probability `json:"probability"`
	AlertCount  int            `json:"alert_count"`
}

// NewEntry builds an entry from an evaluation. The timestamp is truncated to
// the second, the resolution of the export format.
func NewEntry(ts time.Time, res risk.Result) Entry {
	return Entry{
		Timestamp:   ts.Truncate(time.Second),
		Humidity:    res.Features.Humidity,
		WindSpeed:   res.Features.WindSpeed,
		Temperature: res.Features.Temperature,
		Label:       res.Label,
		Probability: res.Probability,
		AlertCount:  res.Alerts.Len(),
	}
}

func (e Entry) Features() features.Vector {
	return features.New(e.Humidity, e.WindSpeed, e.Temperature)
}

// Log is the ordered sequence of a session's predictions. It grows until
// Clear is called.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	clock   clockwork.Clock
}

// NewLog creates an empty log stamping entries with clock. A nil clock uses
// the wall clock.
func NewLog(clock clockwork.Clock) *Log {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Log{clock: clock}
}

// Record appends the evaluation stamped with the current time.
func (l *Log) Record(res risk.Result) Entry {
	e := NewEntry(l.clock.Now(), res)
	l.Append(e)
	return e
}

func (l *Log) Append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Clear drops every entry and returns how many were removed.
func (l *Log) Clear() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.entries)
	l.entries = nil
	return n
}

// Entries returns a snapshot copy in insertion order.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Log) Summary() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Summarize(l.entries)
}

// Summary aggregates a log. MeanProbability averages only the entries that
// have a probability; UnavailableCount reports the excluded ones, and the mean
// is Unavailable when ProbabilityCount is zero.
type Summary struct {
	Count            int            `json:"count"`
	CountLow         int            `json:"count_low"`
	CountHigh        int            `json:"count_high"`
	MeanProbability  ml.Probability `json:"mean_probability"`
	ProbabilityCount int            `json:"probability_count"`
	UnavailableCount int            `json:"unavailable_count"`
}

func Summarize(entries []Entry) Summary {
	var s Summary
	var sum float64
	for _, e := range entries {
		s.Count++
		if e.Label == ml.LabelModerateHigh {
			s.CountHigh++
		} else {
			s.CountLow++
		}
		if p, ok := e.Probability.Value(); ok {
			sum += p
			s.ProbabilityCount++
		} else {
			s.UnavailableCount++
		}
	}
	if s.ProbabilityCount > 0 {
		s.MeanProbability = ml.Available(sum / float64(s.ProbabilityCount))
	}
	return s
}
