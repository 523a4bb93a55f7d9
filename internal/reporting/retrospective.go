// Package reporting summarizes terminal checkout outcomes for operations
// review: how many sessions confirmed, how much was charged per currency,
// and which failure codes and lifecycle stages dominate.
package reporting

import (
	"sync"
	"time"
)

// Terminal outcome labels recorded per session.
const (
	OutcomeConfirmed = "CONFIRMED"
	OutcomeFailed    = "FAILED"
	OutcomeError     = "ERROR"
)

// LogEntry is one terminal checkout session outcome.
type LogEntry struct {
	Timestamp   time.Time
	SessionID   string
	OrderID     string
	Outcome     string // OutcomeConfirmed, OutcomeFailed or OutcomeError
	Amount      int64  // minor currency unit
	Currency    string
	FailureCode string // set for FAILED/ERROR outcomes
	Stage       string // lifecycle stage the session ended in
}

// RetrospectiveReport summarizes a window of checkout outcomes.
type RetrospectiveReport struct {
	TotalSessions        int              `json:"totalSessions"`
	ConfirmedSessions    int              `json:"confirmedSessions"`
	FailedSessions       int              `json:"failedSessions"`
	ErrorSessions        int              `json:"errorSessions"`
	ConfirmedAmountTotal int64            `json:"confirmedAmountTotal"`
	AmountByCurrency     map[string]int64 `json:"amountByCurrency"`
	FailureBreakdown     map[string]int   `json:"failureBreakdown"`
	StageBreakdown       map[string]int   `json:"stageBreakdown"`
	DateFrom             time.Time        `json:"dateFrom"`
	DateTo               time.Time        `json:"dateTo"`
}

// Recorder is a thread-safe sink of session outcomes. The orchestrator
// appends one entry per terminal session.
type Recorder struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends one terminal outcome. A zero timestamp is filled in.
func (r *Recorder) Record(entry LogEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// GenerateRetrospective analyzes the recorded outcomes into a report.
func (r *Recorder) GenerateRetrospective() *RetrospectiveReport {
	return generate(r.Entries())
}

func generate(logs []LogEntry) *RetrospectiveReport {
	report := &RetrospectiveReport{
		AmountByCurrency: make(map[string]int64),
		FailureBreakdown: make(map[string]int),
		StageBreakdown:   make(map[string]int),
	}
	if len(logs) == 0 {
		return report
	}

	report.DateFrom = logs[0].Timestamp
	report.DateTo = logs[0].Timestamp

	for _, entry := range logs {
		report.TotalSessions++

		if entry.Timestamp.Before(report.DateFrom) {
			report.DateFrom = entry.Timestamp
		}
		if entry.Timestamp.After(report.DateTo) {
			report.DateTo = entry.Timestamp
		}
		if entry.Stage != "" {
			report.StageBreakdown[entry.Stage]++
		}

		switch entry.Outcome {
		case OutcomeConfirmed:
			report.ConfirmedSessions++
			report.ConfirmedAmountTotal += entry.Amount
			report.AmountByCurrency[entry.Currency] += entry.Amount
		case OutcomeFailed:
			report.FailedSessions++
			if entry.FailureCode != "" {
				report.FailureBreakdown[entry.FailureCode]++
			}
		case OutcomeError:
			report.ErrorSessions++
			if entry.FailureCode != "" {
				report.FailureBreakdown[entry.FailureCode]++
			}
		}
	}
	return report
}
