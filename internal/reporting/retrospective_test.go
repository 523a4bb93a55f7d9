package reporting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRetrospective_Empty(t *testing.T) {
	report := NewRecorder().GenerateRetrospective()
	require.NotNil(t, report)
	assert.Zero(t, report.TotalSessions)
	assert.NotNil(t, report.AmountByCurrency)
	assert.NotNil(t, report.FailureBreakdown)
	assert.NotNil(t, report.StageBreakdown)
}

func TestGenerateRetrospective_MixedOutcomes(t *testing.T) {
	rec := NewRecorder()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	rec.Record(LogEntry{Timestamp: base, SessionID: "s1", OrderID: "ORD1", Outcome: OutcomeConfirmed, Amount: 22000, Currency: "KRW", Stage: "confirm"})
	rec.Record(LogEntry{Timestamp: base.Add(time.Minute), SessionID: "s2", OrderID: "ORD2", Outcome: OutcomeConfirmed, Amount: 5000, Currency: "KRW", Stage: "confirm"})
	rec.Record(LogEntry{Timestamp: base.Add(2 * time.Minute), SessionID: "s3", OrderID: "ORD3", Outcome: OutcomeFailed, Amount: 9000, Currency: "KRW", FailureCode: "INVALID_CARD", Stage: "confirm"})
	rec.Record(LogEntry{Timestamp: base.Add(3 * time.Minute), SessionID: "s4", OrderID: "ORD4", Outcome: OutcomeFailed, Amount: 1000, Currency: "KRW", FailureCode: "INVALID_CARD", Stage: "redirect"})
	rec.Record(LogEntry{Timestamp: base.Add(4 * time.Minute), SessionID: "s5", OrderID: "ORD5", Outcome: OutcomeError, Amount: 800, Currency: "KRW", FailureCode: "VALIDATION", Stage: "intent"})

	report := rec.GenerateRetrospective()
	assert.Equal(t, 5, report.TotalSessions)
	assert.Equal(t, 2, report.ConfirmedSessions)
	assert.Equal(t, 2, report.FailedSessions)
	assert.Equal(t, 1, report.ErrorSessions)
	assert.Equal(t, int64(27000), report.ConfirmedAmountTotal, "only confirmed amounts are charged")
	assert.Equal(t, int64(27000), report.AmountByCurrency["KRW"])
	assert.Equal(t, 2, report.FailureBreakdown["INVALID_CARD"])
	assert.Equal(t, 1, report.FailureBreakdown["VALIDATION"])
	assert.Equal(t, 3, report.StageBreakdown["confirm"])
	assert.Equal(t, base, report.DateFrom)
	assert.Equal(t, base.Add(4*time.Minute), report.DateTo)
}

func TestRecord_FillsTimestamp(t *testing.T) {
	rec := NewRecorder()
	rec.Record(LogEntry{SessionID: "s1", Outcome: OutcomeConfirmed, Amount: 1, Currency: "KRW"})
	entries := rec.Entries()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Timestamp.IsZero())
}
