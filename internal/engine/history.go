package engine

import (
	"sync"

	"github.com/google/uuid"

	"github.com/draven0x/wayfinder/api/schemas"
)

// caseLog is a bounded, most-recent-first record of reported outcomes. It is
// deliberately in-process only; the durable truth about an edge lives in its
// aggregated counters, the log just gives the assembler concrete examples.
type caseLog struct {
	mu    sync.Mutex
	cap   int
	cases []schemas.HistoricalCase
}

func newCaseLog(capacity int) *caseLog {
	if capacity <= 0 {
		capacity = 256
	}
	return &caseLog{cap: capacity}
}

// Add prepends a case, assigning it an ID, and evicts the oldest entries
// beyond capacity.
func (l *caseLog) Add(c schemas.HistoricalCase) {
	c.ID = uuid.NewString()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.cases = append([]schemas.HistoricalCase{c}, l.cases...)
	if len(l.cases) > l.cap {
		l.cases = l.cases[:l.cap]
	}
}

// Recent returns up to limit cases of the given polarity for an application,
// newest first.
func (l *caseLog) Recent(appID string, success bool, limit int) []schemas.HistoricalCase {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := []schemas.HistoricalCase{}
	for _, c := range l.cases {
		if c.AppID != appID || c.Success != success {
			continue
		}
		out = append(out, c)
		if len(out) >= limit {
			break
		}
	}
	return out
}
