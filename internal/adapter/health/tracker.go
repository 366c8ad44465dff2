package health

import (
	"sync"
	"time"
)

const (
	DefaultLogTimeout = 2 * time.Minute
)

// StatusTransitionTracker reduces logging noise by only logging status changes
// and every 10th repeated error (or one every DefaultLogTimeout)
type StatusTransitionTracker struct {
	lastLogTime time.Time
	lastStatus  Status
	errorCount  int
	mu          sync.Mutex
}

func NewStatusTransitionTracker() *StatusTransitionTracker {
	return &StatusTransitionTracker{}
}

func (st *StatusTransitionTracker) ShouldLog(newStatus Status, isError bool) (bool, int) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.lastStatus != newStatus {
		st.lastStatus = newStatus
		st.lastLogTime = time.Now()
		st.errorCount = 0
		return true, 0
	}

	if isError {
		st.errorCount++
		if st.errorCount%10 == 0 || time.Since(st.lastLogTime) > DefaultLogTimeout {
			st.lastLogTime = time.Now()
			return true, st.errorCount
		}
	}

	return false, st.errorCount
}
