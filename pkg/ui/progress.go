package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// StatusTracker counts the requests issued by get and watch
type StatusTracker struct {
	mu        sync.Mutex
	total     int
	failed    int
	round     int
	StartTime time.Time
}

// NewStatusTracker creates a new status tracker
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{
		StartTime: time.Now(),
	}
}

// Record counts one request. Transport errors and non-2xx statuses are
// failures.
func (st *StatusTracker) Record(status int, err error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.total++
	if err != nil || status < 200 || status > 299 {
		st.failed++
	}
}

// NextRound starts a new watch round and returns its number
func (st *StatusTracker) NextRound() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.round++
	return st.round
}

// Counts returns the total and failed request counts
func (st *StatusTracker) Counts() (total, failed int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.total, st.failed
}

// GetSuccessBar returns a bar of successful requests over all requests
func (st *StatusTracker) GetSuccessBar() string {
	const width = 20
	total, failed := st.Counts()

	filled := 0
	if total > 0 {
		filled = (total - failed) * width / total
	}

	bar := strings.Repeat(ProgressBar, filled) +
		strings.Repeat(ProgressEmpty, width-filled)

	return fmt.Sprintf("[%s] %d/%d", bar, total-failed, total)
}

// GetElapsedTime returns the elapsed time since tracking started
func (st *StatusTracker) GetElapsedTime() time.Duration {
	return time.Since(st.StartTime)
}

// GetRequestRate returns the average number of requests per minute
func (st *StatusTracker) GetRequestRate() float64 {
	elapsed := st.GetElapsedTime().Minutes()
	if elapsed == 0 {
		return 0
	}
	total, _ := st.Counts()
	return float64(total) / elapsed
}

// Summary describes the requests so far
func (st *StatusTracker) Summary() string {
	total, failed := st.Counts()
	return fmt.Sprintf("%s requests: %d | failed: %d | %.1f req/min",
		st.GetSuccessBar(), total, failed, st.GetRequestRate())
}

// PrintSummary prints the current counts
func (st *StatusTracker) PrintSummary() {
	st.mu.Lock()
	round := st.round
	st.mu.Unlock()

	label := "[DONE]"
	if round > 0 {
		label = fmt.Sprintf("[ROUND %d]", round)
	}
	PrintInfo(label, st.Summary())
}
