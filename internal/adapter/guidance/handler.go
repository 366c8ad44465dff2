package guidance

import (
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/thushan/locallm/internal/core/domain"
	"github.com/thushan/locallm/internal/logger"
)

const DefaultHistorySize = 50

// Entry is one handled error
type Entry struct {
	At       time.Time            `json:"at"`
	Feature  domain.Feature       `json:"feature,omitempty"`
	Code     domain.ErrorCode     `json:"code"`
	Category domain.ErrorCategory `json:"category"`
	Message  string               `json:"message"`
}

type CodeCount struct {
	Code  domain.ErrorCode `json:"code"`
	Count int64            `json:"count"`
}

// Handler turns errors into guidance and remembers the most recent ones
type Handler struct {
	logger  *logger.StyledLogger
	counts  *xsync.Map[domain.ErrorCode, *xsync.Counter]
	entries []Entry
	next    int
	size    int
	full    bool
	mu      sync.Mutex
}

func NewHandler(log *logger.StyledLogger, historySize int) *Handler {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Handler{
		logger:  log,
		counts:  xsync.NewMap[domain.ErrorCode, *xsync.Counter](),
		entries: make([]Entry, historySize),
		size:    historySize,
	}
}

// Handle records err against feature and returns the guidance to show
func (h *Handler) Handle(feature domain.Feature, err error) Guidance {
	g := For(err)
	if err == nil {
		return g
	}

	llmErr := domain.WrapUnknown(err)
	h.record(Entry{
		At:       time.Now(),
		Feature:  feature,
		Code:     llmErr.Code,
		Category: llmErr.Category,
		Message:  llmErr.Error(),
	})

	args := []any{"feature", feature, "code", llmErr.Code, "strategy", g.Strategy, "error", llmErr}
	switch g.Severity {
	case SeverityInfo:
		h.logger.Debug(g.Title, args...)
	case SeverityWarning:
		h.logger.Warn(g.Title, args...)
	default:
		h.logger.Error(g.Title, args...)
	}
	return g
}

func (h *Handler) record(e Entry) {
	counter, _ := h.counts.LoadOrCompute(e.Code, func() (*xsync.Counter, bool) {
		return xsync.NewCounter(), false
	})
	counter.Inc()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.next] = e
	h.next = (h.next + 1) % h.size
	if h.next == 0 {
		h.full = true
	}
}

// Recent returns up to n entries, newest first
func (h *Handler) Recent(n int) []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	total := h.next
	if h.full {
		total = h.size
	}
	if n <= 0 || n > total {
		n = total
	}

	out := make([]Entry, 0, n)
	for i := 1; i <= n; i++ {
		idx := (h.next - i + h.size) % h.size
		out = append(out, h.entries[idx])
	}
	return out
}

// Counts returns how often each code was seen, most frequent first
func (h *Handler) Counts() []CodeCount {
	var out []CodeCount
	h.counts.Range(func(code domain.ErrorCode, c *xsync.Counter) bool {
		out = append(out, CodeCount{Code: code, Count: c.Value()})
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Code < out[j].Code
		}
		return out[i].Count > out[j].Count
	})
	return out
}

// Clear forgets all history
func (h *Handler) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = make([]Entry, h.size)
	h.next = 0
	h.full = false
	h.counts.Clear()
}
