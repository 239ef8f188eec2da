package reindex

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// State is the current phase of the rebuild lifecycle.
type State int32

const (
	// Idle means no rebuild is in progress.
	Idle State = iota
	// Building means a replacement graph is under construction.
	Building
	// Validating means the replacement is being benchmarked against the
	// current graph.
	Validating
	// Swapping means the replacement is being promoted.
	Swapping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Building:
		return "building"
	case Validating:
		return "validating"
	case Swapping:
		return "swapping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// InvalidTransitionError is returned when a lifecycle call does not match
// the manager's current state.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("reindex: invalid transition %s -> %s", e.From, e.To)
}

// EventType identifies a lifecycle event.
type EventType int

const (
	EventStarted EventType = iota
	EventProgress
	EventValidating
	EventCompleted
	EventRolledBack
)

// Event is a lifecycle notification delivered to the listener.
type Event struct {
	Type     EventType
	Progress float64
	Before   BenchmarkResult
	After    BenchmarkResult
	Reason   string
}

// Listener receives lifecycle events. Calls are serialized by the manager.
type Listener func(Event)

// BenchmarkResult summarizes a search benchmark run over one graph.
type BenchmarkResult struct {
	P99Latency time.Duration
	Recall     float64
}

// Config tunes divergence detection and the swap gate.
type Config struct {
	// MinCollectionSize is the size below which reindexing is never
	// recommended.
	MinCollectionSize int

	// DivergenceRatio is the optimal/current M ratio above which a
	// rebuild is recommended.
	DivergenceRatio float64

	// Cooldown is the minimum time between completed rebuilds.
	Cooldown time.Duration

	// CheckEvery rate-limits divergence checks.
	CheckEvery time.Duration

	// MaxLatencyRegression is the tolerated relative p99 latency increase
	// of the rebuilt graph, e.g. 0.20 for 20%.
	MaxLatencyRegression float64

	// MaxRecallDrop is the tolerated absolute recall decrease.
	MaxRecallDrop float64
}

// DefaultConfig returns the config used when New receives no overrides.
func DefaultConfig() Config {
	return Config{
		MinCollectionSize:    10_000,
		DivergenceRatio:      1.5,
		Cooldown:             time.Hour,
		CheckEvery:           time.Minute,
		MaxLatencyRegression: 0.20,
		MaxRecallDrop:        0.02,
	}
}

// Manager owns the rebuild state machine. All methods are safe for
// concurrent use; at most one rebuild can be in flight.
type Manager struct {
	state atomic.Int32

	cfg     Config
	limiter *rate.Limiter

	mu            sync.Mutex
	lastCompleted time.Time
	listener      Listener
}

// New returns an idle Manager.
func New(optFns ...func(c *Config)) *Manager {
	cfg := DefaultConfig()
	for _, fn := range optFns {
		fn(&cfg)
	}

	return &Manager{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.CheckEvery), 1),
	}
}

// SetListener installs the lifecycle event listener. A nil listener
// disables notifications.
func (m *Manager) SetListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = l
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// CheckDivergence compares the current parameters against the optimum for
// the collection's present size.
func (m *Manager) CheckDivergence(current Params, size, dimension int) DivergenceCheck {
	optimal := OptimalParams(dimension, size)

	check := DivergenceCheck{
		Current: current,
		Optimal: optimal,
	}
	if current.M > 0 {
		check.Ratio = float64(optimal.M) / float64(current.M)
	}

	switch {
	case size < m.cfg.MinCollectionSize:
		check.Reason = fmt.Sprintf("collection below minimum size %d", m.cfg.MinCollectionSize)
	case check.Ratio < m.cfg.DivergenceRatio:
		check.Reason = fmt.Sprintf("divergence ratio %.2f below threshold %.2f", check.Ratio, m.cfg.DivergenceRatio)
	default:
		check.Recommended = true
		check.Reason = fmt.Sprintf("optimal M %d exceeds current M %d by ratio %.2f", optimal.M, current.M, check.Ratio)
	}

	return check
}

// ShouldReindex reports whether a rebuild should start now. It applies the
// divergence check, the cooldown, the rate limit, and requires the manager
// to be idle.
func (m *Manager) ShouldReindex(current Params, size, dimension int) (DivergenceCheck, bool) {
	check := m.CheckDivergence(current, size, dimension)
	if !check.Recommended {
		return check, false
	}
	if m.State() != Idle {
		return check, false
	}

	m.mu.Lock()
	cooling := !m.lastCompleted.IsZero() && time.Since(m.lastCompleted) < m.cfg.Cooldown
	m.mu.Unlock()
	if cooling {
		return check, false
	}

	if !m.limiter.Allow() {
		return check, false
	}
	return check, true
}

// StartReindex transitions Idle -> Building and emits EventStarted.
func (m *Manager) StartReindex() error {
	if !m.state.CompareAndSwap(int32(Idle), int32(Building)) {
		return &InvalidTransitionError{From: m.State(), To: Building}
	}
	m.emit(Event{Type: EventStarted})
	return nil
}

// ReportProgress emits a progress event; progress is in [0, 1]. It is a
// no-op outside the Building state.
func (m *Manager) ReportProgress(progress float64) {
	if m.State() != Building {
		return
	}
	m.emit(Event{Type: EventProgress, Progress: progress})
}

// StartValidation transitions Building -> Validating with the benchmark
// results measured on the current and the rebuilt graph.
func (m *Manager) StartValidation(before, after BenchmarkResult) error {
	if !m.state.CompareAndSwap(int32(Building), int32(Validating)) {
		return &InvalidTransitionError{From: m.State(), To: Validating}
	}
	m.emit(Event{Type: EventValidating, Before: before, After: after})
	return nil
}

// BeginSwap transitions Validating -> Swapping.
func (m *Manager) BeginSwap() error {
	if !m.state.CompareAndSwap(int32(Validating), int32(Swapping)) {
		return &InvalidTransitionError{From: m.State(), To: Swapping}
	}
	return nil
}

// CompleteReindex transitions Validating or Swapping -> Idle, records the
// completion time for the cooldown, and emits EventCompleted.
func (m *Manager) CompleteReindex() error {
	if !m.state.CompareAndSwap(int32(Swapping), int32(Idle)) &&
		!m.state.CompareAndSwap(int32(Validating), int32(Idle)) {
		return &InvalidTransitionError{From: m.State(), To: Idle}
	}

	m.mu.Lock()
	m.lastCompleted = time.Now()
	m.mu.Unlock()

	m.emit(Event{Type: EventCompleted})
	return nil
}

// Rollback aborts an in-flight rebuild from any non-idle state and emits
// EventRolledBack with the reason.
func (m *Manager) Rollback(reason string) error {
	for {
		s := m.state.Load()
		if State(s) == Idle {
			return &InvalidTransitionError{From: Idle, To: Idle}
		}
		if m.state.CompareAndSwap(s, int32(Idle)) {
			break
		}
	}
	m.emit(Event{Type: EventRolledBack, Reason: reason})
	return nil
}

// ValidateBenchmark decides whether the rebuilt graph may be promoted.
// It fails when p99 latency regresses beyond MaxLatencyRegression or
// recall drops by more than MaxRecallDrop.
func (m *Manager) ValidateBenchmark(before, after BenchmarkResult) error {
	if before.P99Latency > 0 {
		regression := float64(after.P99Latency-before.P99Latency) / float64(before.P99Latency)
		if regression > m.cfg.MaxLatencyRegression {
			return fmt.Errorf("reindex: p99 latency regressed %.0f%% (limit %.0f%%)",
				regression*100, m.cfg.MaxLatencyRegression*100)
		}
	}
	if drop := before.Recall - after.Recall; drop > m.cfg.MaxRecallDrop {
		return fmt.Errorf("reindex: recall dropped %.3f (limit %.3f)", drop, m.cfg.MaxRecallDrop)
	}
	return nil
}

func (m *Manager) emit(ev Event) {
	m.mu.Lock()
	l := m.listener
	m.mu.Unlock()
	if l != nil {
		l(ev)
	}
}
