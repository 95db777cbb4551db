// Package breaker implements a per-operation circuit breaker used to shed
// load from a struggling datastore. Counters are process-wide by intent:
// one overloaded instance should stop hammering the database quickly.
package breaker

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// State enumerates the breaker lifecycle.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the conventional state name.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Config tunes breaker behaviour.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit.
	FailureThreshold int
	// Cooldown is how long the circuit stays open before a probe is allowed.
	Cooldown time.Duration
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
	// OnStateChange is invoked with the operation name and new state.
	OnStateChange func(operation string, state State)

	Logger *zap.Logger
}

type operationState struct {
	state        State
	failures     int
	openedAt     time.Time
	halfOpenBusy bool
}

// Breaker tracks consecutive failures per logical operation name.
// Validation outcomes must not be reported here; only datastore failures
// count toward opening the circuit.
type Breaker struct {
	mu            sync.Mutex
	ops           map[string]*operationState
	threshold     int
	cooldown      time.Duration
	now           func() time.Time
	onStateChange func(string, State)
	logger        *zap.Logger
}

// New constructs a breaker applying defaults for zero config values.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 6
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Breaker{
		ops:           make(map[string]*operationState),
		threshold:     cfg.FailureThreshold,
		cooldown:      cfg.Cooldown,
		now:           cfg.Now,
		onStateChange: cfg.OnStateChange,
		logger:        cfg.Logger,
	}
}

// Allow reports whether a call for the operation may proceed. While open it
// returns false until the cooldown elapses, then admits a single half-open
// probe; concurrent callers during the probe are rejected.
func (b *Breaker) Allow(operation string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	op := b.operation(operation)
	switch op.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(op.openedAt) < b.cooldown {
			return false
		}
		b.transition(operation, op, StateHalfOpen)
		op.halfOpenBusy = true
		return true
	case StateHalfOpen:
		if op.halfOpenBusy {
			return false
		}
		op.halfOpenBusy = true
		return true
	}
	return true
}

// Success records a successful call, closing the circuit and resetting the
// consecutive-failure counter.
func (b *Breaker) Success(operation string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	op := b.operation(operation)
	op.failures = 0
	op.halfOpenBusy = false
	if op.state != StateClosed {
		b.transition(operation, op, StateClosed)
	}
}

// Failure records a failed call. In half-open state the circuit reopens
// immediately; in closed state it opens once the threshold is reached.
func (b *Breaker) Failure(operation string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	op := b.operation(operation)
	op.halfOpenBusy = false
	switch op.state {
	case StateHalfOpen:
		op.openedAt = b.now()
		b.transition(operation, op, StateOpen)
	case StateClosed:
		op.failures++
		if op.failures >= b.threshold {
			op.openedAt = b.now()
			b.transition(operation, op, StateOpen)
		}
	}
}

// Release frees the half-open probe slot for a call that was admitted by
// Allow but resolved without a datastore verdict, such as a validation
// rejection. Without it the probe slot would stay occupied and the circuit
// could never re-test the datastore.
func (b *Breaker) Release(operation string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.operation(operation).halfOpenBusy = false
}

// State returns the current state for an operation.
func (b *Breaker) State(operation string) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.operation(operation).state
}

func (b *Breaker) operation(name string) *operationState {
	op, ok := b.ops[name]
	if !ok {
		op = &operationState{state: StateClosed}
		b.ops[name] = op
	}
	return op
}

func (b *Breaker) transition(name string, op *operationState, next State) {
	prev := op.state
	op.state = next
	b.logger.Sugar().Infow("circuit state change",
		"operation", name,
		"from", prev.String(),
		"to", next.String(),
		"failures", op.failures,
	)
	if b.onStateChange != nil {
		b.onStateChange(name, next)
	}
}
