package progress

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultThinkingInterval is how long each thinking step stays on screen.
const DefaultThinkingInterval = 1500 * time.Millisecond

// Option configures a Projector.
type Option func(*Projector)

// WithInterval sets the thinking animation interval. Non-positive values are
// ignored.
func WithInterval(d time.Duration) Option {
	return func(p *Projector) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithOnChange registers fn to receive every new snapshot, from event
// application and from animation ticks. Calls to fn are serial, in the order
// the snapshots were taken, and never hold the Projector's lock. fn may call
// back into the Projector; snapshots produced by such calls are delivered
// after fn returns.
func WithOnChange(fn func(State)) Option {
	return func(p *Projector) {
		p.onChange = fn
	}
}

// WithLogger sets the logger used for suspicious event sequences.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Projector) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Projector owns the progress of one run at a time. It keeps the
// authoritative fold of every applied event and, separately, the cosmetic
// thinking cursors advanced by a background ticker.
//
// The ticker only runs while State.Animating holds. It is cancelled and
// joined when the run completes, on Reset and on Close.
type Projector struct {
	interval time.Duration
	onChange func(State)
	logger   *zap.Logger

	mu      sync.Mutex
	events  []Event
	state   State
	cursors map[AgentID]int
	run     uint64
	anim    *animation
	closed  bool

	// Pending snapshots. They are queued under mu and handed to onChange by
	// whichever goroutine holds the draining flag.
	qmu      sync.Mutex
	queue    []State
	draining bool
}

// animation is one running ticker goroutine, bound to the run it was
// started for.
type animation struct {
	run    uint64
	cancel context.CancelFunc
	done   chan struct{}

	// delivering is set while this goroutine runs onChange callbacks. A stop
	// issued then cannot join it, since the stop may come from the callback.
	delivering atomic.Bool
}

// NewProjector returns a Projector at the baseline state.
func NewProjector(opts ...Option) *Projector {
	p := &Projector{
		interval: DefaultThinkingInterval,
		logger:   zap.NewNop(),
		state:    NewState(),
		cursors:  make(map[AgentID]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Apply folds ev into the current run and returns the new snapshot.
func (p *Projector) Apply(ev Event) State {
	p.mu.Lock()

	prev := p.state
	p.events = append(p.events, ev)
	p.state = Apply(p.state, ev)

	if p.state.PhaseRegressions > prev.PhaseRegressions {
		p.logger.Warn("phase went backwards",
			zap.Int("from", prev.Phase),
			zap.Int("to", p.state.Phase),
		)
	}

	switch e := ev.(type) {
	case AgentStart:
		delete(p.cursors, e.Agent)
	case AgentComplete:
		delete(p.cursors, e.Agent)
	case Unknown:
		p.logger.Debug("ignoring unknown progress event", zap.String("event", e.Type))
	}

	var stopped *animation
	switch {
	case p.state.Animating() && p.anim == nil && !p.closed:
		p.startLocked()
	case !p.state.Animating() && p.anim != nil:
		stopped = p.stopLocked()
	}

	snap := p.viewLocked()
	p.enqueueLocked(snap)
	p.mu.Unlock()

	stopped.wait()
	p.deliver(nil)
	return snap
}

// Snapshot returns the current display state: the authoritative fold with
// the animation cursors laid over it.
func (p *Projector) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewLocked()
}

// State returns the authoritative fold of the applied events, without any
// animation. It always equals Recompute(p.Events()).
func (p *Projector) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.clone()
}

// Events returns a copy of the events applied in the current run.
func (p *Projector) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.events)
}

// Animating reports whether the thinking ticker is running.
func (p *Projector) Animating() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.anim != nil
}

// Reset discards the current run and starts a new one at the baseline. Any
// ticker of the previous run is stopped before Reset returns. Called from a
// callback running on the ticker goroutine, the ticker is cancelled and exits
// once that callback returns.
func (p *Projector) Reset() {
	p.mu.Lock()
	stopped := p.stopLocked()
	p.run++
	p.events = nil
	p.state = NewState()
	p.cursors = make(map[AgentID]int)
	p.enqueueLocked(p.viewLocked())
	p.mu.Unlock()

	stopped.wait()
	p.deliver(nil)
}

// Close stops the ticker and prevents new ones from starting. Events may
// still be applied after Close.
func (p *Projector) Close() {
	p.mu.Lock()
	p.closed = true
	stopped := p.stopLocked()
	p.mu.Unlock()

	stopped.wait()
}

func (p *Projector) startLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	a := &animation{
		run:    p.run,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	p.anim = a

	go p.animate(ctx, a)
}

// stopLocked cancels the running ticker, if any, and returns it so the
// caller can wait for it after releasing the lock.
func (p *Projector) stopLocked() *animation {
	a := p.anim
	if a == nil {
		return nil
	}
	p.anim = nil
	a.cancel()
	return a
}

func (a *animation) wait() {
	if a == nil || a.delivering.Load() {
		return
	}
	<-a.done
}

func (p *Projector) animate(ctx context.Context, a *animation) {
	defer close(a.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.tick(ctx, a) {
				return
			}
		}
	}
}

// tick advances the cursors once. It reports false when the ticker is stale
// and should exit.
func (p *Projector) tick(ctx context.Context, anim *animation) bool {
	p.mu.Lock()
	if ctx.Err() != nil || anim.run != p.run {
		p.mu.Unlock()
		return false
	}

	advanced := AdvanceThinking(p.viewLocked())
	for id, a := range advanced.Agents {
		if a.Status == StatusRunning && len(a.Thinking) > 0 {
			p.cursors[id] = a.ThinkingIndex
		}
	}
	p.enqueueLocked(advanced)
	p.mu.Unlock()

	p.deliver(anim)
	return true
}

// viewLocked overlays the cursors on the authoritative state.
func (p *Projector) viewLocked() State {
	view := p.state.clone()
	for id, idx := range p.cursors {
		a, ok := view.Agents[id]
		if !ok || a.Status != StatusRunning || idx >= len(a.Thinking) {
			continue
		}
		a.ThinkingIndex = idx
		view.Agents[id] = a
	}
	return view
}

// enqueueLocked queues s for delivery. Queuing under mu keeps the queue in
// the order the snapshots were taken.
func (p *Projector) enqueueLocked(s State) {
	if p.onChange == nil {
		return
	}
	p.qmu.Lock()
	p.queue = append(p.queue, s)
	p.qmu.Unlock()
}

// deliver drains the queue unless another goroutine, or an outer call on
// this one, is already draining it. anim is the calling ticker, if any.
func (p *Projector) deliver(anim *animation) {
	if p.onChange == nil {
		return
	}

	p.qmu.Lock()
	if p.draining {
		p.qmu.Unlock()
		return
	}
	p.draining = true
	if anim != nil {
		anim.delivering.Store(true)
	}

	for len(p.queue) > 0 {
		s := p.queue[0]
		p.queue = p.queue[1:]
		p.qmu.Unlock()

		p.onChange(s)

		p.qmu.Lock()
	}

	p.draining = false
	if anim != nil {
		anim.delivering.Store(false)
	}
	p.qmu.Unlock()
}
