// Package predict extrapolates the canonical race state between authoritative snapshots.
package predict

import (
	"context"
	"sync"
	"time"

	"github.com/mpapenbr/racesim-engine/log"
	"github.com/mpapenbr/racesim-engine/pkg/model"
	"github.com/mpapenbr/racesim-engine/pkg/race"
	"github.com/mpapenbr/racesim-engine/pkg/scheduler"
	"github.com/mpapenbr/racesim-engine/pkg/track"
)

const (
	Rate       = 20
	StepLength = 1.0 / Rate // s
)

type (
	UpdateFunc func(s model.RaceState)
	Option     func(*Predictor)
)

// Predictor runs the physics locally at a finer rate. Its state is never persisted and is
// replaced by every newer snapshot.
type Predictor struct {
	track    *track.Track
	onUpdate UpdateFunc
	logger   *log.Logger

	mu      sync.Mutex
	state   model.RaceState
	have    bool
	intents map[string]model.StrategyIntent
}

func WithUpdate(f UpdateFunc) Option {
	return func(p *Predictor) { p.onUpdate = f }
}

func WithLogger(l *log.Logger) Option {
	return func(p *Predictor) { p.logger = l }
}

func New(t *track.Track, opts ...Option) *Predictor {
	p := &Predictor{
		track:    t,
		onUpdate: func(model.RaceState) {},
		logger:   log.Default().Named("predict"),
		intents:  map[string]model.StrategyIntent{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Reconcile replaces the local state with snap. Snapshots older than the last applied one are
// ignored. It reports whether snap was applied.
func (p *Predictor) Reconcile(snap model.RaceState) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.have && snap.Tick < p.state.Tick {
		p.logger.Debug("ignoring stale snapshot",
			log.Int("tick", snap.Tick), log.Int("current", p.state.Tick))
		return false
	}
	p.state = snap.Clone()
	p.have = true
	return true
}

// SetIntent records a live selection that is applied to the local state before every step
// until a newer one arrives.
func (p *Predictor) SetIntent(intent model.StrategyIntent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intents[intent.PlayerID] = intent
}

// Tick advances the local state by one StepLength.
func (p *Predictor) Tick() {
	p.mu.Lock()
	if !p.have || p.state.Finished {
		p.mu.Unlock()
		return
	}
	for _, intent := range p.intents {
		if err := race.ApplyIntent(&p.state, intent); err != nil {
			p.logger.Debug("intent not applied", log.ErrorField(err))
		}
	}
	p.state = race.StepCars(p.track, p.state, StepLength)
	s := p.state.Clone()
	p.mu.Unlock()
	p.onUpdate(s)
}

// State returns the current local state and whether any snapshot was received yet.
func (p *Predictor) State() (model.RaceState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Clone(), p.have
}

// Run schedules Tick at Rate per second.
func (p *Predictor) Run(ctx context.Context, sched scheduler.Scheduler) scheduler.Task {
	return sched.Every(ctx, time.Second/Rate, p.Tick)
}
