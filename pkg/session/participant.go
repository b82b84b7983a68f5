package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mpapenbr/racesim-engine/log"
	"github.com/mpapenbr/racesim-engine/pkg/model"
	"github.com/mpapenbr/racesim-engine/pkg/predict"
	"github.com/mpapenbr/racesim-engine/pkg/scheduler"
	"github.com/mpapenbr/racesim-engine/pkg/track"
	"github.com/mpapenbr/racesim-engine/pkg/transport"
)

type (
	// Participant follows a race hosted by the convener. It predicts locally and sends its
	// own intents through the throttle.
	Participant struct {
		track         *track.Track
		self          string
		ch            transport.Channel
		sched         scheduler.Scheduler
		readyInterval time.Duration
		onUpdate      UpdateFunc
		l             *log.Logger

		predictor *predict.Predictor
		throttle  *transport.IntentThrottle

		mu  sync.Mutex
		ctx context.Context
	}
	ParticipantOption func(*Participant)
)

func WithParticipantScheduler(s scheduler.Scheduler) ParticipantOption {
	return func(p *Participant) { p.sched = s }
}

// WithReadyInterval sets how often the ready signal is repeated until the race starts.
func WithReadyInterval(d time.Duration) ParticipantOption {
	return func(p *Participant) { p.readyInterval = d }
}

func WithParticipantUpdate(f UpdateFunc) ParticipantOption {
	return func(p *Participant) { p.onUpdate = f }
}

func WithParticipantLogger(l *log.Logger) ParticipantOption {
	return func(p *Participant) { p.l = l }
}

// WithThrottleClock replaces time.Now in the intent throttle
func WithThrottleClock(now func() time.Time) ParticipantOption {
	return func(p *Participant) {
		p.throttle = transport.NewIntentThrottle(p.ch.PublishIntent, transport.WithClock(now))
	}
}

//nolint:whitespace // can't make both editor and linter happy
func NewParticipant(
	t *track.Track,
	self string,
	ch transport.Channel,
	opts ...ParticipantOption,
) *Participant {
	p := &Participant{
		track:         t,
		self:          self,
		ch:            ch,
		sched:         scheduler.NewTicker(),
		readyInterval: time.Second,
		onUpdate:      func(model.RaceState) {},
		l:             log.Default().Named("session.participant"),
		ctx:           context.Background(),
	}
	p.throttle = transport.NewIntentThrottle(ch.PublishIntent)
	for _, opt := range opts {
		opt(p)
	}
	p.predictor = predict.New(t,
		predict.WithUpdate(p.predicted),
		predict.WithLogger(p.l.Named("predict")))
	return p
}

// Run signals readiness and follows the race until a finished snapshot arrives, which is
// returned.
//
//nolint:funlen,cyclop // by design
func (p *Participant) Run(ctx context.Context) (model.RaceState, error) {
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()

	snaps, quitSnaps, err := p.ch.SubscribeSnapshots()
	if err != nil {
		return model.RaceState{}, fmt.Errorf("subscribe snapshots: %w", err)
	}
	defer close(quitSnaps)
	start, quitStart, err := p.ch.SubscribeStart()
	if err != nil {
		return model.RaceState{}, fmt.Errorf("subscribe start: %w", err)
	}
	defer close(quitStart)

	sendReady := func() {
		if err := p.ch.PublishReady(ctx, transport.Ready{PlayerID: p.self}); err != nil {
			p.l.Warn("could not publish ready", log.ErrorField(err))
		}
	}
	sendReady()
	readyTicker := time.NewTicker(p.readyInterval)
	defer readyTicker.Stop()
	readyC := readyTicker.C

	var predTask scheduler.Task
	defer func() {
		if predTask != nil {
			predTask.Stop()
		}
	}()
	begin := func() {
		readyC = nil
		if predTask == nil {
			predTask = p.predictor.Run(ctx, p.sched)
			p.l.Info("race started")
		}
	}

	for {
		select {
		case <-ctx.Done():
			s, _ := p.predictor.State()
			return s, ctx.Err()
		case <-readyC:
			sendReady()
		case _, ok := <-start:
			if !ok {
				start = nil
				continue
			}
			if _, have := p.predictor.State(); !have {
				p.catchUp(ctx)
			}
			begin()
		case s, ok := <-snaps:
			if !ok {
				st, _ := p.predictor.State()
				return st, errors.New("snapshot subscription closed")
			}
			p.predictor.Reconcile(s)
			begin()
			if s.Finished {
				p.l.Info("race finished",
					log.String("winner", s.WinnerID),
					log.Int("ticks", s.Tick))
				return s, nil
			}
		}
	}
}

// SetIntent applies the selection to the local prediction right away and sends it to the
// convener as soon as the throttle allows.
func (p *Participant) SetIntent(i model.StrategyIntent) error {
	i.PlayerID = p.self
	if !i.ErsMode.Valid() || !i.RacingLine.Valid() {
		return fmt.Errorf("ers %q line %q: invalid selection", i.ErsMode, i.RacingLine)
	}
	p.predictor.SetIntent(i)
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()
	_, err := p.throttle.Submit(ctx, i)
	return err
}

// State returns the predicted state.
func (p *Participant) State() (model.RaceState, bool) {
	return p.predictor.State()
}

func (p *Participant) predicted(s model.RaceState) {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()
	if _, err := p.throttle.Flush(ctx); err != nil {
		p.l.Warn("could not publish intent", log.ErrorField(err))
	}
	p.onUpdate(s)
}

// catchUp loads the latest retained snapshot for a participant that joined late.
func (p *Participant) catchUp(ctx context.Context) {
	s, err := p.ch.LatestSnapshot(ctx)
	switch {
	case err == nil:
		p.predictor.Reconcile(s)
		p.l.Debug("caught up", log.Int("tick", s.Tick))
	case errors.Is(err, transport.ErrNoSnapshot), errors.Is(err, transport.ErrNotSupported):
	default:
		p.l.Warn("could not load latest snapshot", log.ErrorField(err))
	}
}
