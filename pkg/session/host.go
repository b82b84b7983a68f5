// Package session wires the race components for one participant. Host is run by the convener
// and owns the authoritative loop, Participant is run by the other player.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/mpapenbr/racesim-engine/log"
	"github.com/mpapenbr/racesim-engine/pkg/model"
	"github.com/mpapenbr/racesim-engine/pkg/outcome"
	"github.com/mpapenbr/racesim-engine/pkg/predict"
	"github.com/mpapenbr/racesim-engine/pkg/race"
	"github.com/mpapenbr/racesim-engine/pkg/readiness"
	"github.com/mpapenbr/racesim-engine/pkg/scheduler"
	"github.com/mpapenbr/racesim-engine/pkg/track"
	"github.com/mpapenbr/racesim-engine/pkg/transport"
	"github.com/mpapenbr/racesim-engine/pkg/utils"
	"github.com/mpapenbr/racesim-engine/pkg/utils/broadcast"
)

var ErrNotStarted = errors.New("race not started")

type (
	// UpdateFunc receives every predicted state.
	UpdateFunc func(s model.RaceState)

	Host struct {
		raceID    uuid.UUID
		track     *track.Track
		self      string
		opponent  string
		seed      uint64
		ch        transport.Channel
		ready     readiness.Source
		resolver  *outcome.Resolver
		sched     scheduler.Scheduler
		interval  time.Duration
		countdown time.Duration
		lookup    *utils.RaceLookup
		onUpdate  UpdateFunc
		l         *log.Logger

		mu        sync.Mutex
		loop      *race.Loop
		predictor *predict.Predictor
	}
	HostOption func(*Host)
)

func WithSeed(seed uint64) HostOption {
	return func(h *Host) { h.seed = seed }
}

func WithReadiness(s readiness.Source) HostOption {
	return func(h *Host) { h.ready = s }
}

func WithResolver(r *outcome.Resolver) HostOption {
	return func(h *Host) { h.resolver = r }
}

func WithHostScheduler(s scheduler.Scheduler) HostOption {
	return func(h *Host) { h.sched = s }
}

// WithTickInterval sets the wall clock time of one authoritative tick.
func WithTickInterval(d time.Duration) HostOption {
	return func(h *Host) { h.interval = d }
}

// WithCountdown delays the first tick after the start signal.
func WithCountdown(d time.Duration) HostOption {
	return func(h *Host) { h.countdown = d }
}

// WithLookup registers the race for the API server.
func WithLookup(l *utils.RaceLookup) HostOption {
	return func(h *Host) { h.lookup = l }
}

func WithHostUpdate(f UpdateFunc) HostOption {
	return func(h *Host) { h.onUpdate = f }
}

func WithHostLogger(l *log.Logger) HostOption {
	return func(h *Host) { h.l = l }
}

//nolint:whitespace // can't make both editor and linter happy
func NewHost(
	raceID uuid.UUID,
	t *track.Track,
	self, opponent string,
	ch transport.Channel,
	opts ...HostOption,
) *Host {
	h := &Host{
		raceID:   raceID,
		track:    t,
		self:     self,
		opponent: opponent,
		seed:     utils.SeedFromString(raceID.String()),
		ch:       ch,
		ready:    readiness.NewCollector(ch),
		resolver: outcome.NewResolver(),
		sched:    scheduler.NewTicker(),
		interval: time.Second,
		onUpdate: func(model.RaceState) {},
		l:        log.Default().Named("session.host"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run waits for both players, runs the race and resolves its outcome. Collaborator errors
// of the outcome are reported by Outcome.Err, not by the returned error.
//
//nolint:funlen // by design
func (h *Host) Run(ctx context.Context) (outcome.Outcome, error) {
	players := [2]string{h.self, h.opponent}
	h.l.Info("waiting for players", log.String("race", h.raceID.String()))
	profiles, err := h.ready.Wait(ctx, players, h.self)
	if err != nil {
		return outcome.Outcome{}, err
	}
	initial := race.New(h.raceID, h.track, h.self, [2]race.Player{
		{ID: h.self, Profile: profiles[0]},
		{ID: h.opponent, Profile: profiles[1]},
	}, h.seed)

	if err := h.ch.PublishStart(ctx); err != nil {
		return outcome.Outcome{}, fmt.Errorf("publish start: %w", err)
	}
	if h.countdown > 0 {
		select {
		case <-ctx.Done():
			return outcome.Outcome{}, ctx.Err()
		case <-time.After(h.countdown):
		}
	}

	rd, feed := h.register(initial)
	defer func() {
		if feed != nil {
			close(feed)
		}
	}()

	predictor := predict.New(h.track,
		predict.WithUpdate(predict.UpdateFunc(h.onUpdate)),
		predict.WithLogger(h.l.Named("predict")))

	result := make(chan outcome.Outcome, 1)
	loop := race.NewLoop(h.track, initial,
		race.WithScheduler(h.sched),
		race.WithInterval(h.interval),
		race.WithLogger(h.l.Named("loop")),
		race.WithEmitter(func(ctx context.Context, s model.RaceState) {
			if err := h.ch.PublishSnapshot(ctx, s); err != nil {
				h.l.Warn("could not publish snapshot",
					log.Int("tick", s.Tick), log.ErrorField(err))
			}
			predictor.Reconcile(s)
			if feed != nil {
				select {
				case feed <- s:
				default:
					h.l.Debug("api feed full, snapshot skipped", log.Int("tick", s.Tick))
				}
			}
		}),
		race.WithFinish(func(ctx context.Context, s model.RaceState) {
			o, err := h.resolver.Resolve(ctx, s)
			if err != nil {
				h.l.Error("could not resolve outcome", log.ErrorField(err))
			}
			if o.Err() != nil {
				h.l.Warn("outcome collaborators failed", log.ErrorField(o.Err()))
			}
			if rd != nil {
				rd.SetOutcome(o)
			}
			result <- o
		}),
	)

	intents, quit, err := h.ch.SubscribeIntents()
	if err != nil {
		return outcome.Outcome{}, fmt.Errorf("subscribe intents: %w", err)
	}
	defer close(quit)
	go func() {
		for i := range intents {
			if i.PlayerID != h.opponent {
				continue
			}
			if err := loop.SetIntent(i); err != nil {
				h.l.Debug("intent rejected", log.ErrorField(err))
			}
		}
	}()

	h.mu.Lock()
	h.loop = loop
	h.predictor = predictor
	h.mu.Unlock()

	predTask := predictor.Run(ctx, h.sched)
	defer predTask.Stop()
	loop.Start(ctx)
	h.l.Info("race started",
		log.String("race", h.raceID.String()),
		log.Uint64("seed", h.seed))

	select {
	case <-ctx.Done():
		// the deferred close of feed needs the last emit to be done
		loop.Stop()
		return outcome.Outcome{}, ctx.Err()
	case o := <-result:
		return o, nil
	}
}

// SetIntent changes the selection of the convener's own car.
func (h *Host) SetIntent(i model.StrategyIntent) error {
	h.mu.Lock()
	loop, predictor := h.loop, h.predictor
	h.mu.Unlock()
	if loop == nil {
		return ErrNotStarted
	}
	i.PlayerID = h.self
	if err := loop.SetIntent(i); err != nil {
		return err
	}
	predictor.SetIntent(i)
	return nil
}

// Snapshot returns the canonical state of the running race.
func (h *Host) Snapshot() (model.RaceState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.loop == nil {
		return model.RaceState{}, ErrNotStarted
	}
	return h.loop.Snapshot(), nil
}

//nolint:whitespace // can't make both editor and linter happy
func (h *Host) register(initial model.RaceState) (
	*utils.RaceData, chan model.RaceState,
) {
	if h.lookup == nil {
		return nil, nil
	}
	feed := make(chan model.RaceState, 8)
	rd := &utils.RaceData{
		RaceID: h.raceID.String(),
		Snapshots: broadcast.NewBroadcastServer(h.raceID.String(), "snapshots", feed,
			broadcast.WithBufferSize[model.RaceState](8),
			broadcast.WithLogger[model.RaceState](h.l.Named("api"))),
	}
	rd.Snapshot = func() model.RaceState {
		h.mu.Lock()
		loop := h.loop
		h.mu.Unlock()
		if loop != nil {
			return loop.Snapshot()
		}
		return initial.Clone()
	}
	h.lookup.AddRace(rd)
	return rd, feed
}
