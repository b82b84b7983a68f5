package race

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/racesim-engine/log"
	"github.com/mpapenbr/racesim-engine/pkg/model"
	"github.com/mpapenbr/racesim-engine/pkg/scheduler"
	"github.com/mpapenbr/racesim-engine/pkg/track"
)

type (
	// EmitFunc publishes a canonical snapshot.
	EmitFunc func(ctx context.Context, s model.RaceState)
	// FinishFunc receives the terminal state. It is called exactly once per loop.
	FinishFunc func(ctx context.Context, s model.RaceState)
	Option     func(*Loop)
)

// Loop is the authoritative loop of one race. Only the convener runs it.
type Loop struct {
	track    *track.Track
	sched    scheduler.Scheduler
	interval time.Duration
	emit     EmitFunc
	finish   FinishFunc
	logger   *log.Logger

	mu     sync.Mutex
	state  model.RaceState
	task   scheduler.Task
	once   sync.Once
	done   chan struct{}
	ticks  metric.Int64Counter
	tickMs metric.Float64Histogram
	attrs  metric.MeasurementOption
}

func WithScheduler(s scheduler.Scheduler) Option {
	return func(l *Loop) { l.sched = s }
}

// WithInterval sets the wall time between ticks. Each tick always advances the race by
// TickLength seconds of race time.
func WithInterval(d time.Duration) Option {
	return func(l *Loop) { l.interval = d }
}

func WithEmitter(f EmitFunc) Option {
	return func(l *Loop) { l.emit = f }
}

func WithFinish(f FinishFunc) Option {
	return func(l *Loop) { l.finish = f }
}

func WithLogger(logger *log.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

func NewLoop(t *track.Track, initial model.RaceState, opts ...Option) *Loop {
	l := &Loop{
		track:    t,
		state:    initial.Clone(),
		sched:    scheduler.NewTicker(),
		interval: time.Second,
		emit:     func(context.Context, model.RaceState) {},
		finish:   func(context.Context, model.RaceState) {},
		logger:   log.Default().Named("race"),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.setupMetrics()
	return l
}

func (l *Loop) setupMetrics() {
	meter := otel.GetMeterProvider().Meter("rse.race")
	var err error
	if l.ticks, err = meter.Int64Counter("rse.race.ticks",
		metric.WithDescription("Number of authoritative ticks"),
		metric.WithUnit("{count}")); err != nil {
		l.logger.Error("failed to register metric", log.ErrorField(err))
	}
	if l.tickMs, err = meter.Float64Histogram("rse.race.tick.duration",
		metric.WithDescription("Time spent computing and emitting a tick"),
		metric.WithUnit("ms")); err != nil {
		l.logger.Error("failed to register metric", log.ErrorField(err))
	}
	l.attrs = metric.WithAttributes(attribute.String("race", l.state.RaceID.String()))
}

// Start emits the initial snapshot and schedules the ticks.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	initial := l.state.Clone()
	l.mu.Unlock()
	l.logger.Info("starting race loop",
		log.String("race", initial.RaceID.String()),
		log.String("track", initial.Track),
		log.Duration("interval", l.interval))
	l.emit(ctx, initial)
	task := l.sched.Every(ctx, l.interval, func() { l.tick(ctx) })
	l.mu.Lock()
	l.task = task
	l.mu.Unlock()
}

// Stop cancels the loop without resolving an outcome and waits for a running tick
// to return. It must not be called from the emitter or finish callbacks.
func (l *Loop) Stop() {
	l.mu.Lock()
	task := l.task
	l.mu.Unlock()
	if task != nil {
		task.Stop()
		<-task.Done()
	}
}

// Done is closed once the race finished and the finish callback returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// SetIntent records the live selection of a player. It is used from the next tick on,
// a later intent of the same player replaces an earlier one.
func (l *Loop) SetIntent(intent model.StrategyIntent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ApplyIntent(&l.state, intent)
}

// Snapshot returns a copy of the current canonical state.
func (l *Loop) Snapshot() model.RaceState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Clone()
}

func (l *Loop) tick(ctx context.Context) {
	start := time.Now()
	l.mu.Lock()
	if l.state.Finished {
		l.mu.Unlock()
		return
	}
	l.state = Advance(l.track, l.state)
	snap := l.state.Clone()
	task := l.task
	l.mu.Unlock()

	l.emit(ctx, snap)
	if l.ticks != nil {
		l.ticks.Add(ctx, 1, l.attrs)
	}
	if l.tickMs != nil {
		l.tickMs.Record(ctx, float64(time.Since(start).Microseconds())/1000, l.attrs)
	}
	l.logger.Debug("tick",
		log.Int("tick", snap.Tick),
		log.Float64("d0", snap.Cars[0].State.Distance),
		log.Float64("d1", snap.Cars[1].State.Distance))

	if !snap.Finished {
		return
	}
	l.once.Do(func() {
		if task != nil {
			task.Stop()
		}
		l.logger.Info("race finished",
			log.String("race", snap.RaceID.String()),
			log.String("winner", snap.WinnerID),
			log.Int("ticks", snap.Tick))
		l.finish(ctx, snap)
		close(l.done)
	})
}
