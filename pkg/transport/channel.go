package transport

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"

	"github.com/mpapenbr/racesim-engine/log"
	"github.com/mpapenbr/racesim-engine/pkg/model"
	"github.com/mpapenbr/racesim-engine/pkg/permission"
)

type (
	// Bus moves raw envelopes of one race between participants.
	Bus interface {
		Send(ctx context.Context, kind Kind, data []byte) error
		// Receive delivers every envelope of kind until cancel is called.
		Receive(kind Kind) (data <-chan []byte, cancel func(), err error)
		Close()
	}
	// SnapshotKeeper is implemented by buses that retain the latest snapshot for late joiners.
	SnapshotKeeper interface {
		Latest(ctx context.Context) ([]byte, error)
	}

	// Channel is the typed view on the race channel used by a participant.
	Channel interface {
		PublishSnapshot(ctx context.Context, s model.RaceState) error
		PublishIntent(ctx context.Context, i model.StrategyIntent) error
		PublishStart(ctx context.Context) error
		PublishReady(ctx context.Context, r Ready) error

		SubscribeSnapshots() (<-chan model.RaceState, chan<- struct{}, error)
		SubscribeIntents() (<-chan model.StrategyIntent, chan<- struct{}, error)
		SubscribeStart() (<-chan struct{}, chan<- struct{}, error)
		SubscribeReady() (<-chan Ready, chan<- struct{}, error)

		LatestSnapshot(ctx context.Context) (model.RaceState, error)
		// Close ends all subscriptions of this channel. The underlying bus stays open.
		Close()
	}

	Option func(*Endpoint)
)

// Endpoint implements Channel on top of a Bus. Incoming envelopes are checked for race,
// protocol version and sender permission before they are handed out.
type Endpoint struct {
	bus    Bus
	raceID string
	sender string
	policy permission.Evaluator
	l      *log.Logger

	mu       sync.Mutex
	convener string
	players  []string
	done     chan struct{}
	once     sync.Once
}

// check interface compliance
var _ Channel = (*Endpoint)(nil)

func NewEndpoint(bus Bus, raceID, sender string, opts ...Option) *Endpoint {
	e := &Endpoint{
		bus:    bus,
		raceID: raceID,
		sender: sender,
		policy: permission.AllowAll{},
		l:      log.Default().Named("transport"),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func WithPolicy(p permission.Evaluator) Option {
	return func(e *Endpoint) { e.policy = p }
}

func WithConvener(id string) Option {
	return func(e *Endpoint) { e.convener = id }
}

func WithLogger(l *log.Logger) Option {
	return func(e *Endpoint) { e.l = l }
}

// SetPlayers restricts intents to the given players once the roster is known.
func (e *Endpoint) SetPlayers(ids []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.players = slices.Clone(ids)
}

func (e *Endpoint) Sender() string {
	return e.sender
}

func (e *Endpoint) RaceID() string {
	return e.raceID
}

func (e *Endpoint) PublishSnapshot(ctx context.Context, s model.RaceState) error {
	return e.publish(ctx, KindSnapshot, s)
}

func (e *Endpoint) PublishIntent(ctx context.Context, i model.StrategyIntent) error {
	return e.publish(ctx, KindIntent, i)
}

func (e *Endpoint) PublishStart(ctx context.Context) error {
	return e.publish(ctx, KindStart, nil)
}

func (e *Endpoint) PublishReady(ctx context.Context, r Ready) error {
	return e.publish(ctx, KindReady, r)
}

func (e *Endpoint) publish(ctx context.Context, kind Kind, payload any) error {
	data, err := encode(kind, e.raceID, e.sender, payload)
	if err != nil {
		return err
	}
	return e.bus.Send(ctx, kind, data)
}

//nolint:whitespace // false positive
func (e *Endpoint) SubscribeSnapshots() (
	<-chan model.RaceState, chan<- struct{}, error,
) {
	return subscribe(e, KindSnapshot, func(s *model.RaceState) string { return s.Convener })
}

//nolint:whitespace // false positive
func (e *Endpoint) SubscribeIntents() (
	<-chan model.StrategyIntent, chan<- struct{}, error,
) {
	return subscribe(e, KindIntent, func(i *model.StrategyIntent) string { return i.PlayerID })
}

func (e *Endpoint) SubscribeReady() (<-chan Ready, chan<- struct{}, error) {
	return subscribe(e, KindReady, func(r *Ready) string { return r.PlayerID })
}

func (e *Endpoint) SubscribeStart() (<-chan struct{}, chan<- struct{}, error) {
	return subscribe(e, KindStart, func(*struct{}) string { return "" })
}

// LatestSnapshot returns the last snapshot retained by the bus.
func (e *Endpoint) LatestSnapshot(ctx context.Context) (model.RaceState, error) {
	keeper, ok := e.bus.(SnapshotKeeper)
	if !ok {
		return model.RaceState{}, ErrNotSupported
	}
	data, err := keeper.Latest(ctx)
	if err != nil {
		return model.RaceState{}, err
	}
	var s model.RaceState
	if _, err := accept(ctx, e, KindSnapshot, data, &s,
		func(s *model.RaceState) string { return s.Convener }); err != nil {
		return model.RaceState{}, err
	}
	return s, nil
}

func (e *Endpoint) Close() {
	e.once.Do(func() { close(e.done) })
}

// accept decodes data into v and checks it. The returned error tells why a message was dropped.
func accept[T any](ctx context.Context, e *Endpoint, kind Kind, data []byte, v *T,
	subject func(*T) string,
) (Envelope, error) {
	env, err := decode(data, kind, e.raceID)
	if err != nil {
		return env, err
	}
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, v); err != nil {
			return env, err
		}
	}
	e.mu.Lock()
	req := permission.Request{
		Kind:     string(kind),
		Sender:   env.Sender,
		Subject:  subject(v),
		Convener: e.convener,
		Players:  slices.Clone(e.players),
	}
	e.mu.Unlock()
	if !e.policy.Allowed(ctx, req) {
		return env, ErrNotAllowed
	}
	return env, nil
}

//nolint:whitespace // false positive
func subscribe[T any](e *Endpoint, kind Kind, subject func(*T) string) (
	<-chan T, chan<- struct{}, error,
) {
	raw, cancel, err := e.bus.Receive(kind)
	if err != nil {
		return nil, nil, err
	}
	dataChan := make(chan T, 16)
	quitChan := make(chan struct{})
	go func() {
		defer close(dataChan)
		defer cancel()
		for {
			select {
			case <-quitChan:
				return
			case <-e.done:
				return
			case data, ok := <-raw:
				if !ok {
					return
				}
				var v T
				env, err := accept(context.Background(), e, kind, data, &v, subject)
				if err != nil {
					lvl := e.l.Warn
					if errors.Is(err, ErrWrongRace) {
						lvl = e.l.Debug
					}
					lvl("dropping message",
						log.String("kind", string(kind)),
						log.String("sender", env.Sender),
						log.String("version", env.Version),
						log.ErrorField(err))
					continue
				}
				select {
				case dataChan <- v:
				case <-quitChan:
					return
				case <-e.done:
					return
				}
			}
		}
	}()
	return dataChan, quitChan, nil
}
