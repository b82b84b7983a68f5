// Package local provides the race channel for participants living in the same process.
package local

import (
	"context"
	"fmt"
	"sync"

	"github.com/mpapenbr/racesim-engine/log"
	"github.com/mpapenbr/racesim-engine/pkg/transport"
	"github.com/mpapenbr/racesim-engine/pkg/utils/broadcast"
)

type (
	// Hub holds one bus per race.
	Hub struct {
		l     *log.Logger
		mutex sync.Mutex
		buses map[string]*Bus
	}
	// Bus distributes the envelopes of one race via a broadcast server per message kind.
	Bus struct {
		raceID string
		l      *log.Logger
		mutex  sync.Mutex
		kinds  map[transport.Kind]*kindBroadcaster
		latest []byte
		closed bool
	}
	kindBroadcaster struct {
		source chan []byte
		bs     broadcast.BroadcastServer[[]byte]
	}
	Option func(*Hub)
)

// check interface compliance
var (
	_ transport.Bus            = (*Bus)(nil)
	_ transport.SnapshotKeeper = (*Bus)(nil)
)

func NewHub(opts ...Option) *Hub {
	ret := &Hub{
		l:     log.Default().Named("transport.local"),
		buses: map[string]*Bus{},
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func WithLogger(arg *log.Logger) Option {
	return func(h *Hub) {
		h.l = arg
	}
}

// Bus returns the bus of the race, creating it on first use.
func (h *Hub) Bus(raceID string) *Bus {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if b, ok := h.buses[raceID]; ok && !b.isClosed() {
		return b
	}
	b := &Bus{
		raceID: raceID,
		l:      h.l.With(log.String("race", raceID)),
		kinds:  map[transport.Kind]*kindBroadcaster{},
	}
	h.buses[raceID] = b
	return b
}

// Remove closes and forgets the bus of a race.
func (h *Hub) Remove(raceID string) {
	h.mutex.Lock()
	b, ok := h.buses[raceID]
	delete(h.buses, raceID)
	h.mutex.Unlock()
	if ok {
		b.Close()
	}
}

func (b *Bus) broadcaster(kind transport.Kind) (*kindBroadcaster, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.closed {
		return nil, fmt.Errorf("bus of race %s closed", b.raceID)
	}
	if kb, ok := b.kinds[kind]; ok {
		return kb, nil
	}
	src := make(chan []byte)
	kb := &kindBroadcaster{
		source: src,
		bs: broadcast.NewBroadcastServer(b.raceID, fmt.Sprintf("local.%s", kind), src,
			broadcast.WithBufferSize[[]byte](32),
			broadcast.WithLogger[[]byte](b.l)),
	}
	b.kinds[kind] = kb
	return kb, nil
}

func (b *Bus) Send(ctx context.Context, kind transport.Kind, data []byte) error {
	kb, err := b.broadcaster(kind)
	if err != nil {
		return err
	}
	if kind == transport.KindSnapshot {
		b.mutex.Lock()
		b.latest = data
		b.mutex.Unlock()
	}
	select {
	case kb.source <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

//nolint:whitespace // false positive
func (b *Bus) Receive(kind transport.Kind) (
	data <-chan []byte, cancel func(), err error,
) {
	kb, err := b.broadcaster(kind)
	if err != nil {
		return nil, nil, err
	}
	ch := kb.bs.Subscribe()
	var once sync.Once
	return ch, func() {
		once.Do(func() { kb.bs.CancelSubscription(ch) })
	}, nil
}

func (b *Bus) Latest(context.Context) ([]byte, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.latest == nil {
		return nil, transport.ErrNoSnapshot
	}
	return b.latest, nil
}

func (b *Bus) Close() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, kb := range b.kinds {
		kb.bs.Close()
	}
	b.l.Debug("bus closed")
}

func (b *Bus) isClosed() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.closed
}
