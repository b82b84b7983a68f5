// Package nats provides the race channel across processes. Every message kind of a race has
// its own subject, the latest snapshot is mirrored into a JetStream key value bucket so that
// late joiners can catch up.
package nats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mpapenbr/racesim-engine/log"
	"github.com/mpapenbr/racesim-engine/pkg/transport"
	"github.com/mpapenbr/racesim-engine/pkg/utils/broadcast"
)

const (
	DefaultBucket = "rse"
	subjectPrefix = "rse"
)

type (
	Bus struct {
		ctx    context.Context
		conn   *nats.Conn
		raceID string
		bucket string
		ttl    time.Duration
		kv     jetstream.KeyValue
		l      *log.Logger
		mutex  sync.Mutex
		kinds  map[transport.Kind]*broadcastData
	}
	Option        func(*Bus)
	broadcastData struct {
		bs       broadcast.BroadcastServer[[]byte]
		quitChan chan struct{}
	}
)

// check interface compliance
var (
	_ transport.Bus            = (*Bus)(nil)
	_ transport.SnapshotKeeper = (*Bus)(nil)
)

func NewBus(conn *nats.Conn, raceID string, opts ...Option) (*Bus, error) {
	ret := &Bus{
		ctx:    context.Background(),
		conn:   conn,
		raceID: raceID,
		bucket: DefaultBucket,
		ttl:    24 * time.Hour,
		l:      log.Default().Named("transport.nats"),
		kinds:  map[transport.Kind]*broadcastData{},
	}
	for _, opt := range opts {
		opt(ret)
	}
	if err := ret.setupKV(); err != nil {
		return nil, err
	}
	return ret, nil
}

func WithContext(ctx context.Context) Option {
	return func(b *Bus) {
		b.ctx = ctx
	}
}

func WithLogger(l *log.Logger) Option {
	return func(b *Bus) {
		b.l = l
	}
}

// WithBucket sets the key value bucket for the latest snapshots and the age after which
// entries expire.
func WithBucket(name string, ttl time.Duration) Option {
	return func(b *Bus) {
		b.bucket = name
		b.ttl = ttl
	}
}

// Subject returns the NATS subject for a message kind of a race.
func Subject(raceID string, kind transport.Kind) string {
	return fmt.Sprintf("%s.%s.%s", subjectPrefix, raceID, kind)
}

func (b *Bus) snapshotKey() string {
	return fmt.Sprintf("snapshot.%s", b.raceID)
}

func (b *Bus) Send(ctx context.Context, kind transport.Kind, data []byte) error {
	if kind == transport.KindSnapshot {
		rev, err := b.kv.Put(ctx, b.snapshotKey(), data)
		b.l.Debug("snapshot put",
			log.String("key", b.snapshotKey()),
			log.Int("dataLen", len(data)),
			log.Uint64("rev", rev),
			log.ErrorField(err))
		if err != nil {
			b.l.Warn("could not store latest snapshot", log.ErrorField(err))
		}
	}
	return b.conn.Publish(Subject(b.raceID, kind), data)
}

//nolint:whitespace // false positive
func (b *Bus) Receive(kind transport.Kind) (
	data <-chan []byte, cancel func(), err error,
) {
	bd, err := b.broadcaster(kind)
	if err != nil {
		return nil, nil, err
	}
	ch := bd.bs.Subscribe()
	var once sync.Once
	return ch, func() {
		once.Do(func() { bd.bs.CancelSubscription(ch) })
	}, nil
}

func (b *Bus) Latest(ctx context.Context) ([]byte, error) {
	entry, err := b.kv.Get(ctx, b.snapshotKey())
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, transport.ErrNoSnapshot
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	return entry.Value(), nil
}

// Forget removes the retained snapshot of the race.
func (b *Bus) Forget(ctx context.Context) error {
	return b.kv.Delete(ctx, b.snapshotKey())
}

func (b *Bus) Close() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	for k, bd := range b.kinds {
		close(bd.quitChan)
		delete(b.kinds, k)
	}
}

func (b *Bus) setupKV() error {
	var js jetstream.JetStream
	var err error
	if js, err = jetstream.New(b.conn); err != nil {
		return err
	}
	b.kv, err = js.CreateOrUpdateKeyValue(b.ctx, jetstream.KeyValueConfig{
		Bucket: b.bucket,
		TTL:    b.ttl,
	})
	return err
}

// we have one broadcaster per message kind which subscribes to the nats subject.
// we distribute it within this instance via our own broadcast server
func (b *Bus) broadcaster(kind transport.Kind) (*broadcastData, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if bd, ok := b.kinds[kind]; ok {
		return bd, nil
	}
	bd, err := createBroadcaster(b.raceID, kind, b.conn, b.l.Named(string(kind)))
	if err != nil {
		return nil, err
	}
	b.kinds[kind] = bd
	return bd, nil
}

//nolint:whitespace // false positive
func createBroadcaster(
	raceID string,
	kind transport.Kind,
	c *nats.Conn,
	l *log.Logger,
) (*broadcastData, error) {
	dataChan := make(chan []byte, 16)
	quitChan := make(chan struct{})
	bs := broadcast.NewBroadcastServer(raceID, fmt.Sprintf("nats.%s", kind), dataChan,
		broadcast.WithBufferSize[[]byte](32),
		broadcast.WithLogger[[]byte](l))
	subj := Subject(raceID, kind)
	sub, err := c.Subscribe(subj, func(msg *nats.Msg) {
		l.Debug("received data", log.String("subject", msg.Subject))
		select {
		case dataChan <- msg.Data:
		case <-quitChan:
		}
	})
	if err != nil {
		bs.Close()
		return nil, fmt.Errorf("subscribe %s: %w", subj, err)
	}
	go func() {
		<-quitChan
		l.Debug("quit received for nats subscr", log.String("subject", subj))
		bs.Close()
		if sub.IsValid() {
			if err := sub.Unsubscribe(); err != nil {
				l.Debug("error unsubscribing",
					log.String("sub", sub.Subject),
					log.ErrorField(err))
			}
		}
	}()
	return &broadcastData{bs: bs, quitChan: quitChan}, nil
}
