package nats

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/racesim-engine/pkg/model"
	"github.com/mpapenbr/racesim-engine/pkg/transport"
	"github.com/mpapenbr/racesim-engine/testsupport/tcnats"
)

var conn *nats.Conn

func TestMain(m *testing.M) {
	conn = tcnats.Connect()
	code := m.Run()
	conn.Close()
	os.Exit(code)
}

func newRace(t *testing.T) (raceID string, bus *Bus) {
	t.Helper()
	raceID = uuid.Must(uuid.NewV4()).String()
	bus, err := NewBus(conn, raceID, WithBucket("rse-test", time.Minute))
	require.NoError(t, err)
	t.Cleanup(bus.Close)
	return raceID, bus
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "rse.r1.intent", Subject("r1", transport.KindIntent))
}

func TestBus_Roundtrip(t *testing.T) {
	raceID, bus := newRace(t)
	ctx := context.Background()
	host := transport.NewEndpoint(bus, raceID, "alice")
	guest := transport.NewEndpoint(bus, raceID, "bob", transport.WithConvener("alice"))

	intents, quit, err := host.SubscribeIntents()
	require.NoError(t, err)
	defer close(quit)
	require.NoError(t, conn.Flush())

	intent := model.StrategyIntent{
		PlayerID: "bob", ErsMode: model.ErsRecharge, RacingLine: model.LineAway,
	}
	require.NoError(t, guest.PublishIntent(ctx, intent))
	select {
	case got := <-intents:
		assert.Equal(t, intent, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout")
	}
}

func TestBus_LatestSnapshot(t *testing.T) {
	raceID, bus := newRace(t)
	ctx := context.Background()
	host := transport.NewEndpoint(bus, raceID, "alice")

	_, err := host.LatestSnapshot(ctx)
	assert.ErrorIs(t, err, transport.ErrNoSnapshot)

	snap := model.RaceState{
		RaceID:   uuid.Must(uuid.FromString(raceID)),
		Track:    "ring",
		Convener: "alice",
		Tick:     7,
		Clock:    7,
	}
	require.NoError(t, host.PublishSnapshot(ctx, snap))

	// a second process joining late
	lateBus, err := NewBus(conn, raceID, WithBucket("rse-test", time.Minute))
	require.NoError(t, err)
	defer lateBus.Close()
	late := transport.NewEndpoint(lateBus, raceID, "bob")
	got, err := late.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	require.NoError(t, bus.Forget(ctx))
	_, err = late.LatestSnapshot(ctx)
	assert.ErrorIs(t, err, transport.ErrNoSnapshot)
}
