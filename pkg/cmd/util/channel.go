package util

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mpapenbr/racesim-engine/log"
	"github.com/mpapenbr/racesim-engine/pkg/config"
	"github.com/mpapenbr/racesim-engine/pkg/permission"
	"github.com/mpapenbr/racesim-engine/pkg/transport"
	natsTransport "github.com/mpapenbr/racesim-engine/pkg/transport/nats"
)

// OpenChannel connects to the NATS server and returns the race channel of self. The returned
// function closes the channel and the connection.
//
//nolint:whitespace // can't make both editor and linter happy
func OpenChannel(
	ctx context.Context,
	raceID, self, convener string,
	players []string,
) (transport.Channel, func(), error) {
	if config.NatsURL == "" {
		return nil, nil, errors.New("no NATS server configured (--nats-url)")
	}
	conn, err := nats.Connect(config.NatsURL,
		nats.Name(fmt.Sprintf("rse-%s", self)),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("NATS disconnected", log.ErrorField(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS reconnected", log.String("url", c.ConnectedUrl()))
		}))
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}
	bucket := config.KVBucket
	if bucket == "" {
		bucket = natsTransport.DefaultBucket
	}
	bus, err := natsTransport.NewBus(conn, raceID,
		natsTransport.WithContext(ctx),
		natsTransport.WithBucket(bucket, 24*time.Hour))
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	policy, err := permission.NewOpaEvaluator()
	if err != nil {
		bus.Close()
		conn.Close()
		return nil, nil, err
	}
	ep := transport.NewEndpoint(bus, raceID, self,
		transport.WithPolicy(policy),
		transport.WithConvener(convener))
	if len(players) > 0 {
		ep.SetPlayers(players)
	}
	return ep, func() {
		ep.Close()
		bus.Close()
		conn.Close()
	}, nil
}
