// Package readiness decides when a race may start and which driver profiles it is run with.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/mpapenbr/racesim-engine/log"
	"github.com/mpapenbr/racesim-engine/pkg/model"
	"github.com/mpapenbr/racesim-engine/pkg/transport"
	"github.com/mpapenbr/racesim-engine/pkg/utils/cache"
	"github.com/mpapenbr/racesim-engine/pkg/utils/cache/loadercache"
)

var ErrNotReady = errors.New("players not ready")

type (
	// Source reports when both players are ready and supplies their profiles.
	Source interface {
		// Wait blocks until every player signalled readiness. Players listed in ready
		// count as ready already.
		Wait(ctx context.Context, players [2]string, ready ...string) (
			[2]model.DriverProfile, error)
	}

	ProfileLoader interface {
		Load(ctx context.Context, playerID string) (model.DriverProfile, error)
	}
)

// Collector listens for ready messages on the race channel.
type Collector struct {
	ch       transport.Channel
	profiles ProfileLoader
	l        *log.Logger
}

type Option func(*Collector)

var _ Source = (*Collector)(nil)

func WithProfiles(p ProfileLoader) Option {
	return func(c *Collector) { c.profiles = p }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Collector) { c.l = l }
}

func NewCollector(ch transport.Channel, opts ...Option) *Collector {
	c := &Collector{
		ch: ch,
		l:  log.Default().Named("readiness"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

//nolint:whitespace // can't make both editor and linter happy
func (c *Collector) Wait(ctx context.Context, players [2]string, ready ...string) (
	[2]model.DriverProfile, error,
) {
	data, quit, err := c.ch.SubscribeReady()
	if err != nil {
		return [2]model.DriverProfile{}, fmt.Errorf("subscribe ready: %w", err)
	}
	defer close(quit)

	seen := map[string]bool{}
	for _, id := range ready {
		if slices.Contains(players[:], id) {
			seen[id] = true
		}
	}
	want := len(lo.Uniq(players[:]))
	for len(seen) < want {
		select {
		case <-ctx.Done():
			return [2]model.DriverProfile{}, fmt.Errorf("%w: %w", ErrNotReady, ctx.Err())
		case r, ok := <-data:
			if !ok {
				return [2]model.DriverProfile{}, fmt.Errorf("%w: channel closed", ErrNotReady)
			}
			if !slices.Contains(players[:], r.PlayerID) {
				c.l.Warn("ready from unknown player", log.String("player", r.PlayerID))
				continue
			}
			if !seen[r.PlayerID] {
				c.l.Info("player ready", log.String("player", r.PlayerID))
			}
			seen[r.PlayerID] = true
		}
	}
	return loadProfiles(ctx, c.profiles, players, c.l), nil
}

// Static is a Source for races where both players are known to be ready.
type Static struct {
	Profiles ProfileLoader
}

//nolint:whitespace // can't make both editor and linter happy
func (s Static) Wait(ctx context.Context, players [2]string, _ ...string) (
	[2]model.DriverProfile, error,
) {
	if err := ctx.Err(); err != nil {
		return [2]model.DriverProfile{}, fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	return loadProfiles(ctx, s.Profiles, players, log.Default().Named("readiness")), nil
}

// loadProfiles never fails: a profile that cannot be loaded is replaced by the neutral one.
func loadProfiles(ctx context.Context, loader ProfileLoader, players [2]string,
	l *log.Logger,
) [2]model.DriverProfile {
	var ret [2]model.DriverProfile
	for i, id := range players {
		ret[i] = model.NeutralProfile
		if loader == nil {
			l.Warn("no profile source, using neutral profile", log.String("player", id))
			continue
		}
		p, err := loader.Load(ctx, id)
		if err != nil {
			l.Warn("profile not available, using neutral profile",
				log.String("player", id), log.ErrorField(err))
			continue
		}
		ret[i] = p.Sanitized()
	}
	return ret
}

// Map serves profiles from memory
type Map map[string]model.DriverProfile

func (m Map) Load(_ context.Context, playerID string) (model.DriverProfile, error) {
	if p, ok := m[playerID]; ok {
		return p, nil
	}
	return model.DriverProfile{}, fmt.Errorf("profile %s: %w", playerID, cache.ErrCacheMiss)
}

type cachedProfiles struct {
	c cache.Cache[string, model.DriverProfile]
}

// NewCachedProfiles keeps loaded profiles for expiration.
func NewCachedProfiles(loader ProfileLoader, expiration time.Duration) ProfileLoader {
	return &cachedProfiles{
		c: loadercache.New(
			loadercache.WithExpiration[string, model.DriverProfile](expiration),
			loadercache.WithLoader[string, model.DriverProfile](
				func(ctx context.Context, id string) (*model.DriverProfile, error) {
					p, err := loader.Load(ctx, id)
					if err != nil {
						return nil, err
					}
					return &p, nil
				}),
			loadercache.WithLogger[string, model.DriverProfile](
				log.Default().Named("readiness.cache")),
		),
	}
}

func (c *cachedProfiles) Load(ctx context.Context, playerID string) (model.DriverProfile, error) {
	p, err := c.c.Get(ctx, playerID)
	if err != nil {
		return model.DriverProfile{}, err
	}
	return *p, nil
}
