package simulate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/racesim-engine/log"
	"github.com/mpapenbr/racesim-engine/pkg/cmd/util"
	"github.com/mpapenbr/racesim-engine/pkg/config"
	"github.com/mpapenbr/racesim-engine/pkg/model"
	"github.com/mpapenbr/racesim-engine/pkg/outcome"
	"github.com/mpapenbr/racesim-engine/pkg/permission"
	"github.com/mpapenbr/racesim-engine/pkg/readiness"
	bobRepos "github.com/mpapenbr/racesim-engine/pkg/repository/bob"
	"github.com/mpapenbr/racesim-engine/pkg/scheduler"
	"github.com/mpapenbr/racesim-engine/pkg/session"
	"github.com/mpapenbr/racesim-engine/pkg/track"
	"github.com/mpapenbr/racesim-engine/pkg/transport"
	"github.com/mpapenbr/racesim-engine/pkg/transport/local"
)

var (
	playerA, playerB string
	scriptA, scriptB string
	seed             uint64
	outFile          string
	maxTicks         int
)

func NewSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "runs a race offline with two scripted players",
		Long: `Runs a complete race in process. Both players are driven by scripts of the form
"<tick>:<command>;..." where command is "ers <mode>" or "line <line>".
Time is simulated, the race finishes as fast as the machine allows.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return startSimulation(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&playerA, "player-a", "alice", "id of the convener")
	cmd.Flags().StringVar(&playerB, "player-b", "bob", "id of the other player")
	cmd.Flags().StringVar(&scriptA, "script-a", "", "strategy script of player a")
	cmd.Flags().StringVar(&scriptB, "script-b", "", "strategy script of player b")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed for the grid order, 0 derives it from the race id")
	cmd.Flags().StringVar(&config.RaceID, "race-id", "", "race id, a new one if empty")
	cmd.Flags().StringVar(&config.TrackFile, "track", "", "path to a track layout file")
	cmd.Flags().StringVar(&config.TokensPerPoint,
		"tokens-per-point",
		outcome.DefaultTokensPerPoint.String(),
		"tokens credited per reward point")
	cmd.Flags().StringVar(&outFile, "out", "", "write the final race state as json to this file")
	cmd.Flags().IntVar(&maxTicks, "max-ticks", 10000, "abort if the race takes longer")
	util.AddLogFlags(cmd)
	return cmd
}

//nolint:funlen // by design
func startSimulation(ctx context.Context) error {
	logger, sqlLogger, err := util.SetupLogger()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	raceID, err := util.RaceID(true)
	if err != nil {
		return err
	}
	t, err := util.LoadTrack()
	if err != nil {
		return err
	}
	sim := &simulation{
		track:    t,
		raceID:   raceID,
		players:  [2]string{playerA, playerB},
		seed:     seed,
		maxTicks: maxTicks,
		l:        logger.Named("simulate"),
	}
	if sim.scripts[0], err = parseScript(playerA, scriptA); err != nil {
		return err
	}
	if sim.scripts[1], err = parseScript(playerB, scriptB); err != nil {
		return err
	}
	resolverOpts := []outcome.Option{outcome.WithTokensPerPoint(util.TokensPerPoint())}
	if config.DB != "" {
		if err := util.WaitForRequiredServices(ctx, true); err != nil {
			return err
		}
		pool, err := util.InitPool(ctx, sqlLogger)
		if err != nil {
			return err
		}
		defer pool.Close()
		repos := bobRepos.NewRepositoriesFromPool(pool)
		sim.profiles = repos.Profile()
		resolverOpts = append(resolverOpts,
			outcome.WithLedger(repos.Ledger()),
			outcome.WithStore(repos.Result()))
	}
	sim.resolver = outcome.NewResolver(resolverOpts...)

	o, final, err := sim.run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Race %s finished after %d ticks\n", raceID, final.Tick)
	fmt.Printf("Winner: %s (gap %.3fs), points %d (x%d), tokens %s\n",
		o.WinnerID, o.Gap, o.Points, o.Multiplier, o.Tokens.String())
	if err := o.Err(); err != nil {
		fmt.Printf("WARNING: %v\n", err)
	}
	if outFile != "" {
		data, err := json.MarshalIndent(final, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(outFile, data, 0o600); err != nil {
			return err
		}
		log.Info("final state written", log.String("file", outFile))
	}
	return nil
}

type simulation struct {
	track    *track.Track
	raceID   uuid.UUID
	players  [2]string
	scripts  [2][]step
	seed     uint64
	profiles readiness.ProfileLoader
	resolver *outcome.Resolver
	maxTicks int
	l        *log.Logger
}

type hostResult struct {
	o   outcome.Outcome
	err error
}

type guestResult struct {
	s   model.RaceState
	err error
}

// intentDelivery is the time granted to the in-process channel to hand an intent of
// player b to the host before the next tick.
const intentDelivery = 20 * time.Millisecond

//nolint:funlen,cyclop,gocognit // by design
func (s *simulation) run(parent context.Context) (outcome.Outcome, model.RaceState, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	id := s.raceID.String()
	hub := local.NewHub()
	defer hub.Remove(id)
	policy, err := permission.NewOpaEvaluator()
	if err != nil {
		return outcome.Outcome{}, model.RaceState{}, err
	}
	players := s.players[:]
	hostCh := transport.NewEndpoint(hub.Bus(id), id, s.players[0],
		transport.WithPolicy(policy), transport.WithConvener(s.players[0]))
	hostCh.SetPlayers(players)
	defer hostCh.Close()
	guestCh := transport.NewEndpoint(hub.Bus(id), id, s.players[1],
		transport.WithPolicy(policy), transport.WithConvener(s.players[0]))
	guestCh.SetPlayers(players)
	defer guestCh.Close()

	hostSched := scheduler.NewManual()
	guestSched := scheduler.NewManual()
	epoch := time.Unix(0, 0)

	hostOpts := []session.HostOption{
		session.WithHostScheduler(hostSched),
		session.WithReadiness(readiness.NewCollector(hostCh,
			readiness.WithProfiles(s.profiles),
			readiness.WithLogger(s.l.Named("readiness")))),
		session.WithResolver(s.resolver),
		session.WithHostLogger(s.l.Named("host")),
	}
	if s.seed != 0 {
		hostOpts = append(hostOpts, session.WithSeed(s.seed))
	}
	host := session.NewHost(s.raceID, s.track, s.players[0], s.players[1], hostCh, hostOpts...)
	guest := session.NewParticipant(s.track, s.players[1], guestCh,
		session.WithParticipantScheduler(guestSched),
		session.WithReadyInterval(10*time.Millisecond),
		session.WithThrottleClock(func() time.Time { return epoch.Add(guestSched.Now()) }),
		session.WithParticipantLogger(s.l.Named("guest")))

	hostDone := make(chan hostResult, 1)
	guestDone := make(chan guestResult, 1)
	go func() {
		o, err := host.Run(ctx)
		hostDone <- hostResult{o, err}
	}()
	go func() {
		st, err := guest.Run(ctx)
		guestDone <- guestResult{st, err}
	}()

	if err := s.waitStarted(ctx, host, hostDone); err != nil {
		return outcome.Outcome{}, model.RaceState{}, err
	}

	var hr hostResult
	for tick := 0; ; tick++ {
		if tick > s.maxTicks {
			return outcome.Outcome{}, model.RaceState{},
				fmt.Errorf("race not finished after %d ticks", s.maxTicks)
		}
		for _, i := range due(s.scripts[0], tick) {
			if err := host.SetIntent(i); err != nil {
				s.l.Warn("script step rejected", log.Int("tick", tick), log.ErrorField(err))
			}
		}
		if steps := due(s.scripts[1], tick); len(steps) > 0 {
			for _, i := range steps {
				if err := guest.SetIntent(i); err != nil {
					s.l.Warn("script step rejected", log.Int("tick", tick), log.ErrorField(err))
				}
			}
			time.Sleep(intentDelivery)
		}
		select {
		case hr = <-hostDone:
		case <-ctx.Done():
			return outcome.Outcome{}, model.RaceState{}, ctx.Err()
		default:
			hostSched.Advance(time.Second)
			guestSched.Advance(time.Second)
			time.Sleep(time.Millisecond)
			continue
		}
		break
	}
	if hr.err != nil {
		return outcome.Outcome{}, model.RaceState{}, hr.err
	}
	final, err := host.Snapshot()
	if err != nil {
		return outcome.Outcome{}, model.RaceState{}, err
	}
	select {
	case gr := <-guestDone:
		if gr.err != nil {
			s.l.Warn("participant stopped", log.ErrorField(gr.err))
		} else if gr.s.Tick != final.Tick {
			s.l.Warn("participant saw a different finish",
				log.Int("tick", gr.s.Tick), log.Int("host", final.Tick))
		}
	case <-time.After(5 * time.Second):
		s.l.Warn("participant did not see the finish")
	}
	return hr.o, final, nil
}

// waitStarted polls until the host runs its loop.
//
//nolint:whitespace // can't make both editor and linter happy
func (s *simulation) waitStarted(
	ctx context.Context, host *session.Host, hostDone <-chan hostResult,
) error {
	timeout := time.After(10 * time.Second)
	for {
		if _, err := host.Snapshot(); err == nil {
			return nil
		} else if !errors.Is(err, session.ErrNotStarted) {
			return err
		}
		select {
		case hr := <-hostDone:
			if hr.err != nil {
				return hr.err
			}
			return errors.New("host stopped before the race started")
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return errors.New("race did not start")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
