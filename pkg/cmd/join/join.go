package join

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/racesim-engine/log"
	"github.com/mpapenbr/racesim-engine/pkg/cmd/util"
	"github.com/mpapenbr/racesim-engine/pkg/config"
	"github.com/mpapenbr/racesim-engine/pkg/model"
	"github.com/mpapenbr/racesim-engine/pkg/session"
)

func NewJoinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join",
		Short: "joins a race hosted by another player",
		Long: `Signals readiness to the convener and follows the race. Strategy changes are read
from stdin: "ers <mode>" or "line <line>".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return startJoin(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&config.RaceID,
		"race-id",
		"",
		"id of the race")
	cmd.Flags().StringVar(&config.Player,
		"player",
		"",
		"own player id")
	cmd.Flags().StringVar(&config.Convener,
		"convener",
		"",
		"player id of the convener")
	cmd.Flags().StringVar(&config.TrackFile,
		"track",
		"",
		"path to a track layout file, must match the one of the convener")
	cmd.Flags().StringVar(&config.KVBucket,
		"kv-bucket",
		"",
		"JetStream key value bucket for the latest snapshots")
	util.AddLogFlags(cmd)
	util.AddTelemetryFlags(cmd)
	return cmd
}

//nolint:funlen // by design
func startJoin(parent context.Context) error {
	logger, _, err := util.SetupLogger()
	if err != nil {
		return err
	}
	if config.Player == "" || config.Convener == "" || config.Player == config.Convener {
		return errors.New("--player and --convener must be set and differ")
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.AddToContext(ctx, logger)

	shutdown := util.SetupTelemetry(ctx)
	defer shutdown()

	if err := util.WaitForRequiredServices(ctx, false); err != nil {
		log.Error("required services not ready", log.ErrorField(err))
		return err
	}
	raceID, err := util.RaceID(false)
	if err != nil {
		return err
	}
	t, err := util.LoadTrack()
	if err != nil {
		return err
	}
	ch, closeCh, err := util.OpenChannel(ctx, raceID.String(), config.Player, config.Convener,
		[]string{config.Convener, config.Player})
	if err != nil {
		return err
	}
	defer closeCh()

	progress := newProgress(logger.Named("progress"), config.Player)
	p := session.NewParticipant(t, config.Player, ch,
		session.WithParticipantUpdate(progress.update),
		session.WithParticipantLogger(logger.Named("session")))
	go func() {
		if err := util.ReadIntents(ctx, os.Stdin, config.Player, p.SetIntent); err != nil {
			log.Warn("reading commands stopped", log.ErrorField(err))
		}
	}()

	fmt.Printf("Joining race %s of %s\n", raceID, config.Convener)
	final, err := p.Run(ctx)
	if err != nil {
		log.Error("race aborted", log.ErrorField(err))
		return err
	}
	if final.WinnerID == config.Player {
		fmt.Printf("You won after %d ticks\n", final.Tick)
	} else {
		fmt.Printf("%s won after %d ticks\n", final.WinnerID, final.Tick)
	}
	return nil
}

// progress logs the predicted position once per second.
type progress struct {
	l    *log.Logger
	self string
	mu   sync.Mutex
	last time.Time
}

func newProgress(l *log.Logger, self string) *progress {
	return &progress{l: l, self: self}
}

func (p *progress) update(s model.RaceState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if time.Since(p.last) < time.Second {
		return
	}
	p.last = time.Now()
	idx := s.CarIndex(p.self)
	if idx < 0 {
		return
	}
	own, other := s.Cars[idx].State, s.Cars[1-idx].State
	p.l.Info("predicted",
		log.Int("tick", s.Tick),
		log.Float64("distance", own.Distance),
		log.Float64("speed", own.Speed),
		log.Float64("battery", own.Battery),
		log.Float64("gap", own.Distance-other.Distance))
}
