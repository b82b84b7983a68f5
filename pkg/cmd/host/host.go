package host

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/racesim-engine/log"
	"github.com/mpapenbr/racesim-engine/pkg/cmd/util"
	"github.com/mpapenbr/racesim-engine/pkg/config"
	"github.com/mpapenbr/racesim-engine/pkg/outcome"
	"github.com/mpapenbr/racesim-engine/pkg/readiness"
	"github.com/mpapenbr/racesim-engine/pkg/repository/api"
	bobRepos "github.com/mpapenbr/racesim-engine/pkg/repository/bob"
	"github.com/mpapenbr/racesim-engine/pkg/server"
	"github.com/mpapenbr/racesim-engine/pkg/session"
	"github.com/mpapenbr/racesim-engine/pkg/utils"
)

//nolint:funlen // by design
func NewHostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host",
		Short: "hosts a race as convener",
		Long: `Waits for the opponent to be ready, runs the authoritative loop and resolves the
outcome. Strategy changes are read from stdin: "ers <mode>" or "line <line>".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return startHost(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&config.RaceID,
		"race-id",
		"",
		"id of the race (a new one is created if empty)")
	cmd.Flags().StringVar(&config.Player,
		"player",
		"",
		"own player id")
	cmd.Flags().StringVar(&config.Opponent,
		"opponent",
		"",
		"player id of the opponent")
	cmd.Flags().StringVar(&config.TrackFile,
		"track",
		"",
		"path to a track layout file (yaml or json), empty uses the built-in track")
	cmd.Flags().StringVar(&config.TickInterval,
		"tick-interval",
		"1s",
		"wall time of one authoritative tick")
	cmd.Flags().StringVar(&config.Countdown,
		"countdown",
		"3s",
		"delay between start signal and first tick")
	cmd.Flags().StringVar(&config.TokensPerPoint,
		"tokens-per-point",
		outcome.DefaultTokensPerPoint.String(),
		"tokens credited per reward point")
	cmd.Flags().StringVar(&config.ProfileCacheTTL,
		"profile-cache-ttl",
		"5m",
		"how long loaded driver profiles are cached")
	cmd.Flags().StringVar(&config.KVBucket,
		"kv-bucket",
		"",
		"JetStream key value bucket for the latest snapshots")
	cmd.Flags().StringVar(&config.APIAddr,
		"api-addr",
		"",
		"listen address of the HTTP API, empty disables it")
	cmd.Flags().StringVar(&config.TLSCertFile,
		"tls-cert",
		"",
		"path to TLS certificate of the HTTP API")
	cmd.Flags().StringVar(&config.TLSKeyFile,
		"tls-key",
		"",
		"path to TLS key of the HTTP API")
	cmd.Flags().StringVar(&config.TLSCAFile,
		"tls-ca",
		"",
		"path to TLS CA for client certificates")
	cmd.Flags().BoolVar(&config.DebugWire,
		"debug-wire",
		false,
		"if true and log level is debug, every snapshot sent by the API is logged")
	util.AddLogFlags(cmd)
	util.AddTelemetryFlags(cmd)
	return cmd
}

//nolint:funlen,cyclop // by design
func startHost(parent context.Context) error {
	logger, sqlLogger, err := util.SetupLogger()
	if err != nil {
		return err
	}
	if config.Player == "" || config.Opponent == "" || config.Player == config.Opponent {
		return errors.New("--player and --opponent must be set and differ")
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.AddToContext(ctx, logger)

	shutdown := util.SetupTelemetry(ctx)
	defer shutdown()

	if err := util.WaitForRequiredServices(ctx, config.DB != ""); err != nil {
		log.Error("required services not ready", log.ErrorField(err))
		return err
	}

	raceID, err := util.RaceID(true)
	if err != nil {
		return err
	}
	t, err := util.LoadTrack()
	if err != nil {
		return err
	}
	ch, closeCh, err := util.OpenChannel(ctx, raceID.String(), config.Player, config.Player,
		[]string{config.Player, config.Opponent})
	if err != nil {
		return err
	}
	defer closeCh()

	resolverOpts := []outcome.Option{outcome.WithTokensPerPoint(util.TokensPerPoint())}
	var profiles readiness.ProfileLoader
	var repos api.Repositories
	if config.DB != "" {
		pool, err := util.InitPool(ctx, sqlLogger)
		if err != nil {
			log.Error("could not connect to database", log.ErrorField(err))
			return err
		}
		defer pool.Close()
		repos = bobRepos.NewRepositoriesFromPool(pool)
		resolverOpts = append(resolverOpts,
			outcome.WithLedger(repos.Ledger()),
			outcome.WithStore(repos.Result()))
		profiles = readiness.NewCachedProfiles(repos.Profile(),
			util.ParseDuration("profile-cache-ttl", config.ProfileCacheTTL, 5*time.Minute))
	} else {
		log.Warn("No database configured, profiles are neutral and outcomes are not stored")
	}

	lookup := utils.NewRaceLookup()
	if config.APIAddr != "" {
		apiServer := startAPI(ctx, lookup, repos)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = apiServer.Shutdown(sctx)
		}()
	}

	h := session.NewHost(raceID, t, config.Player, config.Opponent, ch,
		session.WithReadiness(readiness.NewCollector(ch,
			readiness.WithProfiles(profiles),
			readiness.WithLogger(logger.Named("readiness")))),
		session.WithResolver(outcome.NewResolver(resolverOpts...)),
		session.WithTickInterval(
			util.ParseDuration("tick-interval", config.TickInterval, time.Second)),
		session.WithCountdown(util.ParseDuration("countdown", config.Countdown, 0)),
		session.WithLookup(lookup),
	)
	go func() {
		if err := util.ReadIntents(ctx, os.Stdin, config.Player, h.SetIntent); err != nil {
			log.Warn("reading commands stopped", log.ErrorField(err))
		}
	}()

	fmt.Printf("Hosting race %s on %s, waiting for %s\n", raceID, t.Name(), config.Opponent)
	o, err := h.Run(ctx)
	if err != nil {
		log.Error("race aborted", log.ErrorField(err))
		return err
	}
	printOutcome(o)

	if config.APIAddr != "" {
		fmt.Println("API keeps serving the result, press Ctrl-C to stop")
		<-ctx.Done()
	}
	return nil
}

func startAPI(ctx context.Context, lookup *utils.RaceLookup, repos api.Repositories) *http.Server {
	opts := []server.Option{
		server.WithRaceLookup(lookup),
		server.WithDebugWire(config.DebugWire),
	}
	if repos != nil {
		opts = append(opts, server.WithRepositories(repos))
	}
	mux := server.NewMux(server.NewServer(opts...))
	httpServer := &http.Server{
		Addr:              config.APIAddr,
		Handler:           server.NewHandler(mux),
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         NewTLSConfigProvider(ctx),
	}
	go func() {
		var err error
		if httpServer.TLSConfig != nil {
			log.Info("Starting API server (tls)", log.String("addr", config.APIAddr))
			err = httpServer.ListenAndServeTLS("", "")
		} else {
			log.Info("Starting API server", log.String("addr", config.APIAddr))
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("API server stopped", log.ErrorField(err))
		}
	}()
	return httpServer
}

func printOutcome(o outcome.Outcome) {
	fmt.Printf("Winner: %s (gap %.3fs)\n", o.WinnerID, o.Gap)
	fmt.Printf("Points: %d (x%d), tokens: %s\n", o.Points, o.Multiplier, o.Tokens.String())
	if o.LedgerErr != nil {
		fmt.Printf("WARNING: reward could not be credited: %v\n", o.LedgerErr)
	}
	if o.StoreErr != nil {
		fmt.Printf("WARNING: result could not be stored: %v\n", o.StoreErr)
	}
}
