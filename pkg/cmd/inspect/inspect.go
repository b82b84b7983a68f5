package inspect

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gofrs/uuid/v5"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/racesim-engine/log"
	"github.com/mpapenbr/racesim-engine/pkg/cmd/util"
	"github.com/mpapenbr/racesim-engine/pkg/config"
	bobRepos "github.com/mpapenbr/racesim-engine/pkg/repository/bob"
)

var indent int

func NewInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [file] <jsonpath>",
		Short: "queries a stored race state",
		Long: `Evaluates a JSONPath expression on a race state file written by "simulate --out"
or, with --race-id and --db, on the stored result of a race.

Example: rse inspect final.json '$.tickLog[?(@.tick > 40)].cars[0].speed'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspect(cmd.Context(), args)
		},
	}
	cmd.Flags().StringVar(&config.RaceID, "race-id", "", "load the race from the database")
	cmd.Flags().IntVar(&indent, "indent", 2, "indentation of the output, 0 for one line")
	util.AddLogFlags(cmd)
	return cmd
}

func inspect(ctx context.Context, args []string) error {
	_, sqlLogger, err := util.SetupLogger()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var data []byte
	var expr string
	switch {
	case config.RaceID != "" && len(args) == 1:
		expr = args[0]
		if data, err = loadStored(ctx, sqlLogger); err != nil {
			return err
		}
	case config.RaceID == "" && len(args) == 2:
		expr = args[1]
		if data, err = os.ReadFile(args[0]); err != nil {
			return err
		}
	default:
		return errors.New("expected <file> <jsonpath> or --race-id with <jsonpath>")
	}
	results, err := query(data, expr)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("no match for %s", expr)
	}
	fmt.Println(format(results, indent))
	return nil
}

func loadStored(ctx context.Context, sqlLogger *log.Logger) ([]byte, error) {
	if config.DB == "" {
		return nil, errors.New("--race-id requires a database (--db)")
	}
	raceID, err := uuid.FromString(config.RaceID)
	if err != nil {
		return nil, fmt.Errorf("invalid race id: %w", err)
	}
	pool, err := util.InitPool(ctx, sqlLogger)
	if err != nil {
		return nil, err
	}
	defer pool.Close()
	res, err := bobRepos.NewRepositoriesFromPool(pool).Result().LoadByRaceID(ctx, raceID)
	if err != nil {
		return nil, fmt.Errorf("load race %s: %w", raceID, err)
	}
	return storedDocument(res.RaceID.String(), res.WinnerID, res.Ticks, res.TickLog)
}
