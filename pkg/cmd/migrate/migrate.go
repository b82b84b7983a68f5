package migrate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/racesim-engine/log"
	"github.com/mpapenbr/racesim-engine/pkg/cmd/util"
	"github.com/mpapenbr/racesim-engine/pkg/config"
	dbMigrate "github.com/mpapenbr/racesim-engine/pkg/db/migrate"
)

func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "performs database migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startMigration(cmd.Context())
		},
	}
	util.AddLogFlags(cmd)
	return cmd
}

func startMigration(ctx context.Context) error {
	if _, _, err := util.SetupLogger(); err != nil {
		return err
	}
	if config.DB == "" {
		return errors.New("no database configured (--db)")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := util.WaitForRequiredServices(ctx, true); err != nil {
		log.Error("database not ready", log.ErrorField(err))
		return err
	}
	dbURL := prepareURLForDB(config.DB)
	if err := dbMigrate.MigrateDb(dbURL); err != nil {
		log.Error("migration failed", log.ErrorField(err))
		return err
	}
	version, dirty, err := dbMigrate.Version(dbURL)
	if err != nil {
		return err
	}
	log.Info("Database migrated", log.Uint32("version", uint32(version)), log.Bool("dirty", dirty))
	return nil
}

func prepareURLForDB(url string) string {
	options := "sslmode=disable"
	if strings.Contains(url, "sslmode=") {
		return url
	}
	if strings.Contains(url, "?") {
		return fmt.Sprintf("%s&%s", url, options)
	}
	return fmt.Sprintf("%s?%s", url, options)
}
