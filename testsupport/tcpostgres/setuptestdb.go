//nolint:errcheck // testsetup
package tcpostgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mpapenbr/racesim-engine/pkg/db/migrate"
	database "github.com/mpapenbr/racesim-engine/pkg/db/postgres"
	"github.com/mpapenbr/racesim-engine/testsupport/tccontainer"
)

// create a pg connection pool for the racesim testdatabase
func SetupTestDb() *pgxpool.Pool {
	addr, err := tccontainer.Start(context.Background(), "postgres:17-alpine", "5432",
		tccontainer.WithEnv("POSTGRES_USER", "postgres"),
		tccontainer.WithEnv("POSTGRES_PASSWORD", "password"),
		tccontainer.WithEnv("POSTGRES_DB", "postgres"),
		tccontainer.WithCmd("postgres", "-c", "fsync=off"),
		tccontainer.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
		tccontainer.WithName("racesim-engine-test"),
	)
	if err != nil {
		log.Fatal(err)
	}
	return setupWithUrl(fmt.Sprintf("postgresql://postgres:password@%s/postgres", addr))
}

// SetupExternalTestDb uses the database referenced by TESTDB_URL
func SetupExternalTestDb() *pgxpool.Pool {
	return setupWithUrl(os.Getenv("TESTDB_URL"))
}

func setupWithUrl(dbUrl string) *pgxpool.Pool {
	if err := migrate.MigrateDb(dbUrl); err != nil {
		log.Fatal(err)
	}
	pool, err := database.InitWithURL(context.Background(), dbUrl)
	if err != nil {
		log.Fatal(err)
	}
	return pool
}

func ClearProfileTable(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from driver_profile")
}

func ClearResultTable(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from race_result")
}

func ClearLedgerTable(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from reward_ledger")
}

func ClearAllTables(pool *pgxpool.Pool) {
	ClearLedgerTable(pool)
	ClearResultTable(pool)
	ClearProfileTable(pool)
}
