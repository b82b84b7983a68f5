package testdb

import (
	"log"
	"os"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	tcpg "github.com/mpapenbr/racesim-engine/testsupport/tcpostgres"
)

var (
	pool     *pgxpool.Pool
	poolOnce sync.Once
)

// InitTestDb returns a migrated database with empty tables.
// The container (or TESTDB_URL database) is shared by all tests of a package.
func InitTestDb() *pgxpool.Pool {
	poolOnce.Do(func() {
		if os.Getenv("TESTDB_URL") != "" {
			pool = tcpg.SetupExternalTestDb()
		} else {
			pool = tcpg.SetupTestDb()
		}
	})
	if pool == nil {
		log.Fatal("initTestDb: no pool")
	}
	tcpg.ClearAllTables(pool)
	return pool
}
