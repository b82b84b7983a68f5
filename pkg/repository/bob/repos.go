package bob

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stephenafamo/bob"

	"github.com/mpapenbr/racesim-engine/pkg/repository/api"
	"github.com/mpapenbr/racesim-engine/pkg/repository/bob/ledger"
	"github.com/mpapenbr/racesim-engine/pkg/repository/bob/profile"
	"github.com/mpapenbr/racesim-engine/pkg/repository/bob/result"
)

type bobRepositories struct {
	profileRepository api.ProfileRepository
	resultRepository  api.ResultRepository
	ledgerRepository  api.LedgerRepository
}

var _ api.Repositories = (*bobRepositories)(nil)

func NewRepositoriesFromPool(pool *pgxpool.Pool) api.Repositories {
	db := bob.NewDB(stdlib.OpenDBFromPool(pool))
	return NewRepositories(db)
}

func NewRepositories(db bob.DB) api.Repositories {
	return &bobRepositories{
		profileRepository: profile.NewProfileRepository(db),
		resultRepository:  result.NewResultRepository(db),
		ledgerRepository:  ledger.NewLedgerRepository(db),
	}
}

func (r *bobRepositories) Profile() api.ProfileRepository {
	return r.profileRepository
}

func (r *bobRepositories) Result() api.ResultRepository {
	return r.resultRepository
}

func (r *bobRepositories) Ledger() api.LedgerRepository {
	return r.ledgerRepository
}
