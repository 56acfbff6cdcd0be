package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"intranet-portal/pkg/audit"
	"intranet-portal/pkg/auth"
	authmem "intranet-portal/pkg/auth/memstore"
	"intranet-portal/pkg/config"
	"intranet-portal/pkg/logging"
	"intranet-portal/pkg/manual"
	manualmem "intranet-portal/pkg/manual/memstore"
	"intranet-portal/pkg/poll"
	pollmem "intranet-portal/pkg/poll/memstore"
	"intranet-portal/pkg/storage/postgres"
	"intranet-portal/pkg/treasury"
	treasurymem "intranet-portal/pkg/treasury/memstore"

	"go.uber.org/zap"
)

// stores bundles the repositories for one storage driver.
type stores struct {
	ledger   treasury.Store
	articles manual.Store
	users    auth.Store
	polls    poll.Store
	audit    audit.Sink
	ping     func(ctx context.Context) error
	close    func() error
}

// openStores connects the configured driver. The memory driver keeps
// everything in process and forgets it on exit.
func openStores(ctx context.Context, cfg config.Config, logger *logging.Logger) (*stores, error) {
	switch cfg.Storage.Driver {
	case "memory":
		logger.Warn("using in-memory storage; data is lost on exit")
		return &stores{
			ledger:   treasurymem.New(),
			articles: manualmem.New(),
			users:    authmem.New(),
			polls:    pollmem.New(),
			audit:    audit.NewLogSink(logger),
			close:    func() error { return nil },
		}, nil

	case "postgres":
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to postgres",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.Database),
		)
		return postgresStores(db), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

func postgresStores(db *sql.DB) *stores {
	return &stores{
		ledger:   postgres.NewLedgerStore(db),
		articles: postgres.NewArticleStore(db),
		users:    postgres.NewUserStore(db),
		polls:    postgres.NewPollStore(db),
		audit:    postgres.NewAuditSink(db),
		ping:     db.PingContext,
		close:    db.Close,
	}
}
