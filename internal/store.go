package internal

import (
	"context"

	"github.com/hbomb79/Reel/internal/catalog"
	"github.com/hbomb79/Reel/internal/database"
	"github.com/jmoiron/sqlx"
)

// storeOrchestrator binds the catalog store to the database connection,
// and is the only path through which the rest of Reel reads or writes
// records. Operations which issue more than one query are wrapped in a
// transaction.
type storeOrchestrator struct {
	db           database.Manager
	CatalogStore *catalog.Store
}

func newStoreOrchestrator(db database.Manager) *storeOrchestrator {
	return &storeOrchestrator{db: db, CatalogStore: &catalog.Store{}}
}

func (orchestrator *storeOrchestrator) GetRecord(ctx context.Context, id int64) (*catalog.MediaRecord, error) {
	return orchestrator.CatalogStore.Get(ctx, orchestrator.db.GetSqlxDb(), id)
}

func (orchestrator *storeOrchestrator) GetRecordByPath(ctx context.Context, path string) (*catalog.MediaRecord, error) {
	return orchestrator.CatalogStore.GetByPath(ctx, orchestrator.db.GetSqlxDb(), path)
}

func (orchestrator *storeOrchestrator) CreateRecord(ctx context.Context, record catalog.NewRecord) (*catalog.MediaRecord, error) {
	return orchestrator.CatalogStore.Create(ctx, orchestrator.db.GetSqlxDb(), record)
}

func (orchestrator *storeOrchestrator) ListRecords(ctx context.Context) ([]*catalog.MediaRecord, error) {
	return orchestrator.CatalogStore.List(ctx, orchestrator.db.GetSqlxDb())
}

func (orchestrator *storeOrchestrator) ListRecordsByCategory(ctx context.Context, category string) ([]*catalog.MediaRecord, error) {
	return orchestrator.CatalogStore.ListByCategory(ctx, orchestrator.db.GetSqlxDb(), category)
}

func (orchestrator *storeOrchestrator) DeleteRecord(ctx context.Context, id int64) (bool, error) {
	return orchestrator.CatalogStore.Delete(ctx, orchestrator.db.GetSqlxDb(), id)
}

// GetStats computes the catalog statistics inside of a single transaction,
// so that the per-format breakdown always agrees with the totals.
func (orchestrator *storeOrchestrator) GetStats(ctx context.Context) (*catalog.Stats, error) {
	var stats *catalog.Stats
	if err := orchestrator.db.WrapTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		stats, err = orchestrator.CatalogStore.GetStats(ctx, tx)
		return err
	}); err != nil {
		return nil, err
	}

	return stats, nil
}

func (orchestrator *storeOrchestrator) UpdateRecordCategory(ctx context.Context, id int64, category string) error {
	return orchestrator.CatalogStore.UpdateCategory(ctx, orchestrator.db.GetSqlxDb(), id, category)
}

func (orchestrator *storeOrchestrator) UpdateRecordPoster(ctx context.Context, id int64, path string) error {
	return orchestrator.CatalogStore.UpdateLocalPoster(ctx, orchestrator.db.GetSqlxDb(), id, path)
}

func (orchestrator *storeOrchestrator) UpdateRecordMetadata(ctx context.Context, id int64, metadata catalog.Metadata) error {
	return orchestrator.CatalogStore.UpdateMetadata(ctx, orchestrator.db.GetSqlxDb(), id, metadata)
}
