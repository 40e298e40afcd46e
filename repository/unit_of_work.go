package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"shgcolumns/database"
	"shgcolumns/events"
	"shgcolumns/service"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	transactionalBus *events.TransactionalBus
	schemaRepo       service.SchemaRepository
	memberDataRepo   service.MemberDataRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx
	u.schemaRepo = newSchemaRepositoryWithTx(tx)
	u.memberDataRepo = newMemberDataRepositoryWithTx(tx)
	return nil
}

// Commit commits the transaction and flushes events raised inside it
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	if err := u.tx.Commit(u.ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	u.tx = nil

	u.transactionalBus.Flush(u.ctx)
	return nil
}

// Rollback rolls back the transaction and drops pending events
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	u.tx = nil

	u.transactionalBus.Discard()
	return nil
}

// SchemaRepository returns the schema repository for this unit of work
func (u *unitOfWork) SchemaRepository() service.SchemaRepository {
	if u.schemaRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.schemaRepo
}

// MemberDataRepository returns the member data repository for this unit of work
func (u *unitOfWork) MemberDataRepository() service.MemberDataRepository {
	if u.memberDataRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.memberDataRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	return u.transactionalBus
}
