package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shgcolumns/events"
	"shgcolumns/repository/testutil"
)

func TestUnitOfWork(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	bus := events.NewBus()
	factory := NewUnitOfWorkFactory(testDB.DB, bus)
	ctx := context.Background()

	saved := make(chan events.Event, 4)
	bus.Subscribe(events.EventTypeSchemaSaved, func(ctx context.Context, e events.Event) {
		saved <- e
	})

	t.Run("commit persists and flushes events", func(t *testing.T) {
		testDB.Truncate(t)
		s := testutil.CreateTestSchema("group-1")

		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		require.NoError(t, uow.SchemaRepository().Upsert(ctx, s))
		uow.EventBus().Publish(events.SchemaSavedEvent{SchemaID: s.ID, GroupID: s.GroupID, Version: s.Version})
		require.NoError(t, uow.Commit())
		require.NoError(t, uow.Rollback(), "rollback after commit is a no-op")

		select {
		case e := <-saved:
			assert.Equal(t, s.ID, e.(events.SchemaSavedEvent).SchemaID)
		case <-time.After(2 * time.Second):
			t.Fatal("event was not flushed after commit")
		}

		got, err := NewSchemaRepository(testDB.DB).GetByID(ctx, s.ID)
		require.NoError(t, err)
		assert.NotNil(t, got)
	})

	t.Run("rollback discards writes and events", func(t *testing.T) {
		testDB.Truncate(t)
		s := testutil.CreateTestSchema("group-2")

		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		require.NoError(t, uow.SchemaRepository().Upsert(ctx, s))
		uow.EventBus().Publish(events.SchemaSavedEvent{SchemaID: s.ID})
		require.NoError(t, uow.Rollback())

		select {
		case <-saved:
			t.Fatal("event delivered after rollback")
		case <-time.After(100 * time.Millisecond):
		}

		got, err := NewSchemaRepository(testDB.DB).GetByID(ctx, s.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("begin twice", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		defer uow.Rollback()
		assert.EqualError(t, uow.Begin(ctx), "transaction already started")
	})
}
