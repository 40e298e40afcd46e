package repository

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shgcolumns/repository/testutil"
)

func TestSchemaRepository(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewSchemaRepository(testDB.DB)
	ctx := context.Background()

	t.Run("missing schema", func(t *testing.T) {
		s, err := repo.GetByID(ctx, "schema-none")
		require.NoError(t, err)
		assert.Nil(t, s)

		s, err = repo.GetDefault(ctx, "group-none")
		require.NoError(t, err)
		assert.Nil(t, s)
	})

	t.Run("round trip", func(t *testing.T) {
		testDB.Truncate(t)
		original := testutil.CreateTestSchema("group-1")
		require.NoError(t, repo.Upsert(ctx, original))

		got, err := repo.GetByID(ctx, original.ID)
		require.NoError(t, err)
		require.NotNil(t, got)

		assert.Equal(t, original.ID, got.ID)
		assert.Equal(t, original.Version, got.Version)
		assert.True(t, got.IsDefault)
		require.Len(t, got.Columns, 2)
		assert.Equal(t, "col-insurance", got.Columns[0].ID)
		require.NotNil(t, got.Columns[0].Formula)
		assert.Equal(t, original.Columns[0].Formula.Expression, got.Columns[0].Formula.Expression)
		assert.Equal(t, original.Columns[0].Properties[0].Value, got.Columns[0].Properties[0].Value)
		assert.Nil(t, got.PreviousVersion)
		assert.True(t, original.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("previous version is kept", func(t *testing.T) {
		testDB.Truncate(t)
		v1 := testutil.CreateTestSchema("group-1")
		v2 := v1.Clone()
		v2.Version = 2
		v2.Columns = v2.Columns[:1]
		v2.PreviousVersion = v1
		require.NoError(t, repo.Upsert(ctx, v1))
		require.NoError(t, repo.Upsert(ctx, v2))

		got, err := repo.GetByID(ctx, v1.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Version)
		assert.Len(t, got.Columns, 1)
		require.NotNil(t, got.PreviousVersion)
		assert.Equal(t, 1, got.PreviousVersion.Version)
		assert.Len(t, got.PreviousVersion.Columns, 2)
	})

	t.Run("one default per group", func(t *testing.T) {
		testDB.Truncate(t)
		first := testutil.CreateTestSchema("group-1")
		require.NoError(t, repo.Upsert(ctx, first))

		second := testutil.CreateTestSchema("group-1")
		second.ID = "schema-alt"
		assert.Error(t, repo.Upsert(ctx, second), "unique default index")

		require.NoError(t, repo.ClearDefault(ctx, "group-1", "schema-alt"))
		require.NoError(t, repo.Upsert(ctx, second))

		def, err := repo.GetDefault(ctx, "group-1")
		require.NoError(t, err)
		assert.Equal(t, "schema-alt", def.ID)

		all, err := repo.ListByGroup(ctx, "group-1")
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "schema-alt", all[0].ID)
		assert.False(t, all[1].IsDefault)
	})

	t.Run("id owned by another group", func(t *testing.T) {
		testDB.Truncate(t)
		s := testutil.CreateTestSchema("group-1")
		require.NoError(t, repo.Upsert(ctx, s))

		other := s.Clone()
		other.GroupID = "group-2"
		assert.ErrorContains(t, repo.Upsert(ctx, other), "belongs to another group")
	})
}

func TestMemberDataRepository(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	schemas := NewSchemaRepository(testDB.DB)
	repo := NewMemberDataRepository(testDB.DB)
	ctx := context.Background()

	s := testutil.CreateTestSchema("group-1")
	require.NoError(t, schemas.Upsert(ctx, s))

	t.Run("missing member", func(t *testing.T) {
		data, err := repo.GetByMember(ctx, s.ID, "member-none")
		require.NoError(t, err)
		assert.Nil(t, data)
	})

	t.Run("upsert keeps the row id", func(t *testing.T) {
		first := testutil.CreateTestMemberData(s, "member-1")
		require.NoError(t, repo.Upsert(ctx, first))

		again := testutil.CreateTestMemberData(s, "member-1")
		again.ID = "data-replacement"
		again.CalculatedValues = map[string]any{"col-insurance": json.Number("120.5")}
		require.NoError(t, repo.Upsert(ctx, again))
		assert.Equal(t, "data-member-1", again.ID)

		got, err := repo.GetByMember(ctx, s.ID, "member-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, json.Number("1500"), got.ColumnValues["col-savings"])
		assert.Equal(t, json.Number("120.5"), got.CalculatedValues["col-insurance"])
	})

	t.Run("list by schema", func(t *testing.T) {
		require.NoError(t, repo.Upsert(ctx, testutil.CreateTestMemberData(s, "member-2")))

		all, err := repo.ListBySchema(ctx, s.ID)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "member-1", all[0].MemberID)
		assert.Equal(t, "member-2", all[1].MemberID)
	})
}
