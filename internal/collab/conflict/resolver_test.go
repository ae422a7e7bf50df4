package conflict

import (
	"testing"

	"realtime-collab-be/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record() *model.ConflictRecord {
	return &model.ConflictRecord{
		Id:         uuid.New(),
		Kind:       model.ConflictContentOverlap,
		Severity:   model.SeverityMedium,
		OperationA: uuid.New(),
		OperationB: uuid.New(),
	}
}

func TestForStrategy(t *testing.T) {
	assert.Equal(t, model.StrategyOperationalTransform, ForStrategy(model.StrategyOperationalTransform).Strategy())
	assert.Equal(t, model.StrategyLastWriteWins, ForStrategy(model.StrategyLastWriteWins).Strategy())
	assert.Equal(t, model.StrategyManualResolution, ForStrategy(model.StrategyManualResolution).Strategy())
	assert.Equal(t, model.StrategyOperationalTransform, ForStrategy("bogus").Strategy())
}

func TestOTResolverAcceptsAndCloses(t *testing.T) {
	rec := record()
	incoming := &model.Operation{Id: rec.OperationA, Type: model.OpInsert}

	res, err := OTResolver{}.Resolve(rec, incoming, &model.Operation{Id: rec.OperationB})
	require.NoError(t, err)
	assert.Same(t, incoming, res.Accepted)
	assert.False(t, res.Deferred)
	assert.True(t, rec.Resolved())
}

func TestLWWResolver(t *testing.T) {
	lower := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	higher := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	t.Run("later composed version wins", func(t *testing.T) {
		rec := record()
		incoming := &model.Operation{Id: rec.OperationA, AuthorId: lower, ComposedVersion: 5}
		committed := &model.Operation{Id: rec.OperationB, AuthorId: higher, ComposedVersion: 3}

		res, err := LWWResolver{}.Resolve(rec, incoming, committed)
		require.NoError(t, err)
		assert.Same(t, incoming, res.Accepted)
		assert.True(t, rec.Resolved())
	})

	t.Run("earlier composed version loses", func(t *testing.T) {
		rec := record()
		incoming := &model.Operation{Id: rec.OperationA, AuthorId: higher, ComposedVersion: 2}
		committed := &model.Operation{Id: rec.OperationB, AuthorId: lower, ComposedVersion: 4}

		res, err := LWWResolver{}.Resolve(rec, incoming, committed)
		require.NoError(t, err)
		assert.Nil(t, res.Accepted, "committed op stays, incoming is discarded")
		assert.True(t, rec.Resolved())
	})

	t.Run("rebase does not change the outcome", func(t *testing.T) {
		// Both composed at version 3; the incoming op was rebased forward so
		// its BaseVersion is ahead, but the comparison must ignore that.
		rec := record()
		incoming := &model.Operation{Id: rec.OperationA, AuthorId: lower, ComposedVersion: 3, BaseVersion: 7}
		committed := &model.Operation{Id: rec.OperationB, AuthorId: higher, ComposedVersion: 3, BaseVersion: 3}

		res, err := LWWResolver{}.Resolve(rec, incoming, committed)
		require.NoError(t, err)
		assert.Nil(t, res.Accepted, "the tie goes to the higher author id regardless of rebasing")
	})

	t.Run("version tie broken by author id", func(t *testing.T) {
		rec := record()
		incoming := &model.Operation{Id: rec.OperationA, AuthorId: higher, ComposedVersion: 3}
		committed := &model.Operation{Id: rec.OperationB, AuthorId: lower, ComposedVersion: 3}

		res, err := LWWResolver{}.Resolve(rec, incoming, committed)
		require.NoError(t, err)
		assert.Same(t, incoming, res.Accepted)
	})

	t.Run("nil committed keeps incoming", func(t *testing.T) {
		rec := record()
		incoming := &model.Operation{Id: rec.OperationA, AuthorId: lower}
		res, err := LWWResolver{}.Resolve(rec, incoming, nil)
		require.NoError(t, err)
		assert.Same(t, incoming, res.Accepted)
	})
}

func TestManualResolverDefers(t *testing.T) {
	rec := record()
	incoming := &model.Operation{Id: rec.OperationA}

	res, err := ManualResolver{}.Resolve(rec, incoming, &model.Operation{Id: rec.OperationB})
	require.NoError(t, err)
	assert.True(t, res.Deferred)
	assert.Same(t, incoming, res.Accepted)
	assert.Equal(t, model.StrategyManualResolution, rec.Strategy)
	assert.False(t, rec.Resolved(), "deferred records stay open until a participant decides")
}
