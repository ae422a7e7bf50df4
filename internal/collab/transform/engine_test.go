package transform

import (
	"testing"

	"realtime-collab-be/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	authorA = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	authorB = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	blockX  = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	blockY  = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000002")
)

func insertOp(author uuid.UUID, pos int, text string) *model.Operation {
	return &model.Operation{
		Id:       uuid.New(),
		Type:     model.OpInsert,
		AuthorId: author,
		BlockId:  blockX,
		Position: pos,
		Text:     text,
	}
}

func deleteOp(author uuid.UUID, pos, length int) *model.Operation {
	return &model.Operation{
		Id:       uuid.New(),
		Type:     model.OpDelete,
		AuthorId: author,
		BlockId:  blockX,
		Position: pos,
		Length:   length,
	}
}

func formatOp(author uuid.UUID, pos, length int) *model.Operation {
	return &model.Operation{
		Id:       uuid.New(),
		Type:     model.OpFormat,
		AuthorId: author,
		BlockId:  blockX,
		Position: pos,
		Length:   length,
		Attrs:    model.Formatting{"bold": "true"},
	}
}

func TestRebaseInsertInsertBothOrders(t *testing.T) {
	// Two concurrent inserts at different positions against "Hello" must
	// converge to "Hello World!" regardless of which one commits first.
	engine := NewEngine(nil)

	world := insertOp(authorA, 5, " World") // "Hello" -> "Hello World"
	bang := insertOp(authorB, 5, "!")       // "Hello" -> "Hello!"

	t.Run("world committed first", func(t *testing.T) {
		out, err := engine.Rebase(bang.Clone(), []*model.Operation{world})
		require.NoError(t, err)
		assert.Equal(t, 11, out.Position, "bang shifts past the committed insert")
		assert.Equal(t, "!", out.Text)
	})

	t.Run("bang committed first", func(t *testing.T) {
		out, err := engine.Rebase(world.Clone(), []*model.Operation{bang})
		require.NoError(t, err)
		// Same position, authorA < authorB, so world keeps its slot and
		// lands before the bang. Result is still "Hello World!".
		assert.Equal(t, 5, out.Position)
	})
}

func TestRebaseBumpsBaseVersion(t *testing.T) {
	engine := NewEngine(nil)
	op := insertOp(authorA, 0, "x")
	op.BaseVersion = 7

	out, err := engine.Rebase(op, []*model.Operation{
		insertOp(authorB, 0, "a"),
		insertOp(authorB, 0, "b"),
		insertOp(authorB, 0, "c"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), out.BaseVersion)
}

func TestTieBreakSamePosition(t *testing.T) {
	engine := NewEngine(nil)

	t.Run("smaller author keeps slot", func(t *testing.T) {
		incoming := insertOp(authorA, 3, "aa")
		committed := insertOp(authorB, 3, "bb")
		out, err := engine.Rebase(incoming, []*model.Operation{committed})
		require.NoError(t, err)
		assert.Equal(t, 3, out.Position)
	})

	t.Run("larger author shifts", func(t *testing.T) {
		incoming := insertOp(authorB, 3, "bb")
		committed := insertOp(authorA, 3, "aa")
		out, err := engine.Rebase(incoming, []*model.Operation{committed})
		require.NoError(t, err)
		assert.Equal(t, 5, out.Position)
	})

	t.Run("custom policy inverts the outcome", func(t *testing.T) {
		committedWins := func(incoming, committed *model.Operation) bool { return false }
		inv := NewEngine(committedWins)
		incoming := insertOp(authorA, 3, "aa")
		committed := insertOp(authorB, 3, "bb")
		out, err := inv.Rebase(incoming, []*model.Operation{committed})
		require.NoError(t, err)
		assert.Equal(t, 5, out.Position)
	})
}

func TestTransformInsertDelete(t *testing.T) {
	engine := NewEngine(nil)
	tests := []struct {
		name     string
		insert   *model.Operation
		deleted  *model.Operation
		wantPos  int
		wantText string
	}{
		{
			name:     "insert before deleted range untouched",
			insert:   insertOp(authorA, 2, "hi"),
			deleted:  deleteOp(authorB, 5, 3),
			wantPos:  2,
			wantText: "hi",
		},
		{
			name:     "insert after deleted range shifts left",
			insert:   insertOp(authorA, 10, "hi"),
			deleted:  deleteOp(authorB, 2, 4),
			wantPos:  6,
			wantText: "hi",
		},
		{
			name:     "insert inside deleted range collapses",
			insert:   insertOp(authorA, 4, "hi"),
			deleted:  deleteOp(authorB, 2, 6),
			wantPos:  2,
			wantText: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := engine.Rebase(tt.insert, []*model.Operation{tt.deleted})
			require.NoError(t, err)
			assert.Equal(t, tt.wantPos, out.Position)
			assert.Equal(t, tt.wantText, out.Text)
		})
	}
}

func TestTransformDeleteInsert(t *testing.T) {
	engine := NewEngine(nil)

	t.Run("insert inside range expands the deletion", func(t *testing.T) {
		del := deleteOp(authorA, 2, 4) // [2,6)
		ins := insertOp(authorB, 4, "xyz")
		out, err := engine.Rebase(del, []*model.Operation{ins})
		require.NoError(t, err)
		assert.Equal(t, 2, out.Position)
		assert.Equal(t, 7, out.Length)
	})

	t.Run("insert before range shifts it", func(t *testing.T) {
		del := deleteOp(authorA, 5, 2)
		ins := insertOp(authorB, 1, "ab")
		out, err := engine.Rebase(del, []*model.Operation{ins})
		require.NoError(t, err)
		assert.Equal(t, 7, out.Position)
		assert.Equal(t, 2, out.Length)
	})
}

func TestTransformDeleteDelete(t *testing.T) {
	engine := NewEngine(nil)
	tests := []struct {
		name       string
		incoming   *model.Operation
		committed  *model.Operation
		wantPos    int
		wantLength int
	}{
		{
			name:       "overlap shrinks to remainder",
			incoming:   deleteOp(authorB, 0, 8),
			committed:  deleteOp(authorA, 0, 5),
			wantPos:    0,
			wantLength: 3,
		},
		{
			name:       "committed after incoming untouched",
			incoming:   deleteOp(authorB, 0, 3),
			committed:  deleteOp(authorA, 5, 2),
			wantPos:    0,
			wantLength: 3,
		},
		{
			name:       "committed before incoming shifts left",
			incoming:   deleteOp(authorB, 6, 2),
			committed:  deleteOp(authorA, 1, 3),
			wantPos:    3,
			wantLength: 2,
		},
		{
			name:       "fully subsumed becomes zero-length",
			incoming:   deleteOp(authorB, 3, 2),
			committed:  deleteOp(authorA, 1, 6),
			wantPos:    1,
			wantLength: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := engine.Rebase(tt.incoming, []*model.Operation{tt.committed})
			require.NoError(t, err)
			assert.Equal(t, tt.wantPos, out.Position)
			assert.Equal(t, tt.wantLength, out.Length)
		})
	}
}

func TestTransformFormatRange(t *testing.T) {
	engine := NewEngine(nil)

	t.Run("insert inside range grows it", func(t *testing.T) {
		f := formatOp(authorA, 2, 4)
		out, err := engine.Rebase(f, []*model.Operation{insertOp(authorB, 3, "ab")})
		require.NoError(t, err)
		assert.Equal(t, 2, out.Position)
		assert.Equal(t, 6, out.Length)
	})

	t.Run("delete overlapping range shrinks it", func(t *testing.T) {
		f := formatOp(authorA, 2, 6) // [2,8)
		out, err := engine.Rebase(f, []*model.Operation{deleteOp(authorB, 5, 5)})
		require.NoError(t, err)
		assert.Equal(t, 2, out.Position)
		assert.Equal(t, 3, out.Length)
	})

	t.Run("concurrent formats commute", func(t *testing.T) {
		f := formatOp(authorA, 2, 4)
		out, err := engine.Rebase(f, []*model.Operation{formatOp(authorB, 2, 4)})
		require.NoError(t, err)
		assert.Equal(t, 2, out.Position)
		assert.Equal(t, 4, out.Length)
	})
}

func TestTransformAcrossBlocksCommutes(t *testing.T) {
	engine := NewEngine(nil)
	op := insertOp(authorA, 3, "x")
	other := deleteOp(authorB, 0, 10)
	other.BlockId = blockY

	out, err := engine.Rebase(op, []*model.Operation{other})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Position)
	assert.Equal(t, blockX, out.BlockId)
}

func TestTransformAgainstSplit(t *testing.T) {
	engine := NewEngine(nil)
	tail := uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000001")
	split := &model.Operation{
		Id:         uuid.New(),
		Type:       model.OpSplit,
		AuthorId:   authorA,
		BlockId:    blockX,
		Position:   5,
		NewBlockId: &tail,
	}

	t.Run("insert past split point retargets to the tail", func(t *testing.T) {
		out, err := engine.Rebase(insertOp(authorB, 8, "x"), []*model.Operation{split})
		require.NoError(t, err)
		assert.Equal(t, tail, out.BlockId)
		assert.Equal(t, 3, out.Position)
	})

	t.Run("insert before split point stays put", func(t *testing.T) {
		out, err := engine.Rebase(insertOp(authorB, 2, "x"), []*model.Operation{split})
		require.NoError(t, err)
		assert.Equal(t, blockX, out.BlockId)
		assert.Equal(t, 2, out.Position)
	})

	t.Run("delete entirely past split retargets", func(t *testing.T) {
		out, err := engine.Rebase(deleteOp(authorB, 6, 2), []*model.Operation{split})
		require.NoError(t, err)
		assert.Equal(t, tail, out.BlockId)
		assert.Equal(t, 1, out.Position)
		assert.Equal(t, 2, out.Length)
	})

	t.Run("range straddling the split is unresolvable", func(t *testing.T) {
		_, err := engine.Rebase(deleteOp(authorB, 3, 5), []*model.Operation{split})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnresolvable)
	})
}

func TestTransformAgainstMerge(t *testing.T) {
	engine := NewEngine(nil)
	absorbed := blockX
	merge := &model.Operation{
		Id:            uuid.New(),
		Type:          model.OpMerge,
		AuthorId:      authorA,
		BlockId:       blockY,
		TargetBlockId: &absorbed,
	}

	t.Run("edit on the absorbed block is unresolvable", func(t *testing.T) {
		_, err := engine.Rebase(insertOp(authorB, 2, "x"), []*model.Operation{merge})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnresolvable)
	})

	t.Run("edit on an unrelated block survives", func(t *testing.T) {
		op := insertOp(authorB, 2, "x")
		op.BlockId = uuid.New()
		out, err := engine.Rebase(op, []*model.Operation{merge})
		require.NoError(t, err)
		assert.Equal(t, 2, out.Position)
	})
}

func TestRetainNeverTransforms(t *testing.T) {
	engine := NewEngine(nil)
	retain := &model.Operation{
		Id:       uuid.New(),
		Type:     model.OpRetain,
		AuthorId: authorA,
		BlockId:  blockX,
	}
	out, err := engine.Rebase(retain, []*model.Operation{deleteOp(authorB, 0, 10)})
	require.NoError(t, err)
	assert.Equal(t, model.OpRetain, out.Type)
}

func TestMoveCommutesWithContentEdits(t *testing.T) {
	engine := NewEngine(nil)
	move := &model.Operation{
		Id:          uuid.New(),
		Type:        model.OpMove,
		AuthorId:    authorA,
		BlockId:     blockX,
		TargetIndex: 2,
	}

	out, err := engine.Rebase(insertOp(authorB, 4, "x"), []*model.Operation{move})
	require.NoError(t, err)
	assert.Equal(t, 4, out.Position, "block reorder leaves offsets alone")

	out, err = engine.Rebase(move.Clone(), []*model.Operation{insertOp(authorB, 0, "x")})
	require.NoError(t, err)
	assert.Equal(t, 2, out.TargetIndex)
}

func TestRebaseDoesNotMutateInput(t *testing.T) {
	engine := NewEngine(nil)
	op := insertOp(authorA, 10, "x")
	_, err := engine.Rebase(op, []*model.Operation{deleteOp(authorB, 0, 5)})
	require.NoError(t, err)
	assert.Equal(t, 10, op.Position)
}
