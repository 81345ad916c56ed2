package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: 42, CreatedAt: "2025-01-01T00:00:00Z"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), cursor.ID)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("%%%")
	assert.ErrorIs(t, err, ErrInvalidPageToken)

	empty, _ := EncodeCursor(Cursor{})
	_, err = DecodeCursor(empty)
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}

func TestBuildCursorPageInfo(t *testing.T) {
	rows := []int64{5, 4, 3}
	page, info := BuildCursorPageInfo(rows, 2, func(v int64) Cursor {
		return Cursor{ID: v, CreatedAt: "t"}
	})
	assert.Equal(t, []int64{5, 4}, page)
	assert.True(t, info.HasMore)

	cursor, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, int64(4), cursor.ID)

	page, info = BuildCursorPageInfo(rows, 5, func(v int64) Cursor { return Cursor{ID: v} })
	assert.Len(t, page, 3)
	assert.False(t, info.HasMore)
}

func TestLimitClamp(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Limit())
	assert.Equal(t, 7, Pagination{PageSize: 7}.Limit())
}
