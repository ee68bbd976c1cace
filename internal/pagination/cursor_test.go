package pagination_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/anonto42/migo/backend/internal/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	id string
	at time.Time
}

func (i item) CursorKey() (time.Time, string) { return i.at, i.id }

func ids(items []item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.id
	}
	return out
}

func TestCursorRoundTrip(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 10, 30, 0, 123456789, time.UTC)
	token := pagination.Cursor{CreatedAt: at, ID: "abc"}.Encode()

	c, err := pagination.Decode(token)
	require.NoError(t, err)
	assert.True(t, c.CreatedAt.Equal(at))
	assert.Equal(t, "abc", c.ID)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	t.Parallel()

	c, err := pagination.Decode("")
	require.NoError(t, err)
	assert.Nil(t, c)

	for _, token := range []string{"!!!", "bm90IGpzb24", "eyJ0Ijoibm9wZSIsImlkIjoieCJ9"} {
		_, err := pagination.Decode(token)
		assert.ErrorIs(t, err, pagination.ErrInvalidCursor, token)
	}
}

func TestClampLimit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, pagination.DefaultLimit, pagination.ClampLimit(0))
	assert.Equal(t, pagination.MaxLimit, pagination.ClampLimit(500))
	assert.Equal(t, 7, pagination.ClampLimit(7))
}

func TestSliceBreaksTiesByID(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []item{{"a", at}, {"c", at}, {"b", at}, {"d", at.Add(-time.Second)}}

	first := pagination.Slice(items, nil, 2)
	assert.Equal(t, []string{"c", "b"}, ids(first.Items))
	assert.True(t, first.HasMore)

	cursor, err := pagination.Decode(first.NextCursor)
	require.NoError(t, err)
	second := pagination.Slice(items, cursor, 2)
	assert.Equal(t, []string{"a", "d"}, ids(second.Items))
	assert.True(t, second.HasMore)

	cursor, err = pagination.Decode(second.NextCursor)
	require.NoError(t, err)
	third := pagination.Slice(items, cursor, 2)
	assert.Empty(t, third.Items)
	assert.False(t, third.HasMore)
	assert.Empty(t, third.NextCursor)
}

func TestSliceStableUnderInsertAhead(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var items []item
	for i := range 10 {
		items = append(items, item{id: fmt.Sprintf("p%02d", i), at: base.Add(time.Duration(i) * time.Minute)})
	}

	first := pagination.Slice(items, nil, 4)
	require.Len(t, first.Items, 4)

	items = append(items, item{id: "new", at: base.Add(time.Hour)})

	cursor, err := pagination.Decode(first.NextCursor)
	require.NoError(t, err)
	second := pagination.Slice(items, cursor, 4)

	assert.Equal(t, []string{"p09", "p08", "p07", "p06"}, ids(first.Items))
	assert.Equal(t, []string{"p05", "p04", "p03", "p02"}, ids(second.Items))
}
