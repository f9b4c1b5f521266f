package pagination

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 123, time.UTC), ID: uuid.New()}
	token := in.Encode()
	assert.False(t, strings.ContainsAny(token, "+/="), "token must be safe in a query string")

	out, err := ParseCursor(token)
	require.NoError(t, err)
	assert.True(t, out.CreatedAt.Equal(in.CreatedAt))
	assert.Equal(t, in.ID, out.ID)
}

func TestParseCursor(t *testing.T) {
	c, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, c)

	for _, bad := range []string{"not base64!", "bm9kb3Q", "MTIzLm5vdC1hLXV1aWQ"} {
		_, err := ParseCursor(bad)
		assert.ErrorIs(t, err, ErrInvalidCursor, bad)
	}
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, MaxLimit, NormalizeLimit(1000))
	assert.Equal(t, 10, NormalizeLimit(10))
}

func TestWindow(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := []Cursor{
		{CreatedAt: base.Add(3 * time.Hour), ID: uuid.New()},
		{CreatedAt: base.Add(2 * time.Hour), ID: uuid.New()},
		{CreatedAt: base.Add(time.Hour), ID: uuid.New()},
	}
	self := func(c Cursor) Cursor { return c }

	page, next := Window(rows, 2, self)
	require.Len(t, page, 2)
	assert.Equal(t, rows[1].Encode(), next)

	page, next = Window(rows, 3, self)
	assert.Len(t, page, 3)
	assert.Empty(t, next)
}

func TestPageOffsetAndMeta(t *testing.T) {
	p := Page{Page: 3, Limit: 20}
	assert.Equal(t, 40, p.Offset())
	assert.Equal(t, PageMeta{Page: 3, Limit: 20, Total: 41, TotalPages: 3}, p.Meta(41))
	assert.Equal(t, 0, Page{}.Offset())
	assert.Equal(t, 0, Page{Limit: 10}.Meta(0).TotalPages)
}
