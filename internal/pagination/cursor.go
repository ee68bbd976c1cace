// Package pagination implements keyset paging over streams ordered by
// (created_at desc, id desc).
//
// A Cursor is anchored to the last item a client has seen, never to a
// position, so items inserted ahead of it do not shift later pages.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"
)

const (
	DefaultLimit = 20
	MaxLimit     = 50
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is the (created_at, id) of the last item of the previous page.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

type wireCursor struct {
	T  string `json:"t"`
	ID string `json:"id"`
}

// Keyed is implemented by every item served through a paginated stream.
type Keyed interface {
	CursorKey() (time.Time, string)
}

// Page is one page of a stream.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// Encode renders the cursor as an opaque token.
func (c Cursor) Encode() string {
	raw, _ := json.Marshal(wireCursor{T: c.CreatedAt.UTC().Format(time.RFC3339Nano), ID: c.ID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// Decode parses a token produced by Encode. An empty token yields a nil cursor.
func Decode(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	var w wireCursor
	if err := json.Unmarshal(raw, &w); err != nil || w.ID == "" {
		return nil, ErrInvalidCursor
	}
	t, err := time.Parse(time.RFC3339Nano, w.T)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return &Cursor{CreatedAt: t, ID: w.ID}, nil
}

// ClampLimit bounds a requested page size.
func ClampLimit(limit int) int {
	if limit < 1 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// After reports whether an item keyed (t, id) comes after the cursor in
// (created_at desc, id desc) order. A nil cursor admits everything.
func (c *Cursor) After(t time.Time, id string) bool {
	if c == nil {
		return true
	}
	if t.Before(c.CreatedAt) {
		return true
	}
	return t.Equal(c.CreatedAt) && id < c.ID
}

// NewPage assembles a page from at most limit items already in stream order.
func NewPage[T Keyed](items []T, limit int) Page[T] {
	if items == nil {
		items = []T{}
	}
	p := Page[T]{Items: items, HasMore: len(items) == limit}
	if len(items) > 0 {
		t, id := items[len(items)-1].CursorKey()
		p.NextCursor = Cursor{CreatedAt: t, ID: id}.Encode()
	}
	return p
}

// Slice pages through an in-memory collection. items is sorted in place.
func Slice[T Keyed](items []T, cursor *Cursor, limit int) Page[T] {
	SortDesc(items)
	out := make([]T, 0, limit)
	for _, it := range items {
		if len(out) == limit {
			break
		}
		t, id := it.CursorKey()
		if cursor.After(t, id) {
			out = append(out, it)
		}
	}
	return NewPage(out, limit)
}

// SortDesc orders items by (created_at desc, id desc).
func SortDesc[T Keyed](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, idi := items[i].CursorKey()
		tj, idj := items[j].CursorKey()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return idi > idj
	})
}
