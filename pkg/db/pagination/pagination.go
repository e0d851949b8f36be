// Package pagination implements keyset paging over (created_at, id).
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 250
)

var ErrInvalidCursor = errors.New("invalid_cursor")

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// Size clamps the requested page size to [1, MaxPageSize].
func (p Pagination) Size() int {
	switch {
	case p.PageSize <= 0:
		return DefaultPageSize
	case p.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return p.PageSize
	}
}

type Cursor struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type PageInfo struct {
	NextPageToken string `json:"nextPageToken,omitempty"`
	HasMore       bool   `json:"hasMore"`
}

func EncodeCursor(c Cursor) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeCursor(token string) (Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil || c.ID == 0 {
		return Cursor{}, ErrInvalidCursor
	}
	return c, nil
}

// Apply restricts stmt to rows after the page token, newest first, and
// fetches one extra row so the caller can tell whether more remain.
func Apply(stmt *gorm.DB, p Pagination) (*gorm.DB, error) {
	if p.PageToken != "" {
		c, err := DecodeCursor(p.PageToken)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)", c.CreatedAt, c.CreatedAt, c.ID)
	}
	return stmt.Order("created_at desc, id desc").Limit(p.Size() + 1), nil
}

// Trim drops the look-ahead row fetched by Apply and builds the page info.
func Trim[T any](rows []*T, size int, cursorOf func(*T) Cursor) ([]*T, PageInfo) {
	if len(rows) <= size {
		return rows, PageInfo{}
	}
	rows = rows[:size]
	token, err := EncodeCursor(cursorOf(rows[len(rows)-1]))
	if err != nil {
		return rows, PageInfo{}
	}
	return rows, PageInfo{NextPageToken: token, HasMore: true}
}
