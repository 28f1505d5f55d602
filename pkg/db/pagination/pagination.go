package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 250
)

var ErrInvalidPageToken = errors.New("invalid_page_token")

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// Cursor is the opaque content of a page token.
type Cursor struct {
	Offset int `json:"o"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	PageSize      int    `json:"page_size"`
	HasMore       bool   `json:"has_more"`
}

// Normalize clamps the page size and returns the decoded offset.
func (p Pagination) Normalize() (offset, limit int, err error) {
	limit = p.PageSize
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if p.PageToken == "" {
		return 0, limit, nil
	}
	cursor, err := DecodeCursor(p.PageToken)
	if err != nil || cursor.Offset < 0 {
		return 0, 0, ErrInvalidPageToken
	}
	return cursor.Offset, limit, nil
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}
	return &cursor, nil
}

// BuildPageInfo derives the next token from the offset window and the total.
func BuildPageInfo(offset, limit int, total int64) PageInfo {
	info := PageInfo{PageSize: limit}
	next := offset + limit
	if int64(next) >= total {
		return info
	}
	token, err := EncodeCursor(Cursor{Offset: next})
	if err != nil {
		return info
	}
	info.HasMore = true
	info.NextPageToken = token
	return info
}
