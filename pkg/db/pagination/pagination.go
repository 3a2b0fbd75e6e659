// Package pagination implements opaque cursor tokens for list endpoints.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// DefaultPageSize bounds list responses when the caller does not ask for one.
const DefaultPageSize = 50

// Pagination carries the raw paging inputs bound from a request.
type Pagination struct {
	PageToken string `form:"page_token" json:"page_token"`
	PageSize  int    `form:"page_size" json:"page_size"`
}

// Cursor identifies the last row of the previous page.
type Cursor struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

// PageInfo reports paging state back to the caller.
type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

var errInvalidCursor = errors.New("invalid_cursor")

// EncodeCursor serializes a cursor into an opaque token.
func EncodeCursor(cursor Cursor) (string, error) {
	raw, err := json.Marshal(cursor)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeCursor parses a token produced by EncodeCursor.
func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, errInvalidCursor
	}
	var cursor Cursor
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return Cursor{}, errInvalidCursor
	}
	return cursor, nil
}

// BuildCursorPageInfo derives paging state from an over-fetched result set.
// The slice is expected to hold up to pageSize+1 rows; tokenFn extracts a
// token from the last row of the visible page.
func BuildCursorPageInfo[T any](items []*T, pageSize int32, tokenFn func(*T) string) *PageInfo {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	info := &PageInfo{}
	if len(items) <= int(pageSize) {
		return info
	}
	info.HasMore = true
	last := items[pageSize-1]
	if last != nil && tokenFn != nil {
		info.NextPageToken = tokenFn(last)
	}
	return info
}
