// Package option holds composable gorm query modifiers.
package option

import (
	"strings"

	"gorm.io/gorm"

	"github.com/PsiTechC/medai-billing/pkg/db/pagination"
)

// QueryOption mutates a gorm query before execution.
type QueryOption func(*gorm.DB) *gorm.DB

// QuerySortBy restricts sortable columns to an allow list.
type QuerySortBy struct {
	Allow map[string]bool
}

// WithSortBy orders by created_at descending and id descending for stable
// cursor pagination. Columns outside the allow list are ignored.
func WithSortBy(sort QuerySortBy) QueryOption {
	return func(query *gorm.DB) *gorm.DB {
		if sort.Allow["created_at"] {
			return query.Order("created_at DESC, id DESC")
		}
		return query.Order("id DESC")
	}
}

// ApplyPagination applies the cursor token and page size. One extra row is
// fetched so the caller can detect a next page.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return func(query *gorm.DB) *gorm.DB {
		size := page.PageSize
		if size <= 0 {
			size = pagination.DefaultPageSize
		}

		token := strings.TrimSpace(page.PageToken)
		if token != "" {
			cursor, err := pagination.DecodeCursor(token)
			if err == nil && cursor.ID != "" {
				query = query.Where(
					"(created_at, id) < (?, ?)",
					cursor.CreatedAt,
					cursor.ID,
				)
			}
		}

		return query.Limit(size + 1)
	}
}
