package postgres

import (
	"fmt"

	"gorm.io/gorm"
)

func applyPagination(query *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}

var sortableAttemptColumns = map[string]bool{
	"created_at": true,
	"started_at": true,
	"percent":    true,
}

// applySort whitelists sort columns so filter input never reaches the query
// verbatim.
func applySort(query *gorm.DB, sortBy, sortOrder string) *gorm.DB {
	if !sortableAttemptColumns[sortBy] {
		sortBy = "created_at"
	}
	if sortOrder != "asc" && sortOrder != "desc" {
		sortOrder = "desc"
	}
	return query.Order(fmt.Sprintf("%s %s", sortBy, sortOrder))
}
