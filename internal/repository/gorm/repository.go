package gormrepository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"storesync/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}

// identityClause ORs together the identifiers present in q. Columns passed as
// "" are not matched.
func identityClause(q repository.ActivityQuery, cartCol, customerCol, emailCol string) (string, []any) {
	parts := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if cartCol != "" && q.CartToken != "" {
		parts = append(parts, cartCol+" = ?")
		args = append(args, q.CartToken)
	}
	if customerCol != "" && q.CustomerExternalID != "" {
		parts = append(parts, customerCol+" = ?")
		args = append(args, q.CustomerExternalID)
	}
	if emailCol != "" && q.Email != "" {
		parts = append(parts, "LOWER("+emailCol+") = ?")
		args = append(args, strings.ToLower(q.Email))
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

var _ repository.Repository = (*Store)(nil)
