package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"libraryhub/internal/slugs"
)

// RewritePairSlugs recomputes the book~user slugs of requests, issued books
// and feedback after a rename has cascaded. column is "username" or
// "book_slug", value its new value.
func RewritePairSlugs(ctx context.Context, tx *sqlx.Tx, column, value string) error {
	if column != "username" && column != "book_slug" {
		return fmt.Errorf("rewrite slugs: bad column %q", column)
	}
	for _, table := range []string{"requests", "issued_books", "feedbacks"} {
		q := fmt.Sprintf(`UPDATE %s SET slug = book_slug || ? || username WHERE %s = ?`, table, column)
		if _, err := tx.ExecContext(ctx, q, slugs.Separator, value); err != nil {
			return fmt.Errorf("rewrite %s slugs: %w", table, err)
		}
	}
	return nil
}
