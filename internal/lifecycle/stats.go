package lifecycle

import (
	"context"
	"fmt"
	"sort"

	"libraryhub/pkg/models"
)

const (
	statsShown  = 4
	statsMaxBar = 5
	othersTitle = "Others"
)

// Stats counts issuances per section title. A librarian sees the books they
// issued, a reader the books issued to them. Returned issuances count too.
func (e *Engine) Stats(ctx context.Context, username string, role models.Role) ([]models.SectionCount, error) {
	column := "ib.username"
	if role == models.RoleLibrarian {
		column = "ib.issued_by_username"
	}
	rows := []models.SectionCount{}
	err := e.db.SelectContext(ctx, &rows, `SELECT s.title AS title, COUNT(*) AS count
		FROM issued_books ib
		JOIN books b ON b.slug = ib.book_slug
		JOIN sections s ON s.slug = b.section_slug
		WHERE `+column+` = ?
		GROUP BY s.slug, s.title`, username)
	if err != nil {
		return nil, fmt.Errorf("issue stats: %w", err)
	}
	return summarize(rows), nil
}

// summarize orders counts descending and folds everything past the fourth
// bar into "Others" once there are more than five bars.
func summarize(rows []models.SectionCount) []models.SectionCount {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Title < rows[j].Title
	})
	if len(rows) <= statsMaxBar {
		return rows
	}
	others := models.SectionCount{Title: othersTitle}
	for _, r := range rows[statsShown:] {
		others.Count += r.Count
	}
	return append(rows[:statsShown:statsShown], others)
}
