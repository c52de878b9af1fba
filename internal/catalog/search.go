package catalog

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"libraryhub/pkg/models"
)

// SearchResult groups matches by what matched: section titles, book titles
// and book authors. A book may appear in both Books and Authors.
type SearchResult struct {
	Sections []models.Section `json:"sections"`
	Books    []models.Book    `json:"books"`
	Authors  []models.Book    `json:"authors"`
}

// Search does a case-insensitive substring match. The query is validated
// upstream and never contains LIKE wildcards.
func (r *Repo) Search(ctx context.Context, query string) (SearchResult, error) {
	pattern := "%" + query + "%"
	res := SearchResult{
		Sections: []models.Section{},
		Books:    []models.Book{},
		Authors:  []models.Book{},
	}

	ds := dialect.From("sections").Select(sectionCols...).
		Where(goqu.C("title").Like(pattern)).
		Order(goqu.C("title").Asc())
	if err := r.selectInto(ctx, r.db, &res.Sections, ds); err != nil {
		return res, fmt.Errorf("search sections: %w", err)
	}

	ds = dialect.From("books").Select(bookCols...).
		Where(goqu.C("title").Like(pattern)).
		Order(goqu.C("title").Asc())
	if err := r.selectInto(ctx, r.db, &res.Books, ds); err != nil {
		return res, fmt.Errorf("search books: %w", err)
	}

	ds = dialect.From("books").Select(bookCols...).
		Where(goqu.C("author").Like(pattern)).
		Order(goqu.C("author").Asc(), goqu.C("title").Asc())
	if err := r.selectInto(ctx, r.db, &res.Authors, ds); err != nil {
		return res, fmt.Errorf("search authors: %w", err)
	}
	return res, nil
}
