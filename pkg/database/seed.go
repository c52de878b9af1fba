package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"

	"libraryhub/internal/slugs"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SeedSection is one entry of a seed file: a section and the books in it.
type SeedSection struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Books       []SeedBook `json:"books"`
}

type SeedBook struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
}

func LoadSeedFile(path string) ([]SeedSection, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var list []SeedSection
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("unmarshal seed file: %w", err)
	}
	return list, nil
}

// Seed inserts sections and books that do not exist yet, matched by slug.
// It returns how many of each were added.
func Seed(ctx context.Context, db *sqlx.DB, list []SeedSection) (sections, books int, err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, s := range list {
		sectionSlug := slugs.Make(s.Title)
		if sectionSlug == "" {
			return 0, 0, fmt.Errorf("section %q has no usable title", s.Title)
		}
		res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO sections (slug, title, description, date_created, date_modified)
			VALUES (?, ?, ?, ?, ?)`, sectionSlug, s.Title, s.Description, now, now)
		if err != nil {
			return 0, 0, fmt.Errorf("insert section %s: %w", sectionSlug, err)
		}
		if aff, _ := res.RowsAffected(); aff > 0 {
			sections++
		}

		for _, b := range s.Books {
			bookSlug := slugs.Make(b.Title)
			if bookSlug == "" {
				return 0, 0, fmt.Errorf("book %q has no usable title", b.Title)
			}
			res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO books (slug, title, author, description, section_slug, date_created, date_modified)
				VALUES (?, ?, ?, ?, ?, ?, ?)`, bookSlug, b.Title, b.Author, b.Description, sectionSlug, now, now)
			if err != nil {
				return 0, 0, fmt.Errorf("insert book %s: %w", bookSlug, err)
			}
			if aff, _ := res.RowsAffected(); aff > 0 {
				books++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit tx: %w", err)
	}
	return sections, books, nil
}
