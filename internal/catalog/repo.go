package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"libraryhub/internal/apierr"
	"libraryhub/internal/cache"
	"libraryhub/internal/slugs"
	"libraryhub/pkg/database"
	"libraryhub/pkg/models"
)

var (
	ErrSectionNotFound   = apierr.NotFound("There is no section with that title.")
	ErrBookNotFound      = apierr.NotFound("There is no book with that title.")
	ErrSectionTitleTaken = apierr.Conflict("Section Title already exists.")
	ErrBookTitleTaken    = apierr.Conflict("Book Title already exists.")
	ErrReservedSection   = apierr.Validation("You can't create a section with this title.")
	ErrReservedBook      = apierr.Validation("You can't create a book with this title.")
	ErrMiscDelete        = apierr.Forbidden("Forbidden. You can't delete miscellaneous section.")
	ErrMiscRename        = apierr.Forbidden("Forbidden. You can't rename miscellaneous section.")
	ErrNothingChanged    = apierr.Validation("Given fields are same as original.")
	ErrUnsluggableTitle  = apierr.Validation("Title can only have letters, digits and some special characters.")
)

// Titles the frontend uses for its own "add" cards.
const (
	reservedSectionTitle = "Add Section"
	reservedBookTitle    = "Add Book"
)

const (
	keySections = "catalog:sections"
	keyBooks    = "catalog:books"
)

var dialect = goqu.Dialect("sqlite3")

var (
	sectionCols = []any{"slug", "title", "description", "date_created", "date_modified"}
	bookCols    = []any{"slug", "title", "author", "description", "section_slug", "date_created", "date_modified"}
)

type Repo struct {
	db    *sqlx.DB
	cache cache.Cache
	now   func() time.Time
}

func NewRepo(db *sqlx.DB, c cache.Cache) *Repo {
	if c == nil {
		c = cache.Nop{}
	}
	return &Repo{db: db, cache: c, now: time.Now}
}

func (r *Repo) clock() time.Time { return r.now().UTC() }

func (r *Repo) selectInto(ctx context.Context, q sqlx.QueryerContext, dst any, ds *goqu.SelectDataset) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return sqlx.SelectContext(ctx, q, dst, query, args...)
}

func (r *Repo) getInto(ctx context.Context, q sqlx.QueryerContext, dst any, ds *goqu.SelectDataset) error {
	query, args, err := ds.Prepared(true).Limit(1).ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return sqlx.GetContext(ctx, q, dst, query, args...)
}

func (r *Repo) invalidate(ctx context.Context) {
	if err := r.cache.Delete(ctx, keySections, keyBooks); err != nil {
		slog.WarnContext(ctx, "catalog cache invalidate failed", "err", err)
	}
}

// cached serves key from the cache or fills it with load.
func cached[T any](ctx context.Context, c cache.Cache, key string, load func() (T, error)) (T, error) {
	var v T
	if hit, err := c.Get(ctx, key, &v); err == nil && hit {
		return v, nil
	} else if err != nil {
		slog.WarnContext(ctx, "catalog cache read failed", "key", key, "err", err)
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	if err := c.Set(ctx, key, v); err != nil {
		slog.WarnContext(ctx, "catalog cache write failed", "key", key, "err", err)
	}
	return v, nil
}

// ListSections returns sections, most recently modified first, without books.
func (r *Repo) ListSections(ctx context.Context) ([]models.Section, error) {
	return cached(ctx, r.cache, keySections, func() ([]models.Section, error) {
		out := []models.Section{}
		ds := dialect.From("sections").Select(sectionCols...).Order(goqu.C("date_modified").Desc())
		if err := r.selectInto(ctx, r.db, &out, ds); err != nil {
			return nil, fmt.Errorf("list sections: %w", err)
		}
		return out, nil
	})
}

// ListBooks returns every section with its books nested.
func (r *Repo) ListBooks(ctx context.Context) ([]models.Section, error) {
	return cached(ctx, r.cache, keyBooks, func() ([]models.Section, error) {
		sections := []models.Section{}
		ds := dialect.From("sections").Select(sectionCols...).Order(goqu.C("date_modified").Desc())
		if err := r.selectInto(ctx, r.db, &sections, ds); err != nil {
			return nil, fmt.Errorf("list sections: %w", err)
		}
		books := []models.Book{}
		ds = dialect.From("books").Select(bookCols...).Order(goqu.C("date_modified").Desc())
		if err := r.selectInto(ctx, r.db, &books, ds); err != nil {
			return nil, fmt.Errorf("list books: %w", err)
		}
		bySection := make(map[string][]models.Book, len(sections))
		for _, b := range books {
			bySection[b.SectionSlug] = append(bySection[b.SectionSlug], b)
		}
		for i := range sections {
			sections[i].Books = bySection[sections[i].Slug]
			if sections[i].Books == nil {
				sections[i].Books = []models.Book{}
			}
		}
		return sections, nil
	})
}

// GetSection returns one section with its books.
func (r *Repo) GetSection(ctx context.Context, slug string) (models.Section, error) {
	s, err := r.section(ctx, r.db, slug)
	if err != nil {
		return s, err
	}
	s.Books = []models.Book{}
	ds := dialect.From("books").Select(bookCols...).
		Where(goqu.C("section_slug").Eq(slug)).
		Order(goqu.C("date_modified").Desc())
	if err := r.selectInto(ctx, r.db, &s.Books, ds); err != nil {
		return s, fmt.Errorf("list section books: %w", err)
	}
	return s, nil
}

// GetBook returns a book with its section, feedback and how many times it
// has been issued.
func (r *Repo) GetBook(ctx context.Context, slug string) (models.BookDetail, error) {
	var d models.BookDetail
	b, err := r.book(ctx, r.db, slug)
	if err != nil {
		return d, err
	}
	d.Book = b
	if d.Section, err = r.section(ctx, r.db, b.SectionSlug); err != nil {
		return d, err
	}
	d.Feedbacks = []models.Feedback{}
	ds := dialect.From("feedbacks").
		Select("slug", "username", "book_slug", "rating", "content", "date_created", "date_modified").
		Where(goqu.C("book_slug").Eq(slug)).
		Order(goqu.C("date_created").Desc())
	if err := r.selectInto(ctx, r.db, &d.Feedbacks, ds); err != nil {
		return d, fmt.Errorf("list feedback: %w", err)
	}
	ds = dialect.From("issued_books").Select(goqu.COUNT("*")).Where(goqu.C("book_slug").Eq(slug))
	if err := r.getInto(ctx, r.db, &d.IssuedCount, ds); err != nil {
		return d, fmt.Errorf("count issuances: %w", err)
	}
	return d, nil
}

func (r *Repo) section(ctx context.Context, q sqlx.QueryerContext, slug string) (models.Section, error) {
	var s models.Section
	ds := dialect.From("sections").Select(sectionCols...).Where(goqu.C("slug").Eq(slug))
	err := r.getInto(ctx, q, &s, ds)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrSectionNotFound
	}
	return s, err
}

func (r *Repo) book(ctx context.Context, q sqlx.QueryerContext, slug string) (models.Book, error) {
	var b models.Book
	ds := dialect.From("books").Select(bookCols...).Where(goqu.C("slug").Eq(slug))
	err := r.getInto(ctx, q, &b, ds)
	if errors.Is(err, sql.ErrNoRows) {
		return b, ErrBookNotFound
	}
	return b, err
}

func (r *Repo) CreateSection(ctx context.Context, title, description string) (models.Section, error) {
	if title == reservedSectionTitle {
		return models.Section{}, ErrReservedSection
	}
	if slugs.Make(title) == "" {
		return models.Section{}, ErrUnsluggableTitle
	}
	now := r.clock()
	s := models.Section{
		Slug:         slugs.Make(title),
		Title:        title,
		Description:  description,
		DateCreated:  now,
		DateModified: now,
	}
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO sections (slug, title, description, date_created, date_modified)
		VALUES (:slug, :title, :description, :date_created, :date_modified)`, s)
	if err != nil {
		return models.Section{}, mapUnique(err, ErrSectionTitleTaken)
	}
	r.invalidate(ctx)
	return s, nil
}

// SectionChange carries the fields to update. Empty means unchanged.
type SectionChange struct {
	Title       string
	Description string
}

// UpdateSection renames and/or redescribes a section. A rename changes the
// slug; books follow through ON UPDATE CASCADE.
func (r *Repo) UpdateSection(ctx context.Context, slug string, ch SectionChange) (models.Section, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Section{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	s, err := r.section(ctx, tx, slug)
	if err != nil {
		return s, err
	}
	changed := false
	if ch.Title != "" && slugs.Make(ch.Title) != s.Slug {
		if ch.Title == reservedSectionTitle {
			return s, ErrReservedSection
		}
		if slugs.Make(ch.Title) == "" {
			return s, ErrUnsluggableTitle
		}
		if s.Slug == database.MiscellaneousSlug {
			return s, ErrMiscRename
		}
		s.Title, s.Slug, changed = ch.Title, slugs.Make(ch.Title), true
	}
	if ch.Description != "" && ch.Description != s.Description {
		s.Description, changed = ch.Description, true
	}
	if !changed {
		return s, ErrNothingChanged
	}
	s.DateModified = r.clock()

	_, err = tx.ExecContext(ctx, `UPDATE sections SET slug = ?, title = ?, description = ?, date_modified = ?
		WHERE slug = ?`, s.Slug, s.Title, s.Description, s.DateModified, slug)
	if err != nil {
		return s, mapUnique(err, ErrSectionTitleTaken)
	}
	if err := tx.Commit(); err != nil {
		return s, fmt.Errorf("commit tx: %w", err)
	}
	r.invalidate(ctx)
	return s, nil
}

// DeleteSection moves the section's books to miscellaneous, then deletes it.
func (r *Repo) DeleteSection(ctx context.Context, slug string) (models.Section, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Section{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	s, err := r.section(ctx, tx, slug)
	if err != nil {
		return s, err
	}
	if slug == database.MiscellaneousSlug {
		return s, ErrMiscDelete
	}
	if _, err := tx.ExecContext(ctx, `UPDATE books SET section_slug = ?, date_modified = ? WHERE section_slug = ?`,
		database.MiscellaneousSlug, r.clock(), slug); err != nil {
		return s, fmt.Errorf("rehome books: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE slug = ?`, slug); err != nil {
		return s, fmt.Errorf("delete section: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return s, fmt.Errorf("commit tx: %w", err)
	}
	r.invalidate(ctx)
	return s, nil
}

func (r *Repo) CreateBook(ctx context.Context, sectionSlug, title, author, description string) (models.Book, error) {
	if title == reservedBookTitle {
		return models.Book{}, ErrReservedBook
	}
	if slugs.Make(title) == "" {
		return models.Book{}, ErrUnsluggableTitle
	}
	if _, err := r.section(ctx, r.db, sectionSlug); err != nil {
		return models.Book{}, err
	}
	now := r.clock()
	b := models.Book{
		Slug:         slugs.Make(title),
		Title:        title,
		Author:       author,
		Description:  description,
		SectionSlug:  sectionSlug,
		DateCreated:  now,
		DateModified: now,
	}
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO books (slug, title, author, description, section_slug, date_created, date_modified)
		VALUES (:slug, :title, :author, :description, :section_slug, :date_created, :date_modified)`, b)
	if err != nil {
		return models.Book{}, mapUnique(err, ErrBookTitleTaken)
	}
	r.invalidate(ctx)
	return b, nil
}

// BookChange carries the fields to update. Empty means unchanged.
type BookChange struct {
	Title       string
	Author      string
	Description string
	SectionSlug string
}

// UpdateBook edits a book. A title change renames the slug; requests,
// issuances and feedback follow and their composite slugs are rewritten.
func (r *Repo) UpdateBook(ctx context.Context, slug string, ch BookChange) (models.Book, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Book{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	b, err := r.book(ctx, tx, slug)
	if err != nil {
		return b, err
	}
	changed, renamed := false, false
	if ch.Title != "" && ch.Title != b.Title {
		if ch.Title == reservedBookTitle {
			return b, ErrReservedBook
		}
		if slugs.Make(ch.Title) == "" {
			return b, ErrUnsluggableTitle
		}
		renamed = slugs.Make(ch.Title) != b.Slug
		b.Title, b.Slug, changed = ch.Title, slugs.Make(ch.Title), true
	}
	if ch.Author != "" && ch.Author != b.Author {
		b.Author, changed = ch.Author, true
	}
	if ch.Description != "" && ch.Description != b.Description {
		b.Description, changed = ch.Description, true
	}
	if ch.SectionSlug != "" && ch.SectionSlug != b.SectionSlug {
		if _, err := r.section(ctx, tx, ch.SectionSlug); err != nil {
			return b, err
		}
		b.SectionSlug, changed = ch.SectionSlug, true
	}
	if !changed {
		return b, ErrNothingChanged
	}
	b.DateModified = r.clock()

	_, err = tx.ExecContext(ctx, `UPDATE books SET slug = ?, title = ?, author = ?, description = ?,
		section_slug = ?, date_modified = ? WHERE slug = ?`,
		b.Slug, b.Title, b.Author, b.Description, b.SectionSlug, b.DateModified, slug)
	if err != nil {
		return b, mapUnique(err, ErrBookTitleTaken)
	}
	if renamed {
		if err := database.RewritePairSlugs(ctx, tx, "book_slug", b.Slug); err != nil {
			return b, err
		}
	}
	if err := tx.Commit(); err != nil {
		return b, fmt.Errorf("commit tx: %w", err)
	}
	r.invalidate(ctx)
	return b, nil
}

// DeleteBook removes a book with its requests, issuances and feedback.
func (r *Repo) DeleteBook(ctx context.Context, slug string) (models.Book, error) {
	b, err := r.book(ctx, r.db, slug)
	if err != nil {
		return b, err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE slug = ?`, slug); err != nil {
		return b, fmt.Errorf("delete book: %w", err)
	}
	r.invalidate(ctx)
	return b, nil
}

func mapUnique(err, taken error) error {
	var se sqlite3.Error
	if errors.As(err, &se) &&
		(se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return taken
	}
	return err
}
