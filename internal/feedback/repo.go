package feedback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"libraryhub/internal/apierr"
	"libraryhub/internal/slugs"
	"libraryhub/pkg/models"
)

var (
	ErrBookNotFound   = apierr.NotFound("There is no book with that title.")
	ErrNotIssued      = apierr.Forbidden("You have not issued this book.")
	ErrAlreadyGiven   = apierr.Conflict("You have already given feedback. Please edit the existing feedback.")
	ErrNotFound       = apierr.NotFound("There is no such feedback.")
	ErrNotOwner       = apierr.Forbidden("Forbidden. You can't edit other's feedback.")
	ErrNothingChanged = apierr.Validation("Given fields are same as original.")
)

const feedbackColumns = `slug, username, book_slug, rating, content, date_created, date_modified`

type Repo struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{db: db, now: time.Now}
}

// Create records one review per (user, book). The user must have been issued
// the book at some point; a past, returned issuance counts.
func (r *Repo) Create(ctx context.Context, username, bookSlug string, rating int, content string) (models.Feedback, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Feedback{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM books WHERE slug = ?)`, bookSlug); err != nil {
		return models.Feedback{}, err
	}
	if !exists {
		return models.Feedback{}, ErrBookNotFound
	}
	// chỉ người đã từng mượn sách mới được đánh giá
	if err := tx.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM issued_books WHERE username = ? AND book_slug = ?)`, username, bookSlug); err != nil {
		return models.Feedback{}, err
	}
	if !exists {
		return models.Feedback{}, ErrNotIssued
	}

	now := r.now().UTC()
	f := models.Feedback{
		Slug:         slugs.Pair(bookSlug, username),
		Username:     username,
		BookSlug:     bookSlug,
		Rating:       rating,
		Content:      content,
		DateCreated:  now,
		DateModified: now,
	}
	_, err = tx.NamedExecContext(ctx, `INSERT INTO feedbacks (`+feedbackColumns+`)
		VALUES (:slug, :username, :book_slug, :rating, :content, :date_created, :date_modified)`, f)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return models.Feedback{}, ErrAlreadyGiven
		}
		return models.Feedback{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Feedback{}, fmt.Errorf("commit tx: %w", err)
	}
	return f, nil
}

// Change holds the fields to update. Zero values mean unchanged.
type Change struct {
	Rating  int
	Content string
}

// Update edits the caller's own feedback.
func (r *Repo) Update(ctx context.Context, username, slug string, ch Change) (models.Feedback, error) {
	f, err := r.Get(ctx, slug)
	if err != nil {
		return f, err
	}
	if f.Username != username {
		return f, ErrNotOwner
	}
	changed := false
	if ch.Rating != 0 && ch.Rating != f.Rating {
		f.Rating, changed = ch.Rating, true
	}
	if ch.Content != "" && ch.Content != f.Content {
		f.Content, changed = ch.Content, true
	}
	if !changed {
		return f, ErrNothingChanged
	}
	f.DateModified = r.now().UTC()
	_, err = r.db.ExecContext(ctx, `UPDATE feedbacks SET rating = ?, content = ?, date_modified = ? WHERE slug = ?`,
		f.Rating, f.Content, f.DateModified, slug)
	return f, err
}

func (r *Repo) Get(ctx context.Context, slug string) (models.Feedback, error) {
	var f models.Feedback
	err := r.db.GetContext(ctx, &f, `SELECT `+feedbackColumns+` FROM feedbacks WHERE slug = ?`, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return f, ErrNotFound
	}
	return f, err
}

// ListByUser returns a reader's reviews, newest first.
func (r *Repo) ListByUser(ctx context.Context, username string) ([]models.Feedback, error) {
	out := []models.Feedback{}
	err := r.db.SelectContext(ctx, &out, `SELECT `+feedbackColumns+` FROM feedbacks
		WHERE username = ? ORDER BY date_created DESC`, username)
	return out, err
}
