package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"libraryhub/pkg/models"
)

// InsertOutcome tags the result of a conditional insert. A Conflict means an
// active row for the same slug already exists and nothing was written.
type InsertOutcome int

const (
	Created InsertOutcome = iota + 1
	Conflict
)

func (o InsertOutcome) String() string {
	switch o {
	case Created:
		return "created"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Scope narrows sweeps and listings. The zero value covers every user.
type Scope struct {
	Username string
}

func All() Scope                    { return Scope{} }
func ForUser(username string) Scope { return Scope{Username: username} }

func (s Scope) where(query string, args []any) (string, []any) {
	if s.Username == "" {
		return query, args
	}
	return query + " AND username = ?", append(args, s.Username)
}

const requestColumns = `slug, username, book_slug, days, status, date_created`
const issueColumns = `slug, username, issued_by_username, book_slug, status, to_date, date_created`

// insertRequest writes a pending request. A row under the same slug is
// recycled only when it is no longer pending.
func insertRequest(ctx context.Context, ext sqlx.ExtContext, r models.Request) (InsertOutcome, error) {
	res, err := ext.ExecContext(ctx, `INSERT INTO requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, 'pending', ?)
		ON CONFLICT(slug) DO UPDATE SET
			days = excluded.days,
			status = 'pending',
			date_created = excluded.date_created
		WHERE requests.status <> 'pending'`,
		r.Slug, r.Username, r.BookSlug, r.Days, r.DateCreated)
	return outcomeOf(res, err)
}

// insertIssuedBook writes a current issuance, recycling a returned row.
func insertIssuedBook(ctx context.Context, ext sqlx.ExtContext, ib models.IssuedBook) (InsertOutcome, error) {
	res, err := ext.ExecContext(ctx, `INSERT INTO issued_books (`+issueColumns+`)
		VALUES (?, ?, ?, ?, 'current', ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			issued_by_username = excluded.issued_by_username,
			status = 'current',
			to_date = excluded.to_date,
			date_created = excluded.date_created
		WHERE issued_books.status <> 'current'`,
		ib.Slug, ib.Username, ib.IssuedByUsername, ib.BookSlug, ib.ToDate, ib.DateCreated)
	return outcomeOf(res, err)
}

func outcomeOf(res sql.Result, err error) (InsertOutcome, error) {
	if err != nil {
		if isUniqueViolation(err) {
			return Conflict, nil
		}
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return Conflict, nil
	}
	return Created, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// sweepRequests rejects pending requests older than the lifetime and returns
// them with their new status. The caller runs it inside a transaction, so the
// select and the update see the same rows.
func sweepRequests(ctx context.Context, ext sqlx.ExtContext, scope Scope, now time.Time) ([]models.Request, error) {
	where, args := scope.where(` WHERE status = 'pending' AND date_created < ?`, []any{expiryCutoff(now)})
	out := []models.Request{}
	if err := sqlx.SelectContext(ctx, ext, &out, `SELECT `+requestColumns+` FROM requests`+where, args...); err != nil {
		return nil, fmt.Errorf("sweep requests: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}
	if _, err := ext.ExecContext(ctx, `UPDATE requests SET status = 'rejected'`+where, args...); err != nil {
		return nil, fmt.Errorf("sweep requests: %w", err)
	}
	for i := range out {
		out[i].Status = models.RequestRejected
	}
	return out, nil
}

// sweepIssues closes overdue issuances, stamping the sweep time as the
// actual return date.
func sweepIssues(ctx context.Context, ext sqlx.ExtContext, scope Scope, now time.Time) ([]models.IssuedBook, error) {
	where, args := scope.where(` WHERE status = 'current' AND to_date < ?`, []any{now})
	out := []models.IssuedBook{}
	if err := sqlx.SelectContext(ctx, ext, &out, `SELECT `+issueColumns+` FROM issued_books`+where, args...); err != nil {
		return nil, fmt.Errorf("sweep issued books: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}
	if _, err := ext.ExecContext(ctx, `UPDATE issued_books SET status = 'returned', to_date = ?`+where,
		append([]any{now}, args...)...); err != nil {
		return nil, fmt.Errorf("sweep issued books: %w", err)
	}
	for i := range out {
		out[i].Status = models.IssueReturned
		out[i].ToDate = now
	}
	return out, nil
}

func loadSubmitState(ctx context.Context, ext sqlx.ExtContext, username, bookSlug string) (submitState, error) {
	var s submitState
	if err := sqlx.GetContext(ctx, ext, &s.bookExists,
		`SELECT EXISTS(SELECT 1 FROM books WHERE slug = ?)`, bookSlug); err != nil {
		return s, fmt.Errorf("check book: %w", err)
	}
	if err := sqlx.GetContext(ctx, ext, &s.issuedToThisUser,
		`SELECT EXISTS(SELECT 1 FROM issued_books WHERE username = ? AND book_slug = ? AND status = 'current')`,
		username, bookSlug); err != nil {
		return s, fmt.Errorf("check issuance: %w", err)
	}
	if err := sqlx.GetContext(ctx, ext, &s.outstandingElsewhere, `SELECT
		(SELECT COUNT(*) FROM requests WHERE username = ? AND book_slug <> ? AND status = 'pending') +
		(SELECT COUNT(*) FROM issued_books WHERE username = ? AND book_slug <> ? AND status = 'current')`,
		username, bookSlug, username, bookSlug); err != nil {
		return s, fmt.Errorf("count outstanding: %w", err)
	}
	return s, nil
}

func getRequest(ctx context.Context, ext sqlx.ExtContext, slug string) (models.Request, error) {
	var r models.Request
	err := sqlx.GetContext(ctx, ext, &r, `SELECT `+requestColumns+` FROM requests WHERE slug = ?`, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrRequestNotFound
	}
	return r, err
}

func getIssuedBook(ctx context.Context, ext sqlx.ExtContext, slug string) (models.IssuedBook, error) {
	var ib models.IssuedBook
	err := sqlx.GetContext(ctx, ext, &ib, `SELECT `+issueColumns+` FROM issued_books WHERE slug = ?`, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return ib, ErrIssueNotFound
	}
	return ib, err
}

// setRequestStatus moves a pending request to its final status. It reports
// false when the row was no longer pending.
func setRequestStatus(ctx context.Context, ext sqlx.ExtContext, slug string, status models.RequestStatus) (bool, error) {
	res, err := ext.ExecContext(ctx,
		`UPDATE requests SET status = ? WHERE slug = ? AND status = 'pending'`, status, slug)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func deleteRequest(ctx context.Context, ext sqlx.ExtContext, slug string) error {
	_, err := ext.ExecContext(ctx, `DELETE FROM requests WHERE slug = ?`, slug)
	return err
}

// markReturned closes a current issuance at the given time. It reports false
// when the row was not current.
func markReturned(ctx context.Context, ext sqlx.ExtContext, slug string, at time.Time) (bool, error) {
	res, err := ext.ExecContext(ctx,
		`UPDATE issued_books SET status = 'returned', to_date = ? WHERE slug = ? AND status = 'current'`, at, slug)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func listPendingRequests(ctx context.Context, ext sqlx.ExtContext, scope Scope) ([]models.Request, error) {
	q, args := scope.where(`SELECT `+requestColumns+` FROM requests WHERE status = 'pending'`, nil)
	out := []models.Request{}
	if err := sqlx.SelectContext(ctx, ext, &out, q+` ORDER BY date_created DESC`, args...); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return out, nil
}

func listCurrentIssues(ctx context.Context, ext sqlx.ExtContext, scope Scope) ([]models.IssuedBook, error) {
	q, args := scope.where(`SELECT `+issueColumns+` FROM issued_books WHERE status = 'current'`, nil)
	out := []models.IssuedBook{}
	if err := sqlx.SelectContext(ctx, ext, &out, q+` ORDER BY to_date ASC`, args...); err != nil {
		return nil, fmt.Errorf("list issued books: %w", err)
	}
	return out, nil
}
