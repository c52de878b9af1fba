// Package lifecycle owns the borrow workflow: requests, librarian decisions,
// issuances, returns and the time-based sweeps. Every operation runs in one
// database transaction; events are published only after it commits.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"libraryhub/internal/slugs"
	"libraryhub/pkg/models"
)

// Publisher receives lifecycle events. Implementations must not block.
type Publisher interface {
	Publish(models.LifecycleEvent)
}

type nopPublisher struct{}

func (nopPublisher) Publish(models.LifecycleEvent) {}

type Engine struct {
	db  *sqlx.DB
	now func() time.Time
	pub Publisher
	log *slog.Logger
}

type Option func(*Engine)

// WithClock replaces time.Now. Tests use it to move across expiry boundaries.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithPublisher(p Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.pub = p
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func New(db *sqlx.DB, opts ...Option) *Engine {
	e := &Engine{
		db:  db,
		now: time.Now,
		pub: nopPublisher{},
		log: slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Overview is the lifecycle state a dashboard shows: pending requests and
// current issuances, both after sweeping.
type Overview struct {
	Requests    []models.Request    `json:"requests"`
	IssuedBooks []models.IssuedBook `json:"issuedBooks"`
}

func (e *Engine) clock() time.Time { return e.now().UTC() }

// inTx runs fn in an immediate transaction and publishes the events fn
// collected once the commit succeeds.
func (e *Engine) inTx(ctx context.Context, fn func(tx *sqlx.Tx, emit func(models.LifecycleEvent)) error) error {
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var events []models.LifecycleEvent
	emit := func(ev models.LifecycleEvent) { events = append(events, ev) }
	if err := fn(tx, emit); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	for _, ev := range events {
		e.pub.Publish(ev)
	}
	return nil
}

func newEvent(t models.EventType, slug, username, bookSlug, actor string, at time.Time) models.LifecycleEvent {
	return models.LifecycleEvent{
		ID:         uuid.NewString(),
		Type:       t,
		Slug:       slug,
		Username:   username,
		BookSlug:   bookSlug,
		Actor:      actor,
		OccurredAt: at,
	}
}

// sweep runs both sweeps for scope and emits an event per changed row.
func (e *Engine) sweep(ctx context.Context, tx *sqlx.Tx, scope Scope, now time.Time, emit func(models.LifecycleEvent)) (int, int, error) {
	expired, err := e.sweepRequestsFor(ctx, tx, scope, now, emit)
	if err != nil {
		return 0, 0, err
	}
	overdue, err := e.sweepIssuesFor(ctx, tx, scope, now, emit)
	if err != nil {
		return 0, 0, err
	}
	return expired, overdue, nil
}

func (e *Engine) sweepRequestsFor(ctx context.Context, tx *sqlx.Tx, scope Scope, now time.Time, emit func(models.LifecycleEvent)) (int, error) {
	expired, err := sweepRequests(ctx, tx, scope, now)
	if err != nil {
		return 0, err
	}
	for _, r := range expired {
		emit(newEvent(models.EventRequestExpired, r.Slug, r.Username, r.BookSlug, "", now))
	}
	return len(expired), nil
}

func (e *Engine) sweepIssuesFor(ctx context.Context, tx *sqlx.Tx, scope Scope, now time.Time, emit func(models.LifecycleEvent)) (int, error) {
	overdue, err := sweepIssues(ctx, tx, scope, now)
	if err != nil {
		return 0, err
	}
	for _, ib := range overdue {
		emit(newEvent(models.EventBookOverdue, ib.Slug, ib.Username, ib.BookSlug, "", now))
	}
	return len(overdue), nil
}

// SubmitRequest creates a pending request for (username, bookSlug), or
// recycles the pair's earlier request if that one is no longer pending.
func (e *Engine) SubmitRequest(ctx context.Context, username, bookSlug string, days int) (models.Request, error) {
	now := e.clock()
	req := models.Request{
		Slug:        slugs.Pair(bookSlug, username),
		Username:    username,
		BookSlug:    bookSlug,
		Days:        days,
		Status:      models.RequestPending,
		DateCreated: now,
	}
	err := e.inTx(ctx, func(tx *sqlx.Tx, emit func(models.LifecycleEvent)) error {
		if _, _, err := e.sweep(ctx, tx, ForUser(username), now, emit); err != nil {
			return err
		}
		st, err := loadSubmitState(ctx, tx, username, bookSlug)
		if err != nil {
			return err
		}
		if err := decideSubmit(st, days); err != nil {
			return err
		}
		outcome, err := insertRequest(ctx, tx, req)
		if err != nil {
			return fmt.Errorf("insert request: %w", err)
		}
		if outcome == Conflict {
			return ErrAlreadyRequested
		}
		emit(newEvent(models.EventRequestSubmitted, req.Slug, username, bookSlug, username, now))
		return nil
	})
	if err != nil {
		return models.Request{}, err
	}
	e.log.Info("request submitted", "slug", req.Slug, "days", days)
	return req, nil
}

// WithdrawRequest deletes the caller's own request.
func (e *Engine) WithdrawRequest(ctx context.Context, username, slug string) error {
	now := e.clock()
	return e.inTx(ctx, func(tx *sqlx.Tx, emit func(models.LifecycleEvent)) error {
		r, err := getRequest(ctx, tx, slug)
		if errors.Is(err, ErrRequestNotFound) {
			return ErrNoSuchRequest
		}
		if err != nil {
			return err
		}
		if err := decideWithdraw(r, username); err != nil {
			return err
		}
		if err := deleteRequest(ctx, tx, slug); err != nil {
			return fmt.Errorf("delete request: %w", err)
		}
		emit(newEvent(models.EventRequestWithdrawn, r.Slug, r.Username, r.BookSlug, username, now))
		return nil
	})
}

// DecideRequest accepts or rejects a pending request. Acceptance issues the
// book in the same transaction, due days after now. Requests that expired
// before the decision are swept first and can no longer be accepted.
func (e *Engine) DecideRequest(ctx context.Context, librarian, slug string, decision models.RequestStatus) (models.Request, error) {
	if err := validDecision(decision); err != nil {
		return models.Request{}, err
	}
	now := e.clock()
	var r models.Request
	err := e.inTx(ctx, func(tx *sqlx.Tx, emit func(models.LifecycleEvent)) error {
		var err error
		if r, err = getRequest(ctx, tx, slug); err != nil {
			return err
		}
		if requestExpired(r, now) {
			if _, err := e.sweepRequestsFor(ctx, tx, ForUser(r.Username), now, emit); err != nil {
				return err
			}
			r.Status = models.RequestRejected
		}
		if err := decideTransition(r, decision); err != nil {
			return err
		}
		ok, err := setRequestStatus(ctx, tx, slug, decision)
		if err != nil {
			return fmt.Errorf("update request: %w", err)
		}
		if !ok {
			return ErrNotPending
		}
		r.Status = decision

		if decision == models.RequestRejected {
			emit(newEvent(models.EventRequestRejected, r.Slug, r.Username, r.BookSlug, librarian, now))
			return nil
		}

		issuer := librarian
		ib := models.IssuedBook{
			Slug:             r.Slug,
			Username:         r.Username,
			IssuedByUsername: &issuer,
			BookSlug:         r.BookSlug,
			Status:           models.IssueCurrent,
			ToDate:           dueDate(now, r.Days),
			DateCreated:      now,
		}
		outcome, err := insertIssuedBook(ctx, tx, ib)
		if err != nil {
			return fmt.Errorf("issue book: %w", err)
		}
		if outcome == Conflict {
			return ErrAlreadyIssued
		}
		emit(newEvent(models.EventRequestAccepted, r.Slug, r.Username, r.BookSlug, librarian, now))
		emit(newEvent(models.EventBookIssued, ib.Slug, ib.Username, ib.BookSlug, librarian, now))
		return nil
	})
	if err != nil {
		return models.Request{}, err
	}
	e.log.Info("request decided", "slug", slug, "status", decision, "librarian", librarian)
	return r, nil
}

// ReturnBook closes the caller's own current issuance.
func (e *Engine) ReturnBook(ctx context.Context, username, slug string) (models.IssuedBook, error) {
	return e.returnIssued(ctx, username, slug, false)
}

// LibrarianReturnBook closes any current issuance on the reader's behalf.
func (e *Engine) LibrarianReturnBook(ctx context.Context, librarian, slug string) (models.IssuedBook, error) {
	return e.returnIssued(ctx, librarian, slug, true)
}

func (e *Engine) returnIssued(ctx context.Context, actor, slug string, asLibrarian bool) (models.IssuedBook, error) {
	now := e.clock()
	var ib models.IssuedBook
	err := e.inTx(ctx, func(tx *sqlx.Tx, emit func(models.LifecycleEvent)) error {
		var err error
		ib, err = getIssuedBook(ctx, tx, slug)
		if errors.Is(err, ErrIssueNotFound) && !asLibrarian {
			return ErrNoSuchIssue
		}
		if err != nil {
			return err
		}
		if err := decideReturn(ib, actor, asLibrarian); err != nil {
			return err
		}
		ok, err := markReturned(ctx, tx, slug, now)
		if err != nil {
			return fmt.Errorf("return book: %w", err)
		}
		if !ok {
			ib.Status = models.IssueReturned
			return decideReturn(ib, actor, asLibrarian)
		}
		ib.Status = models.IssueReturned
		ib.ToDate = now
		emit(newEvent(models.EventBookReturned, ib.Slug, ib.Username, ib.BookSlug, actor, now))
		return nil
	})
	if err != nil {
		return models.IssuedBook{}, err
	}
	e.log.Info("book returned", "slug", slug, "by", actor)
	return ib, nil
}

// SweepExpiredRequests rejects every pending request in scope that is older
// than RequestLifetimeDays. Running it twice changes nothing the second time.
func (e *Engine) SweepExpiredRequests(ctx context.Context, scope Scope) (int, error) {
	now := e.clock()
	var n int
	err := e.inTx(ctx, func(tx *sqlx.Tx, emit func(models.LifecycleEvent)) error {
		var err error
		n, err = e.sweepRequestsFor(ctx, tx, scope, now, emit)
		return err
	})
	return n, err
}

// SweepOverdueIssuances returns every current issuance in scope whose due
// date has passed, recording the sweep time as the return date.
func (e *Engine) SweepOverdueIssuances(ctx context.Context, scope Scope) (int, error) {
	now := e.clock()
	var n int
	err := e.inTx(ctx, func(tx *sqlx.Tx, emit func(models.LifecycleEvent)) error {
		var err error
		n, err = e.sweepIssuesFor(ctx, tx, scope, now, emit)
		return err
	})
	return n, err
}

// Sweep runs both sweeps in one transaction. The background worker and the
// CLI call it.
func (e *Engine) Sweep(ctx context.Context, scope Scope) (expired, overdue int, err error) {
	now := e.clock()
	err = e.inTx(ctx, func(tx *sqlx.Tx, emit func(models.LifecycleEvent)) error {
		var err error
		expired, overdue, err = e.sweep(ctx, tx, scope, now, emit)
		return err
	})
	return expired, overdue, err
}

// Overview sweeps scope and then lists what is still outstanding in it.
func (e *Engine) Overview(ctx context.Context, scope Scope) (Overview, error) {
	now := e.clock()
	var ov Overview
	err := e.inTx(ctx, func(tx *sqlx.Tx, emit func(models.LifecycleEvent)) error {
		if _, _, err := e.sweep(ctx, tx, scope, now, emit); err != nil {
			return err
		}
		var err error
		if ov.Requests, err = listPendingRequests(ctx, tx, scope); err != nil {
			return err
		}
		ov.IssuedBooks, err = listCurrentIssues(ctx, tx, scope)
		return err
	})
	return ov, err
}

// GetRequest reads one request, sweeping its owner first so an expired
// request is never reported as pending.
func (e *Engine) GetRequest(ctx context.Context, slug string) (models.Request, error) {
	now := e.clock()
	var r models.Request
	err := e.inTx(ctx, func(tx *sqlx.Tx, emit func(models.LifecycleEvent)) error {
		var err error
		if r, err = getRequest(ctx, tx, slug); err != nil {
			return err
		}
		if requestExpired(r, now) {
			if _, err := e.sweepRequestsFor(ctx, tx, ForUser(r.Username), now, emit); err != nil {
				return err
			}
			r.Status = models.RequestRejected
		}
		return nil
	})
	return r, err
}

// GetIssuedBook reads one issuance, closing it first if it is overdue.
func (e *Engine) GetIssuedBook(ctx context.Context, slug string) (models.IssuedBook, error) {
	now := e.clock()
	var ib models.IssuedBook
	err := e.inTx(ctx, func(tx *sqlx.Tx, emit func(models.LifecycleEvent)) error {
		var err error
		if ib, err = getIssuedBook(ctx, tx, slug); err != nil {
			return err
		}
		if issueOverdue(ib, now) {
			if _, err := e.sweepIssuesFor(ctx, tx, ForUser(ib.Username), now, emit); err != nil {
				return err
			}
			ib.Status = models.IssueReturned
			ib.ToDate = now
		}
		return nil
	})
	return ib, err
}
