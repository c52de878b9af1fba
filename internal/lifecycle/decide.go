package lifecycle

import (
	"time"

	"libraryhub/internal/apierr"
	"libraryhub/pkg/models"
)

const (
	// MaxOutstanding caps pending requests plus current issuances per user.
	MaxOutstanding = 5
	MinDays        = 1
	MaxDays        = 7
	// RequestLifetimeDays is how long a request may stay pending before the
	// sweep rejects it.
	RequestLifetimeDays = 7
)

var (
	ErrInvalidDays      = apierr.Validation("Days should be between 1 and 7.")
	ErrBookNotFound     = apierr.NotFound("There is no book with that title.")
	ErrAlreadyIssued    = apierr.Conflict("The book has already been issued.")
	ErrAlreadyRequested = apierr.Conflict("The book has already been requested.")
	ErrBorrowLimit      = apierr.Conflict("You can only borrow a maximum of 5 books.")
	ErrRequestNotFound  = apierr.NotFound("Request not found.")
	ErrNoSuchRequest    = apierr.NotFound("There is no such request.")
	ErrNotRequestOwner  = apierr.Forbidden("Forbidden. You can't delete other's requests.")
	ErrInvalidDecision  = apierr.Validation("Status can only be rejected or accepted.")
	ErrNotPending       = apierr.Conflict("Only pending request's status can be updated.")
	ErrIssueNotFound    = apierr.NotFound("Issued Book not found.")
	ErrNoSuchIssue      = apierr.NotFound("There is no such issued book.")
	ErrNotIssueOwner    = apierr.Forbidden("Forbidden. You can't return other's books.")
	ErrAlreadyReturned  = apierr.Conflict("The book has already been returned.")
	ErrNotCurrent       = apierr.Conflict("Only current issued book's status can be updated.")
)

// submitState is what the store knows about a (user, book) pair at the
// moment a borrow request is submitted, after sweeps have run.
type submitState struct {
	bookExists           bool
	issuedToThisUser     bool
	outstandingElsewhere int
}

// decideSubmit applies the borrow rules in order:
//
//	days outside 1..7                      -> ErrInvalidDays
//	book missing                           -> ErrBookNotFound
//	same book currently issued to the user -> ErrAlreadyIssued
//	5 or more other books outstanding      -> ErrBorrowLimit
//
// A pending request for the same book is not checked here; the store's
// conditional insert reports it as a Conflict outcome.
func decideSubmit(s submitState, days int) error {
	if days < MinDays || days > MaxDays {
		return ErrInvalidDays
	}
	if !s.bookExists {
		return ErrBookNotFound
	}
	if s.issuedToThisUser {
		return ErrAlreadyIssued
	}
	if s.outstandingElsewhere >= MaxOutstanding {
		return ErrBorrowLimit
	}
	return nil
}

func validDecision(decision models.RequestStatus) error {
	if decision != models.RequestAccepted && decision != models.RequestRejected {
		return ErrInvalidDecision
	}
	return nil
}

func decideTransition(r models.Request, decision models.RequestStatus) error {
	if err := validDecision(decision); err != nil {
		return err
	}
	if r.Status != models.RequestPending {
		return ErrNotPending
	}
	return nil
}

func decideWithdraw(r models.Request, username string) error {
	if r.Username != username {
		return ErrNotRequestOwner
	}
	return nil
}

// decideReturn checks ownership before status, so a stranger learns nothing
// about someone else's loan.
func decideReturn(ib models.IssuedBook, actor string, asLibrarian bool) error {
	if asLibrarian {
		if ib.Status != models.IssueCurrent {
			return ErrNotCurrent
		}
		return nil
	}
	if ib.Username != actor {
		return ErrNotIssueOwner
	}
	if ib.Status != models.IssueCurrent {
		return ErrAlreadyReturned
	}
	return nil
}

func expiryCutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -RequestLifetimeDays)
}

func requestExpired(r models.Request, now time.Time) bool {
	return r.Status == models.RequestPending && r.DateCreated.Before(expiryCutoff(now))
}

func issueOverdue(ib models.IssuedBook, now time.Time) bool {
	return ib.Status == models.IssueCurrent && ib.ToDate.Before(now)
}

func dueDate(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, days)
}
