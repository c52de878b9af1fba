package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraryhub/pkg/models"
)

const day = 24 * time.Hour

func Test_SubmitRequest_CreatesPendingRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.eng.SubmitRequest(ctx, "ann", "the-hobbit", 3)
	require.NoError(t, err)

	assert.Equal(t, "the-hobbit~ann", r.Slug)
	assert.Equal(t, models.RequestPending, r.Status)
	assert.Equal(t, 3, r.Days)
	assert.True(t, f.clock.Now().Equal(r.DateCreated))

	stored, err := f.eng.GetRequest(ctx, r.Slug)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, stored.Status)
	assert.Equal(t, []models.EventType{models.EventRequestSubmitted}, f.rec.types())
}

func Test_SubmitRequest_RejectsDuplicatePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.SubmitRequest(ctx, "ann", "dune", 2)
	require.NoError(t, err)

	_, err = f.eng.SubmitRequest(ctx, "ann", "dune", 5)
	assert.ErrorIs(t, err, ErrAlreadyRequested)
	assert.EqualError(t, err, "The book has already been requested.")

	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM requests WHERE username = 'ann'`))
	assert.Equal(t, 2, f.count(t, `SELECT days FROM requests WHERE slug = 'dune~ann'`))
}

func Test_SubmitRequest_ValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.SubmitRequest(ctx, "ann", "dune", 0)
	assert.ErrorIs(t, err, ErrInvalidDays)
	_, err = f.eng.SubmitRequest(ctx, "ann", "dune", 8)
	assert.ErrorIs(t, err, ErrInvalidDays)
	_, err = f.eng.SubmitRequest(ctx, "ann", "no-such-book", 3)
	assert.ErrorIs(t, err, ErrBookNotFound)

	assert.Zero(t, f.count(t, `SELECT COUNT(*) FROM requests`))
	assert.Empty(t, f.rec.types())
}

func Test_SubmitRequest_EnforcesBorrowLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	books := []string{"the-hobbit", "dune", "emma", "ulysses"}
	for _, b := range books {
		_, err := f.eng.SubmitRequest(ctx, "ann", b, 3)
		require.NoError(t, err)
	}
	// one of the five is an issuance rather than a pending request
	_, err := f.eng.SubmitRequest(ctx, "ann", "beloved", 3)
	require.NoError(t, err)
	_, err = f.eng.DecideRequest(ctx, "lib", "beloved~ann", models.RequestAccepted)
	require.NoError(t, err)

	_, err = f.eng.SubmitRequest(ctx, "ann", "hamlet", 3)
	assert.ErrorIs(t, err, ErrBorrowLimit)
	assert.EqualError(t, err, "You can only borrow a maximum of 5 books.")

	outstanding := f.count(t, `SELECT
		(SELECT COUNT(*) FROM requests WHERE username = 'ann' AND status = 'pending') +
		(SELECT COUNT(*) FROM issued_books WHERE username = 'ann' AND status = 'current')`)
	assert.Equal(t, MaxOutstanding, outstanding)

	// the limit is per user
	_, err = f.eng.SubmitRequest(ctx, "bob", "hamlet", 3)
	assert.NoError(t, err)

	// withdrawing frees a slot
	require.NoError(t, f.eng.WithdrawRequest(ctx, "ann", "dune~ann"))
	_, err = f.eng.SubmitRequest(ctx, "ann", "hamlet", 3)
	assert.NoError(t, err)
}

func Test_DecideRequest_AcceptIssuesBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.SubmitRequest(ctx, "ann", "emma", 4)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Hour)

	r, err := f.eng.DecideRequest(ctx, "lib", "emma~ann", models.RequestAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.RequestAccepted, r.Status)

	ib, err := f.eng.GetIssuedBook(ctx, "emma~ann")
	require.NoError(t, err)
	assert.Equal(t, models.IssueCurrent, ib.Status)
	assert.Equal(t, "ann", ib.Username)
	require.NotNil(t, ib.IssuedByUsername)
	assert.Equal(t, "lib", *ib.IssuedByUsername)
	assert.True(t, f.clock.Now().Add(4*day).Equal(ib.ToDate), "due %s, got %s", f.clock.Now().Add(4*day), ib.ToDate)

	assert.Equal(t, []models.EventType{
		models.EventRequestSubmitted,
		models.EventRequestAccepted,
		models.EventBookIssued,
	}, f.rec.types())

	// a current issuance blocks another request for the same book
	_, err = f.eng.SubmitRequest(ctx, "ann", "emma", 2)
	assert.ErrorIs(t, err, ErrAlreadyIssued)
}

func Test_DecideRequest_AcceptRollsBackOnConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.SubmitRequest(ctx, "ann", "emma", 4)
	require.NoError(t, err)
	// an issuance already current under the same slug
	_, err = f.db.Exec(`INSERT INTO issued_books (slug, username, issued_by_username, book_slug, status, to_date, date_created)
		VALUES ('emma~ann', 'ann', 'lib', 'emma', 'current', ?, ?)`, f.clock.Now().Add(3*day), f.clock.Now())
	require.NoError(t, err)

	_, err = f.eng.DecideRequest(ctx, "lib", "emma~ann", models.RequestAccepted)
	assert.ErrorIs(t, err, ErrAlreadyIssued)
	assert.EqualError(t, err, "The book has already been issued.")

	r, err := f.eng.GetRequest(ctx, "emma~ann")
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, r.Status)
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM issued_books`))
	assert.Equal(t, []models.EventType{models.EventRequestSubmitted}, f.rec.types())
}

func Test_DecideRequest_RejectAndReDecide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.SubmitRequest(ctx, "ann", "walden", 2)
	require.NoError(t, err)

	_, err = f.eng.DecideRequest(ctx, "lib", "walden~ann", "maybe")
	assert.ErrorIs(t, err, ErrInvalidDecision)

	r, err := f.eng.DecideRequest(ctx, "lib", "walden~ann", models.RequestRejected)
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, r.Status)

	_, err = f.eng.DecideRequest(ctx, "lib", "walden~ann", models.RequestAccepted)
	assert.ErrorIs(t, err, ErrNotPending)
	assert.Zero(t, f.count(t, `SELECT COUNT(*) FROM issued_books`))

	_, err = f.eng.DecideRequest(ctx, "lib", "nothing~ann", models.RequestAccepted)
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func Test_BorrowCycle_ReusesSlugs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for round := 0; round < 2; round++ {
		_, err := f.eng.SubmitRequest(ctx, "ann", "the-hobbit", 3)
		require.NoError(t, err, "round %d", round)
		_, err = f.eng.DecideRequest(ctx, "lib", "the-hobbit~ann", models.RequestAccepted)
		require.NoError(t, err, "round %d", round)
		_, err = f.eng.ReturnBook(ctx, "ann", "the-hobbit~ann")
		require.NoError(t, err, "round %d", round)
		f.clock.Advance(day)
	}

	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM requests`))
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM issued_books`))
}

func Test_SweepExpiredRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.SubmitRequest(ctx, "ann", "dune", 3)
	require.NoError(t, err)

	f.clock.Advance(6 * day)
	n, err := f.eng.SweepExpiredRequests(ctx, All())
	require.NoError(t, err)
	assert.Zero(t, n, "six days old is not expired")

	f.clock.Advance(2 * day)
	n, err = f.eng.SweepExpiredRequests(ctx, All())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.eng.SweepExpiredRequests(ctx, All())
	require.NoError(t, err)
	assert.Zero(t, n, "second sweep changes nothing")

	r, err := f.eng.GetRequest(ctx, "dune~ann")
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, r.Status)

	_, err = f.eng.DecideRequest(ctx, "lib", "dune~ann", models.RequestAccepted)
	assert.ErrorIs(t, err, ErrNotPending)

	assert.Contains(t, f.rec.types(), models.EventRequestExpired)
}

func Test_ReadsSweepExpiredRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.SubmitRequest(ctx, "ann", "dune", 3)
	require.NoError(t, err)
	f.clock.Advance(8 * day)

	ov, err := f.eng.Overview(ctx, ForUser("ann"))
	require.NoError(t, err)
	assert.Empty(t, ov.Requests)
	assert.NotNil(t, ov.Requests)

	// an expired request stops counting toward the limit and can be resubmitted
	r, err := f.eng.SubmitRequest(ctx, "ann", "dune", 2)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, r.Status)
}

func Test_DecideRequest_ExpiredCannotBeAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.SubmitRequest(ctx, "ann", "emma", 3)
	require.NoError(t, err)
	f.clock.Advance(8 * day)

	_, err = f.eng.DecideRequest(ctx, "lib", "emma~ann", models.RequestAccepted)
	assert.ErrorIs(t, err, ErrNotPending)
	assert.Zero(t, f.count(t, `SELECT COUNT(*) FROM issued_books`))
}

func Test_SweepOverdueIssuances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.SubmitRequest(ctx, "ann", "ulysses", 2)
	require.NoError(t, err)
	_, err = f.eng.DecideRequest(ctx, "lib", "ulysses~ann", models.RequestAccepted)
	require.NoError(t, err)

	f.clock.Advance(day)
	ov, err := f.eng.Overview(ctx, All())
	require.NoError(t, err)
	assert.Len(t, ov.IssuedBooks, 1)

	f.clock.Advance(2*day + 3*time.Hour)
	readAt := f.clock.Now()
	ib, err := f.eng.GetIssuedBook(ctx, "ulysses~ann")
	require.NoError(t, err)
	assert.Equal(t, models.IssueReturned, ib.Status)
	assert.True(t, readAt.Equal(ib.ToDate))

	stored := f.count(t, `SELECT COUNT(*) FROM issued_books WHERE status = 'returned'`)
	assert.Equal(t, 1, stored)

	n, err := f.eng.SweepOverdueIssuances(ctx, All())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Contains(t, f.rec.types(), models.EventBookOverdue)
}

func Test_Sweep_ScopedToUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.SubmitRequest(ctx, "ann", "dune", 3)
	require.NoError(t, err)
	_, err = f.eng.SubmitRequest(ctx, "bob", "dune", 3)
	require.NoError(t, err)
	f.clock.Advance(8 * day)

	expired, overdue, err := f.eng.Sweep(ctx, ForUser("ann"))
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Zero(t, overdue)
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM requests WHERE status = 'pending'`))

	expired, _, err = f.eng.Sweep(ctx, All())
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
}

func Test_ReturnBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.SubmitRequest(ctx, "ann", "hamlet", 5)
	require.NoError(t, err)
	_, err = f.eng.DecideRequest(ctx, "lib", "hamlet~ann", models.RequestAccepted)
	require.NoError(t, err)

	_, err = f.eng.ReturnBook(ctx, "bob", "hamlet~ann")
	assert.ErrorIs(t, err, ErrNotIssueOwner)

	f.clock.Advance(time.Hour)
	ib, err := f.eng.ReturnBook(ctx, "ann", "hamlet~ann")
	require.NoError(t, err)
	assert.Equal(t, models.IssueReturned, ib.Status)
	assert.True(t, f.clock.Now().Equal(ib.ToDate))

	_, err = f.eng.ReturnBook(ctx, "ann", "hamlet~ann")
	assert.ErrorIs(t, err, ErrAlreadyReturned)

	_, err = f.eng.ReturnBook(ctx, "ann", "nothing~ann")
	assert.ErrorIs(t, err, ErrNoSuchIssue)
}

func Test_LibrarianReturnBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.SubmitRequest(ctx, "bob", "walden", 1)
	require.NoError(t, err)
	_, err = f.eng.DecideRequest(ctx, "lib", "walden~bob", models.RequestAccepted)
	require.NoError(t, err)

	ib, err := f.eng.LibrarianReturnBook(ctx, "lib", "walden~bob")
	require.NoError(t, err)
	assert.Equal(t, models.IssueReturned, ib.Status)

	_, err = f.eng.LibrarianReturnBook(ctx, "lib", "walden~bob")
	assert.ErrorIs(t, err, ErrNotCurrent)

	_, err = f.eng.LibrarianReturnBook(ctx, "lib", "walden~ann")
	assert.ErrorIs(t, err, ErrIssueNotFound)
}

func Test_WithdrawRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.SubmitRequest(ctx, "ann", "emma", 3)
	require.NoError(t, err)

	assert.ErrorIs(t, f.eng.WithdrawRequest(ctx, "bob", "emma~ann"), ErrNotRequestOwner)
	assert.ErrorIs(t, f.eng.WithdrawRequest(ctx, "ann", "dune~ann"), ErrNoSuchRequest)

	require.NoError(t, f.eng.WithdrawRequest(ctx, "ann", "emma~ann"))
	_, err = f.eng.GetRequest(ctx, "emma~ann")
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func Test_SubmitRequest_ConcurrentDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.eng.SubmitRequest(ctx, "ann", "the-hobbit", 3)
		}(i)
	}
	wg.Wait()

	var created, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case assert.ErrorIs(t, err, ErrAlreadyRequested):
			conflicts++
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, conflicts)
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM requests`))
}

func Test_FailedTransitionPublishesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.SubmitRequest(ctx, "ann", "dune", 3)
	require.NoError(t, err)
	_, err = f.eng.SubmitRequest(ctx, "ann", "dune", 3)
	require.Error(t, err)
	_, err = f.eng.DecideRequest(ctx, "lib", "dune~ann", "later")
	require.Error(t, err)

	assert.Equal(t, []models.EventType{models.EventRequestSubmitted}, f.rec.types())
}
