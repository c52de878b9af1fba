package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"libraryhub/pkg/models"
)

func Test_decideSubmit(t *testing.T) {
	ok := submitState{bookExists: true}
	tests := []struct {
		name  string
		state submitState
		days  int
		want  error
	}{
		{"accepts_one_day", ok, 1, nil},
		{"accepts_seven_days", ok, 7, nil},
		{"rejects_zero_days", ok, 0, ErrInvalidDays},
		{"rejects_eight_days", ok, 8, ErrInvalidDays},
		{"missing_book", submitState{}, 3, ErrBookNotFound},
		{"already_issued", submitState{bookExists: true, issuedToThisUser: true}, 3, ErrAlreadyIssued},
		{"four_elsewhere_is_fine", submitState{bookExists: true, outstandingElsewhere: 4}, 3, nil},
		{"five_elsewhere_hits_limit", submitState{bookExists: true, outstandingElsewhere: 5}, 3, ErrBorrowLimit},
		{"issued_wins_over_limit", submitState{bookExists: true, issuedToThisUser: true, outstandingElsewhere: 5}, 3, ErrAlreadyIssued},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := decideSubmit(tt.state, tt.days)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func Test_decideTransition(t *testing.T) {
	pending := models.Request{Status: models.RequestPending}
	assert.NoError(t, decideTransition(pending, models.RequestAccepted))
	assert.NoError(t, decideTransition(pending, models.RequestRejected))
	assert.ErrorIs(t, decideTransition(pending, models.RequestPending), ErrInvalidDecision)
	assert.ErrorIs(t, decideTransition(pending, "maybe"), ErrInvalidDecision)

	done := models.Request{Status: models.RequestRejected}
	assert.ErrorIs(t, decideTransition(done, models.RequestAccepted), ErrNotPending)
}

func Test_decideReturn(t *testing.T) {
	ib := models.IssuedBook{Username: "ann", Status: models.IssueCurrent}
	assert.NoError(t, decideReturn(ib, "ann", false))
	assert.ErrorIs(t, decideReturn(ib, "bob", false), ErrNotIssueOwner)
	assert.NoError(t, decideReturn(ib, "lib", true))

	ib.Status = models.IssueReturned
	assert.ErrorIs(t, decideReturn(ib, "ann", false), ErrAlreadyReturned)
	assert.ErrorIs(t, decideReturn(ib, "bob", false), ErrNotIssueOwner)
	assert.ErrorIs(t, decideReturn(ib, "lib", true), ErrNotCurrent)
}

func Test_requestExpired(t *testing.T) {
	now := time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)
	r := models.Request{Status: models.RequestPending}

	r.DateCreated = now.AddDate(0, 0, -8)
	assert.True(t, requestExpired(r, now))

	r.DateCreated = now.AddDate(0, 0, -7)
	assert.False(t, requestExpired(r, now), "exactly seven days old is still pending")

	r.DateCreated = now.AddDate(0, 0, -6)
	assert.False(t, requestExpired(r, now))

	r.DateCreated = now.AddDate(0, 0, -30)
	r.Status = models.RequestAccepted
	assert.False(t, requestExpired(r, now))
}

func Test_issueOverdue(t *testing.T) {
	now := time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)
	ib := models.IssuedBook{Status: models.IssueCurrent, ToDate: now.Add(-time.Minute)}
	assert.True(t, issueOverdue(ib, now))

	ib.ToDate = now.Add(time.Minute)
	assert.False(t, issueOverdue(ib, now))

	ib.ToDate = now.Add(-time.Hour)
	ib.Status = models.IssueReturned
	assert.False(t, issueOverdue(ib, now))
}
