package feedback

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraryhub/pkg/database"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "feedback.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	now := time.Now().UTC()
	for _, u := range []string{"annreader", "bobreader"} {
		_, err = db.Exec(`INSERT INTO users (id, name, username, email, password_hash, role, created_at)
			VALUES (?, ?, ?, ?, 'x', 'user', ?)`, u, u, u, u+"@example.com", now)
		require.NoError(t, err)
	}
	_, err = db.Exec(`INSERT INTO books (slug, title, author, description, section_slug, date_created, date_modified)
		VALUES ('emma', 'Emma', 'Jane Austen', 'Matchmaking gone wrong.', ?, ?, ?)`, database.MiscellaneousSlug, now, now)
	require.NoError(t, err)
	// ann borrowed and returned emma
	_, err = db.Exec(`INSERT INTO issued_books (slug, username, issued_by_username, book_slug, status, to_date, date_created)
		VALUES ('emma~annreader', 'annreader', NULL, 'emma', 'returned', ?, ?)`, now, now)
	require.NoError(t, err)
	return NewRepo(db)
}

func Test_Create(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	_, err := r.Create(ctx, "annreader", "nothing", 4, "Not a real book at all.")
	assert.ErrorIs(t, err, ErrBookNotFound)

	_, err = r.Create(ctx, "bobreader", "emma", 4, "Never borrowed it though.")
	assert.ErrorIs(t, err, ErrNotIssued)

	f, err := r.Create(ctx, "annreader", "emma", 5, "Witty and warm throughout.")
	require.NoError(t, err)
	assert.Equal(t, "emma~annreader", f.Slug)

	_, err = r.Create(ctx, "annreader", "emma", 3, "Changed my mind about it.")
	assert.ErrorIs(t, err, ErrAlreadyGiven)

	mine, err := r.ListByUser(ctx, "annreader")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func Test_Update(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	_, err := r.Create(ctx, "annreader", "emma", 5, "Witty and warm throughout.")
	require.NoError(t, err)

	_, err = r.Update(ctx, "annreader", "dune~annreader", Change{Rating: 3})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Update(ctx, "bobreader", "emma~annreader", Change{Rating: 1})
	assert.ErrorIs(t, err, ErrNotOwner)
	_, err = r.Update(ctx, "annreader", "emma~annreader", Change{Rating: 5})
	assert.ErrorIs(t, err, ErrNothingChanged)

	f, err := r.Update(ctx, "annreader", "emma~annreader", Change{Rating: 4, Content: "Witty, if a little long."})
	require.NoError(t, err)
	assert.Equal(t, 4, f.Rating)

	got, err := r.Get(ctx, "emma~annreader")
	require.NoError(t, err)
	assert.Equal(t, "Witty, if a little long.", got.Content)
}
