package lifecycle

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"libraryhub/pkg/database"
	"libraryhub/pkg/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []models.LifecycleEvent
}

func (r *recorder) Publish(ev models.LifecycleEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []models.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	db    *sqlx.DB
	clock *fakeClock
	rec   *recorder
	eng   *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	f := &fixture{db: db, clock: newFakeClock(), rec: &recorder{}}
	f.eng = New(db, WithClock(f.clock.Now), WithPublisher(f.rec))

	f.addUser(t, "ann", models.RoleUser)
	f.addUser(t, "bob", models.RoleUser)
	f.addUser(t, "lib", models.RoleLibrarian)
	for _, b := range []string{"the-hobbit", "dune", "emma", "ulysses", "beloved", "hamlet", "walden"} {
		f.addBook(t, b)
	}
	return f
}

func (f *fixture) addUser(t *testing.T, username string, role models.Role) {
	t.Helper()
	_, err := f.db.Exec(`INSERT INTO users (id, name, username, email, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, 'x', ?, ?)`, username+"-id", username, username, username+"@example.com", role, f.clock.Now())
	require.NoError(t, err)
}

func (f *fixture) addBook(t *testing.T, slug string) {
	t.Helper()
	now := f.clock.Now()
	_, err := f.db.Exec(`INSERT INTO books (slug, title, author, description, section_slug, date_created, date_modified)
		VALUES (?, ?, 'Someone', 'A book.', ?, ?, ?)`, slug, slug, database.MiscellaneousSlug, now, now)
	require.NoError(t, err)
}

func (f *fixture) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.Get(&n, query, args...))
	return n
}
