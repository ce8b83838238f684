package shortener

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/shortly/internal/db/migrate"
	dbsqlite "github.com/sundayezeilo/shortly/internal/db/sqlite"
	"github.com/sundayezeilo/shortly/internal/errx"
)

/***************
 * Helpers
 ***************/

var testDBSeq atomic.Int64

// newTestDB opens a fresh in-memory database with the schema applied.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:shortener_test_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	conn, err := dbsqlite.Open(t.Context(), dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	if err := migrate.SQLite(t.Context(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

// insertUser adds a bare user row so owned links satisfy the foreign key.
func insertUser(t *testing.T, conn *sql.DB) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := conn.ExecContext(t.Context(),
		`INSERT INTO users (id, username, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		id.String(), "u"+id.String()[:8], id.String()[:8]+"@example.com", "x", time.Now().UnixNano(),
	)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return id
}

func mustInsert(t *testing.T, repo Repository, l NewLink) Link {
	t.Helper()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	link, err := repo.Insert(t.Context(), l)
	if err != nil {
		t.Fatalf("Insert(%s) unexpected error: %v", l.Code, err)
	}
	return link
}

/***************
 * Insert / Find
 ***************/

func TestSQLiteRepo_InsertAndFind(t *testing.T) {
	conn := newTestDB(t)
	repo := NewSQLiteRepository(conn, nil)
	owner := insertUser(t, conn)

	created := time.Date(2025, 3, 1, 12, 0, 0, 123456789, time.UTC)
	expires := created.Add(time.Hour)

	inserted := mustInsert(t, repo, NewLink{
		Code:      "abc1234",
		Target:    "https://example.com/a",
		OwnerID:   &owner,
		CreatedAt: created,
		ExpiresAt: &expires,
	})
	if inserted.ID == uuid.Nil || !inserted.Active || inserted.Clicks != 0 {
		t.Errorf("Insert() = %+v", inserted)
	}

	got, err := repo.FindByCode(t.Context(), "abc1234")
	if err != nil {
		t.Fatalf("FindByCode() unexpected error: %v", err)
	}
	if got.ID != inserted.ID || got.Target != "https://example.com/a" || !got.Active {
		t.Errorf("FindByCode() = %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, expires)
	}
	if !got.Owned(owner) {
		t.Errorf("OwnerID = %v, want %v", got.OwnerID, owner)
	}

	t.Run("unknown code is not found", func(t *testing.T) {
		_, err := repo.FindByCode(t.Context(), "missing")
		if errx.KindOf(err) != errx.NotFound {
			t.Errorf("KindOf() = %v, want NotFound", errx.KindOf(err))
		}
	})

	t.Run("owner without an account is unauthorized", func(t *testing.T) {
		ghost := uuid.New()
		_, err := repo.Insert(t.Context(), NewLink{Code: "ghost01", Target: "https://example.com/g", OwnerID: &ghost, CreatedAt: created})
		if errx.KindOf(err) != errx.Unauthorized {
			t.Errorf("KindOf() = %v, want Unauthorized (err = %v)", errx.KindOf(err), err)
		}
		if !errors.Is(err, ErrUnknownOwner) {
			t.Errorf("error = %v, want ErrUnknownOwner", err)
		}
	})
}

func TestSQLiteRepo_Uniqueness(t *testing.T) {
	conn := newTestDB(t)
	repo := NewSQLiteRepository(conn, nil)
	alice := insertUser(t, conn)
	bob := insertUser(t, conn)

	mustInsert(t, repo, NewLink{Code: "code001", Target: "https://example.com/x", ExpiresAt: ptr(time.Now().Add(-time.Minute))})

	t.Run("duplicate code", func(t *testing.T) {
		_, err := repo.Insert(t.Context(), NewLink{Code: "code001", Target: "https://example.com/other", CreatedAt: time.Now()})
		if !errors.Is(err, ErrDuplicateCode) {
			t.Fatalf("error = %v, want ErrDuplicateCode", err)
		}
		if errx.KindOf(err) != errx.Conflict {
			t.Errorf("KindOf() = %v, want Conflict", errx.KindOf(err))
		}
	})

	t.Run("second active anonymous link for the same target", func(t *testing.T) {
		_, err := repo.Insert(t.Context(), NewLink{Code: "code002", Target: "https://example.com/x", CreatedAt: time.Now()})
		if !errors.Is(err, ErrDuplicateTarget) {
			t.Fatalf("error = %v, want ErrDuplicateTarget", err)
		}
	})

	t.Run("different owners may share a target", func(t *testing.T) {
		mustInsert(t, repo, NewLink{Code: "alice01", Target: "https://example.com/x", OwnerID: &alice})
		mustInsert(t, repo, NewLink{Code: "bob0001", Target: "https://example.com/x", OwnerID: &bob})

		_, err := repo.Insert(t.Context(), NewLink{Code: "alice02", Target: "https://example.com/x", OwnerID: &alice, CreatedAt: time.Now()})
		if !errors.Is(err, ErrDuplicateTarget) {
			t.Errorf("error = %v, want ErrDuplicateTarget", err)
		}
	})

	t.Run("deactivated link frees the target but not the code", func(t *testing.T) {
		if ok, err := repo.DeactivateExpired(t.Context(), "code001", time.Now()); err != nil || !ok {
			t.Fatalf("DeactivateExpired() = %v, %v", ok, err)
		}
		mustInsert(t, repo, NewLink{Code: "code003", Target: "https://example.com/x"})

		_, err := repo.Insert(t.Context(), NewLink{Code: "code001", Target: "https://example.com/y", CreatedAt: time.Now()})
		if !errors.Is(err, ErrDuplicateCode) {
			t.Errorf("error = %v, want ErrDuplicateCode for a retired code", err)
		}
	})

	t.Run("find active by target and owner", func(t *testing.T) {
		anon, err := repo.FindActiveByTargetAndOwner(t.Context(), "https://example.com/x", nil)
		if err != nil || anon.Code != "code003" {
			t.Errorf("anonymous lookup = %+v, %v; want code003", anon, err)
		}
		owned, err := repo.FindActiveByTargetAndOwner(t.Context(), "https://example.com/x", &bob)
		if err != nil || owned.Code != "bob0001" {
			t.Errorf("owned lookup = %+v, %v; want bob0001", owned, err)
		}
		_, err = repo.FindActiveByTargetAndOwner(t.Context(), "https://example.com/none", nil)
		if errx.KindOf(err) != errx.NotFound {
			t.Errorf("KindOf() = %v, want NotFound", errx.KindOf(err))
		}
	})
}

/***************
 * Conditional Updates
 ***************/

func TestSQLiteRepo_ConditionalUpdates(t *testing.T) {
	conn := newTestDB(t)
	repo := NewSQLiteRepository(conn, nil)
	owner := insertUser(t, conn)
	stranger := insertUser(t, conn)

	mustInsert(t, repo, NewLink{Code: "own0001", Target: "https://example.com/1", OwnerID: &owner})

	t.Run("increment counts only active links", func(t *testing.T) {
		if ok, err := repo.IncrementClicks(t.Context(), "own0001"); err != nil || !ok {
			t.Fatalf("IncrementClicks() = %v, %v", ok, err)
		}
		if ok, _ := repo.IncrementClicks(t.Context(), "missing"); ok {
			t.Error("IncrementClicks() on unknown code reported an update")
		}
	})

	t.Run("expiry changes only for the owner", func(t *testing.T) {
		at := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		if ok, _ := repo.SetExpiresAt(t.Context(), "own0001", stranger, &at); ok {
			t.Error("stranger changed the expiry")
		}
		if ok, err := repo.SetExpiresAt(t.Context(), "own0001", owner, &at); err != nil || !ok {
			t.Fatalf("SetExpiresAt() = %v, %v", ok, err)
		}
		got, _ := repo.FindByCode(t.Context(), "own0001")
		if got.ExpiresAt == nil || !got.ExpiresAt.Equal(at) {
			t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, at)
		}
		if ok, _ := repo.SetExpiresAt(t.Context(), "own0001", owner, nil); !ok {
			t.Error("clearing expiry failed")
		}
		got, _ = repo.FindByCode(t.Context(), "own0001")
		if got.ExpiresAt != nil {
			t.Errorf("ExpiresAt = %v, want nil", got.ExpiresAt)
		}
	})

	t.Run("expired retirement honours the stored expiry", func(t *testing.T) {
		now := time.Now()
		mustInsert(t, repo, NewLink{Code: "exp0001", Target: "https://example.com/exp", OwnerID: &owner, ExpiresAt: ptr(now.Add(-time.Hour))})

		if ok, err := repo.SetExpiresAt(t.Context(), "exp0001", owner, nil); err != nil || !ok {
			t.Fatalf("SetExpiresAt() = %v, %v", ok, err)
		}
		if ok, _ := repo.DeactivateExpired(t.Context(), "exp0001", now); ok {
			t.Error("DeactivateExpired() retired a link with no expiry")
		}

		later := now.Add(time.Hour)
		if ok, _ := repo.SetExpiresAt(t.Context(), "exp0001", owner, &later); !ok {
			t.Fatal("extending expiry failed")
		}
		if ok, _ := repo.DeactivateExpired(t.Context(), "exp0001", now); ok {
			t.Error("DeactivateExpired() retired a link expiring in the future")
		}
		if ok, _ := repo.DeactivateExpired(t.Context(), "exp0001", later); ok {
			t.Error("DeactivateExpired() retired a link at its exact expiry")
		}

		if ok, err := repo.DeactivateExpired(t.Context(), "exp0001", later.Add(time.Second)); err != nil || !ok {
			t.Fatalf("DeactivateExpired() past expiry = %v, %v", ok, err)
		}
		if ok, _ := repo.DeactivateExpired(t.Context(), "exp0001", later.Add(time.Second)); ok {
			t.Error("second DeactivateExpired() reported an update")
		}
	})

	t.Run("delete only by the owner and only once", func(t *testing.T) {
		if ok, _ := repo.DeactivateOwned(t.Context(), "own0001", stranger); ok {
			t.Error("stranger deleted the link")
		}
		if ok, err := repo.DeactivateOwned(t.Context(), "own0001", owner); err != nil || !ok {
			t.Fatalf("DeactivateOwned() = %v, %v", ok, err)
		}
		if ok, _ := repo.DeactivateOwned(t.Context(), "own0001", owner); ok {
			t.Error("second delete reported an update")
		}
	})

	t.Run("inactive link keeps its clicks and rejects updates", func(t *testing.T) {
		if ok, _ := repo.IncrementClicks(t.Context(), "own0001"); ok {
			t.Error("IncrementClicks() counted an inactive link")
		}
		if ok, _ := repo.SetExpiresAt(t.Context(), "own0001", owner, nil); ok {
			t.Error("SetExpiresAt() changed an inactive link")
		}
		got, _ := repo.FindByCode(t.Context(), "own0001")
		if got.Active || got.Clicks != 1 {
			t.Errorf("link = %+v, want inactive with 1 click", got)
		}
	})
}

func TestSQLiteRepo_ListByOwner(t *testing.T) {
	conn := newTestDB(t)
	repo := NewSQLiteRepository(conn, nil)
	owner := insertUser(t, conn)
	other := insertUser(t, conn)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	mustInsert(t, repo, NewLink{Code: "first01", Target: "https://example.com/1", OwnerID: &owner, CreatedAt: base})
	mustInsert(t, repo, NewLink{Code: "second1", Target: "https://example.com/2", OwnerID: &owner, CreatedAt: base.Add(time.Minute)})
	mustInsert(t, repo, NewLink{Code: "third01", Target: "https://example.com/3", OwnerID: &owner, CreatedAt: base.Add(time.Minute)})
	mustInsert(t, repo, NewLink{Code: "other01", Target: "https://example.com/1", OwnerID: &other, CreatedAt: base})
	mustInsert(t, repo, NewLink{Code: "anon001", Target: "https://example.com/1", CreatedAt: base})
	if _, err := repo.DeactivateOwned(t.Context(), "first01", owner); err != nil {
		t.Fatalf("DeactivateOwned(): %v", err)
	}

	links, err := repo.ListByOwner(t.Context(), owner)
	if err != nil {
		t.Fatalf("ListByOwner() unexpected error: %v", err)
	}

	// Same timestamp ties break on the time-ordered id, so the later insert wins.
	want := []string{"third01", "second1", "first01"}
	if len(links) != len(want) {
		t.Fatalf("len = %d, want %d", len(links), len(want))
	}
	for i, code := range want {
		if links[i].Code != code {
			t.Errorf("links[%d] = %s, want %s", i, links[i].Code, code)
		}
	}
	if links[2].Active {
		t.Error("deleted link should be listed as inactive")
	}

	empty, err := repo.ListByOwner(t.Context(), uuid.New())
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("ListByOwner(unknown) = %v, %v; want empty slice", empty, err)
	}
}

/***************
 * Concurrency
 ***************/

func TestSQLiteRepo_ConcurrentIncrements(t *testing.T) {
	conn := newTestDB(t)
	repo := NewSQLiteRepository(conn, nil)
	mustInsert(t, repo, NewLink{Code: "hot0001", Target: "https://example.com"})

	const n = 50
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.IncrementClicks(context.Background(), "hot0001"); err != nil {
				t.Errorf("IncrementClicks(): %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := repo.FindByCode(t.Context(), "hot0001")
	if err != nil {
		t.Fatalf("FindByCode(): %v", err)
	}
	if got.Clicks != n {
		t.Errorf("Clicks = %d, want %d", got.Clicks, n)
	}
}

func TestSQLiteRepo_ConcurrentDeactivate(t *testing.T) {
	conn := newTestDB(t)
	repo := NewSQLiteRepository(conn, nil)
	mustInsert(t, repo, NewLink{Code: "race001", Target: "https://example.com", ExpiresAt: ptr(time.Now().Add(-time.Minute))})
	now := time.Now()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.DeactivateExpired(context.Background(), "race001", now)
			if err != nil {
				t.Errorf("DeactivateExpired(): %v", err)
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("%d callers flipped the link, want exactly 1", wins.Load())
	}
}

// clearOnReadRepo clears the owner's expiry right after the first lookup,
// standing in for an owner request that lands between read and retire.
type clearOnReadRepo struct {
	Repository
	owner uuid.UUID
	once  sync.Once
}

func (r *clearOnReadRepo) FindByCode(ctx context.Context, code string) (Link, error) {
	link, err := r.Repository.FindByCode(ctx, code)
	r.once.Do(func() {
		_, _ = r.Repository.SetExpiresAt(ctx, code, r.owner, nil)
	})
	return link, err
}

func TestSQLiteRepo_ResolveKeepsLinkWhoseExpiryWasCleared(t *testing.T) {
	conn := newTestDB(t)
	owner := insertUser(t, conn)
	base := NewSQLiteRepository(conn, nil)

	clock := newFakeClock()
	expires := clock.Now().Add(time.Hour)
	mustInsert(t, base, NewLink{Code: "keep001", Target: "https://example.com/keep", OwnerID: &owner, CreatedAt: clock.Now(), ExpiresAt: &expires})
	clock.Advance(2 * time.Hour)

	svc := newTestService(&clearOnReadRepo{Repository: base, owner: owner}, nil, clock)
	target, err := svc.Resolve(t.Context(), "keep001")
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}
	if target != "https://example.com/keep" {
		t.Errorf("target = %q, want https://example.com/keep", target)
	}

	got, err := base.FindByCode(t.Context(), "keep001")
	if err != nil {
		t.Fatalf("FindByCode(): %v", err)
	}
	if !got.Active || got.ExpiresAt != nil || got.Clicks != 1 {
		t.Errorf("link = %+v, want active, no expiry, 1 click", got)
	}
}
