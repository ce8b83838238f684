package shortener

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/shortly/internal/errx"
	"github.com/sundayezeilo/shortly/sluggen"
)

// newStoreService wires the service to a fresh in-memory SQLite store.
func newStoreService(t *testing.T, clock *fakeClock) (Service, Repository, *fakeClock) {
	t.Helper()
	if clock == nil {
		clock = newFakeClock()
	}
	repo := NewSQLiteRepository(newTestDB(t), nil)
	return NewService(repo, &ServiceConfig{Clock: clock.Now}), repo, clock
}

func TestScenario_AnonymousShortenAndResolve(t *testing.T) {
	svc, _, _ := newStoreService(t, nil)
	ctx := t.Context()

	res, err := svc.Shorten(ctx, ShortenRequest{Target: "https://example.com/page"})
	if err != nil {
		t.Fatalf("Shorten(): %v", err)
	}
	if len(res.Link.Code) != sluggen.DefaultLength || !sluggen.Valid(res.Link.Code) {
		t.Errorf("code %q is not a 7 character url-safe code", res.Link.Code)
	}

	for range 3 {
		target, err := svc.Resolve(ctx, res.Link.Code)
		if err != nil {
			t.Fatalf("Resolve(): %v", err)
		}
		if target != "https://example.com/page" {
			t.Errorf("target = %q", target)
		}
	}

	stats, err := svc.Stats(ctx, res.Link.Code)
	if err != nil {
		t.Fatalf("Stats(): %v", err)
	}
	if stats.Clicks != 3 {
		t.Errorf("Clicks = %d, want 3", stats.Clicks)
	}

	again, err := svc.Shorten(ctx, ShortenRequest{Target: "https://example.com/page"})
	if err != nil {
		t.Fatalf("second Shorten(): %v", err)
	}
	if !again.Reused || again.Link.Code != res.Link.Code {
		t.Errorf("second Shorten() = %+v, want reuse of %s", again, res.Link.Code)
	}
}

func TestScenario_OwnedLinkExpires(t *testing.T) {
	svc, repo, clock := newStoreService(t, nil)
	conn := repo.(*sqliteRepo).db
	owner := insertUser(t, conn)
	ctx := t.Context()

	res, err := svc.Shorten(ctx, ShortenRequest{Target: "https://example.com/soon", Owner: &owner, ExpiresIn: "1h"})
	if err != nil {
		t.Fatalf("Shorten(): %v", err)
	}
	code := res.Link.Code

	clock.Advance(59 * time.Minute)
	if _, err := svc.Resolve(ctx, code); err != nil {
		t.Fatalf("Resolve() before expiry: %v", err)
	}

	clock.Advance(2 * time.Hour)
	_, err = svc.Resolve(ctx, code)
	if errx.KindOf(err) != errx.Gone {
		t.Fatalf("first Resolve() after expiry: KindOf = %v, want Gone", errx.KindOf(err))
	}
	_, err = svc.Resolve(ctx, code)
	if errx.KindOf(err) != errx.NotFound {
		t.Fatalf("second Resolve() after expiry: KindOf = %v, want NotFound", errx.KindOf(err))
	}

	stats, err := svc.Stats(ctx, code)
	if err != nil {
		t.Fatalf("Stats(): %v", err)
	}
	if stats.Active || stats.Clicks != 1 {
		t.Errorf("Stats() = %+v, want inactive with 1 click", stats)
	}

	fresh, err := svc.Shorten(ctx, ShortenRequest{Target: "https://example.com/soon", Owner: &owner})
	if err != nil {
		t.Fatalf("Shorten() after expiry: %v", err)
	}
	if fresh.Reused || fresh.Link.Code == code {
		t.Error("an expired link must not be reused")
	}
}

func TestScenario_ExpiredButUnvisitedLinkIsReplaced(t *testing.T) {
	svc, repo, clock := newStoreService(t, nil)
	owner := insertUser(t, repo.(*sqliteRepo).db)
	ctx := t.Context()

	first, err := svc.Shorten(ctx, ShortenRequest{Target: "https://example.com/e", Owner: &owner, ExpiresIn: "1h"})
	if err != nil {
		t.Fatalf("Shorten(): %v", err)
	}
	clock.Advance(3 * time.Hour)

	second, err := svc.Shorten(ctx, ShortenRequest{Target: "https://example.com/e", Owner: &owner})
	if err != nil {
		t.Fatalf("Shorten() after expiry: %v", err)
	}
	if second.Reused || second.Link.Code == first.Link.Code {
		t.Fatalf("got %+v, want a new code", second)
	}

	old, _ := svc.Stats(ctx, first.Link.Code)
	if old.Active {
		t.Error("expired link still active after being replaced")
	}
	if _, err := svc.Resolve(ctx, first.Link.Code); errx.KindOf(err) != errx.NotFound {
		t.Errorf("Resolve(old) KindOf = %v, want NotFound", errx.KindOf(err))
	}
}

func TestScenario_OwnershipIsolation(t *testing.T) {
	svc, repo, _ := newStoreService(t, nil)
	conn := repo.(*sqliteRepo).db
	alice := insertUser(t, conn)
	bob := insertUser(t, conn)
	ctx := t.Context()

	aliceLink, err := svc.Shorten(ctx, ShortenRequest{Target: "https://example.com/shared", Owner: &alice})
	if err != nil {
		t.Fatalf("Shorten(alice): %v", err)
	}
	bobLink, err := svc.Shorten(ctx, ShortenRequest{Target: "https://example.com/shared", Owner: &bob})
	if err != nil {
		t.Fatalf("Shorten(bob): %v", err)
	}
	anonLink, err := svc.Shorten(ctx, ShortenRequest{Target: "https://example.com/shared"})
	if err != nil {
		t.Fatalf("Shorten(anon): %v", err)
	}
	if aliceLink.Link.Code == bobLink.Link.Code || aliceLink.Link.Code == anonLink.Link.Code {
		t.Error("different owners must get different links")
	}

	if err := svc.Delete(ctx, aliceLink.Link.Code, bob); errx.KindOf(err) != errx.NotFound {
		t.Errorf("Delete by non-owner: KindOf = %v, want NotFound", errx.KindOf(err))
	}
	if err := svc.UpdateExpiry(ctx, aliceLink.Link.Code, bob, "1h"); errx.KindOf(err) != errx.NotFound {
		t.Errorf("UpdateExpiry by non-owner: KindOf = %v, want NotFound", errx.KindOf(err))
	}
	if err := svc.Delete(ctx, anonLink.Link.Code, alice); errx.KindOf(err) != errx.NotFound {
		t.Errorf("Delete of anonymous link: KindOf = %v, want NotFound", errx.KindOf(err))
	}

	if err := svc.Delete(ctx, aliceLink.Link.Code, alice); err != nil {
		t.Fatalf("Delete by owner: %v", err)
	}
	if _, err := svc.Resolve(ctx, aliceLink.Link.Code); errx.KindOf(err) != errx.NotFound {
		t.Errorf("Resolve after delete: KindOf = %v, want NotFound", errx.KindOf(err))
	}
	if err := svc.Delete(ctx, aliceLink.Link.Code, alice); errx.KindOf(err) != errx.NotFound {
		t.Errorf("second Delete: KindOf = %v, want NotFound", errx.KindOf(err))
	}

	mine, err := svc.ListByOwner(ctx, bob)
	if err != nil {
		t.Fatalf("ListByOwner(bob): %v", err)
	}
	if len(mine) != 1 || mine[0].Code != bobLink.Link.Code {
		t.Errorf("ListByOwner(bob) = %+v", mine)
	}
}

func TestScenario_UpdateExpiry(t *testing.T) {
	svc, repo, clock := newStoreService(t, nil)
	owner := insertUser(t, repo.(*sqliteRepo).db)
	ctx := t.Context()

	res, err := svc.Shorten(ctx, ShortenRequest{Target: "https://example.com/u", Owner: &owner, ExpiresIn: "1h"})
	if err != nil {
		t.Fatalf("Shorten(): %v", err)
	}
	if err := svc.UpdateExpiry(ctx, res.Link.Code, owner, "never"); err != nil {
		t.Fatalf("UpdateExpiry(never): %v", err)
	}

	clock.Advance(48 * time.Hour)
	if _, err := svc.Resolve(ctx, res.Link.Code); err != nil {
		t.Errorf("Resolve() after clearing expiry: %v", err)
	}

	if err := svc.UpdateExpiry(ctx, res.Link.Code, owner, "24h"); err != nil {
		t.Fatalf("UpdateExpiry(24h): %v", err)
	}
	got, _ := svc.Stats(ctx, res.Link.Code)
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(clock.Now().Add(24*time.Hour)) {
		t.Errorf("ExpiresAt = %v, want now+24h", got.ExpiresAt)
	}
}

func TestScenario_ConcurrentShortenSameTarget(t *testing.T) {
	svc, _, _ := newStoreService(t, nil)

	const n = 20
	codes := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Shorten(context.Background(), ShortenRequest{Target: "https://example.com/race"})
			if err != nil {
				t.Errorf("Shorten(): %v", err)
				return
			}
			codes[i] = res.Link.Code
		}()
	}
	wg.Wait()

	for i, c := range codes {
		if c != codes[0] {
			t.Fatalf("codes[%d] = %q, codes[0] = %q; want one shared code", i, c, codes[0])
		}
	}
}

func TestScenario_ConcurrentResolveCountsEveryVisit(t *testing.T) {
	svc, _, _ := newStoreService(t, nil)
	res, err := svc.Shorten(t.Context(), ShortenRequest{Target: "https://example.com/busy"})
	if err != nil {
		t.Fatalf("Shorten(): %v", err)
	}

	const n = 40
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Resolve(context.Background(), res.Link.Code); err != nil {
				t.Errorf("Resolve(): %v", err)
			}
		}()
	}
	wg.Wait()

	stats, _ := svc.Stats(t.Context(), res.Link.Code)
	if stats.Clicks != n {
		t.Errorf("Clicks = %d, want %d", stats.Clicks, n)
	}
}

func TestScenario_ConcurrentExpiredResolveYieldsOneGone(t *testing.T) {
	svc, repo, clock := newStoreService(t, nil)
	owner := insertUser(t, repo.(*sqliteRepo).db)

	res, err := svc.Shorten(t.Context(), ShortenRequest{Target: "https://example.com/x", Owner: &owner, ExpiresIn: "1h"})
	if err != nil {
		t.Fatalf("Shorten(): %v", err)
	}
	clock.Advance(2 * time.Hour)

	var mu sync.Mutex
	kinds := map[errx.Kind]int{}
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Resolve(context.Background(), res.Link.Code)
			mu.Lock()
			kinds[errx.KindOf(err)]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if kinds[errx.Gone] != 1 || kinds[errx.NotFound] != 9 {
		t.Errorf("outcomes = %v, want 1 Gone and 9 NotFound", kinds)
	}
}

func TestScenario_CodesAreUnique(t *testing.T) {
	svc, _, _ := newStoreService(t, nil)
	seen := make(map[string]bool)
	for i := range 200 {
		res, err := svc.Shorten(t.Context(), ShortenRequest{Target: "https://example.com/" + uuid.NewString() + "/" + string(rune('a'+i%26))})
		if err != nil {
			t.Fatalf("Shorten(): %v", err)
		}
		if seen[res.Link.Code] {
			t.Fatalf("code %q issued twice", res.Link.Code)
		}
		seen[res.Link.Code] = true
	}
}
