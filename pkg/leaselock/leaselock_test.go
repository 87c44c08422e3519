package leaselock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	key string
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.key
	return nil
}

// fakeDB emulates app_locks for a single key.
type fakeDB struct {
	mu       sync.Mutex
	holder   string
	attempts int
	releases int
	freeOn   int
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.Contains(sql, "DELETE FROM app_locks") && f.holder == args[1].(string) {
		f.holder = ""
		f.releases++
	}
	return pgconn.NewCommandTag("DELETE 1"), nil
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, token := args[0].(string), args[1].(string)

	if strings.Contains(sql, "INSERT INTO app_locks") {
		f.attempts++
		if f.freeOn > 0 && f.attempts >= f.freeOn {
			f.holder = ""
		}
		if f.holder != "" && f.holder != token {
			return fakeRow{err: pgx.ErrNoRows}
		}
		f.holder = token
		return fakeRow{key: key}
	}
	if f.holder != token {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{key: key}
}

func TestOptionsNormalized(t *testing.T) {
	tests := []struct {
		name string
		in   Options
		want Options
	}{
		{
			name: "defaults",
			in:   Options{},
			want: Options{TTL: 5 * time.Minute, RenewEvery: 150 * time.Second, WaitInterval: 250 * time.Millisecond},
		},
		{
			name: "renew not shorter than ttl",
			in:   Options{TTL: 10 * time.Second, RenewEvery: 20 * time.Second, WaitJitter: -1},
			want: Options{TTL: 10 * time.Second, RenewEvery: 5 * time.Second, WaitInterval: 250 * time.Millisecond},
		},
		{
			name: "tiny ttl renews every second",
			in:   Options{TTL: time.Second},
			want: Options{TTL: time.Second, RenewEvery: time.Second, WaitInterval: 250 * time.Millisecond},
		},
		{
			name: "kept",
			in:   Options{TTL: time.Minute, RenewEvery: 10 * time.Second, WaitInterval: time.Second, WaitJitter: time.Second},
			want: Options{TTL: time.Minute, RenewEvery: 10 * time.Second, WaitInterval: time.Second, WaitJitter: time.Second},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.in.normalized(); got != tc.want {
				t.Fatalf("normalized() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestWithLeaseRunsAndReleases(t *testing.T) {
	db := &fakeDB{}
	c := New(db)

	ran := false
	err := c.WithLease(context.Background(), OrganizationKey("org1"), Options{TTL: time.Minute}, func(ctx context.Context) error {
		ran = true
		if ctx.Err() != nil {
			t.Fatalf("lease context already done")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithLease() error = %v", err)
	}
	if !ran || db.releases != 1 || db.holder != "" {
		t.Fatalf("ran=%v releases=%d holder=%q", ran, db.releases, db.holder)
	}
}

func TestWithOrganizationLease(t *testing.T) {
	db := &fakeDB{}
	c := New(db)

	var token string
	err := c.WithOrganizationLease(context.Background(), "org7", func(ctx context.Context) error {
		token = db.holder
		return nil
	})
	if err != nil {
		t.Fatalf("WithOrganizationLease() error = %v", err)
	}
	if !strings.HasPrefix(token, "analysis-") {
		t.Fatalf("lease token = %q, want analysis- prefix", token)
	}
	if db.releases != 1 {
		t.Fatalf("releases = %d, want 1", db.releases)
	}

	for _, org := range []string{"", "  "} {
		err := c.WithOrganizationLease(context.Background(), org, func(ctx context.Context) error {
			t.Fatalf("fn ran without an organization")
			return nil
		})
		if !errors.Is(err, ErrNoOrganization) {
			t.Fatalf("WithOrganizationLease(%q) error = %v, want ErrNoOrganization", org, err)
		}
	}
}

func TestWithOrganizationLeaseWaitsForRunningBatch(t *testing.T) {
	db := &fakeDB{holder: "analysis-other", freeOn: 2}
	ran := false
	err := New(db).WithOrganizationLease(context.Background(), "org7", func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("WithOrganizationLease() ran=%v err=%v", ran, err)
	}
	if db.attempts != 2 {
		t.Fatalf("attempts = %d, want 2", db.attempts)
	}
}

func TestAnalysisOptions(t *testing.T) {
	got := AnalysisOptions().normalized()
	if !got.Wait || got.TTL != 2*time.Minute || got.RenewEvery != time.Minute {
		t.Fatalf("AnalysisOptions() = %+v", got)
	}
}

func TestAcquireBusy(t *testing.T) {
	db := &fakeDB{holder: "someone-else"}
	_, err := New(db).Acquire(context.Background(), "k", Options{})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("Acquire() error = %v, want ErrBusy", err)
	}
}

func TestAcquireWaitsUntilFree(t *testing.T) {
	db := &fakeDB{holder: "someone-else", freeOn: 3}
	lease, err := New(db).Acquire(context.Background(), "k", Options{Wait: true, WaitInterval: time.Millisecond})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer lease.Release(context.Background())

	if db.attempts != 3 {
		t.Fatalf("attempts = %d, want 3", db.attempts)
	}
}

func TestAcquireWaitHonoursContext(t *testing.T) {
	db := &fakeDB{holder: "someone-else"}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := New(db).Acquire(ctx, "k", Options{Wait: true, WaitInterval: 5 * time.Millisecond})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Acquire() error = %v, want DeadlineExceeded", err)
	}
}

func TestReleaseCancelsLeaseContext(t *testing.T) {
	lease, err := New(&fakeDB{}).Acquire(context.Background(), "k", Options{})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := lease.Release(context.Background()); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	select {
	case <-lease.Context.Done():
	case <-time.After(time.Second):
		t.Fatalf("lease context not canceled after release")
	}
	if err := lease.Release(context.Background()); err != nil {
		t.Fatalf("second Release() error = %v", err)
	}
}

func TestEmptyKey(t *testing.T) {
	if _, err := New(&fakeDB{}).Acquire(context.Background(), "", Options{}); err == nil {
		t.Fatalf("Acquire() with empty key should fail")
	}
}
