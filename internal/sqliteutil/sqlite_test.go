package sqliteutil

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryOnBusyRetriesBusyErrors(t *testing.T) {
	calls := 0
	err := RetryOnBusy(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RetryOnBusy returned %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryOnBusyStopsOnOtherErrors(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := RetryOnBusy(context.Background(), func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("expected single call with boom, got %d calls err=%v", calls, err)
	}
}

func TestRetryOnBusyGivesUp(t *testing.T) {
	calls := 0
	err := RetryOnBusy(context.Background(), func() error {
		calls++
		return errors.New("SQLITE_BUSY")
	})
	if err == nil || calls != busyRetryAttempts {
		t.Fatalf("expected %d attempts and an error, got %d err=%v", busyRetryAttempts, calls, err)
	}
}

func TestTimeRoundTripSortsLexically(t *testing.T) {
	a := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	b := a.Add(500 * time.Millisecond)
	if !(FormatTime(a) < FormatTime(b)) {
		t.Fatalf("expected %s < %s", FormatTime(a), FormatTime(b))
	}
	parsed, err := ParseTime(FormatTime(b))
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	if !parsed.Equal(b) {
		t.Fatalf("round trip mismatch: %v vs %v", parsed, b)
	}
}

func TestPlaceholders(t *testing.T) {
	cases := map[int]string{0: "", 1: "?", 3: "?, ?, ?"}
	for n, want := range cases {
		if got := Placeholders(n); got != want {
			t.Fatalf("Placeholders(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestOpenAppliesPragmas(t *testing.T) {
	db, err := Open(t.TempDir() + "/nested/test.db")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query pragma: %v", err)
	}
	if fk != 1 {
		t.Fatalf("expected foreign keys on, got %d", fk)
	}
}
