package cdn

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := OpenLedger(filepath.Join(t.TempDir(), "state", "uploads.db"))
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedgerRecordAndLookup(t *testing.T) {
	l := newTestLedger(t)

	if _, ok, err := l.Lookup("bunny:zone", "index.html"); err != nil || ok {
		t.Fatalf("Lookup on empty ledger = ok %v, err %v", ok, err)
	}

	if err := l.Record("bunny:zone", "index.html", "abc", 10); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Record("bunny:zone", "index.html", "def", 12); err != nil {
		t.Fatalf("Record overwrite: %v", err)
	}

	sum, ok, err := l.Lookup("bunny:zone", "index.html")
	if err != nil || !ok {
		t.Fatalf("Lookup = ok %v, err %v", ok, err)
	}
	if sum != "def" {
		t.Fatalf("expected latest digest def, got %q", sum)
	}

	if _, ok, _ := l.Lookup("s3:bucket", "index.html"); ok {
		t.Fatalf("targets must not share entries")
	}
}

func TestLedgerResetAndList(t *testing.T) {
	l := newTestLedger(t)
	for _, key := range []string{"b.css", "a.html"} {
		if err := l.Record("t1", key, "x", 1); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := l.Record("t2", "a.html", "y", 1); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := l.List("t1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].Key != "a.html" || entries[1].Key != "b.css" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].UploadedAt == "" {
		t.Fatalf("expected uploaded_at to be set")
	}

	if err := l.Reset("t1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if entries, _ := l.List("t1"); len(entries) != 0 {
		t.Fatalf("expected t1 to be empty after reset, got %d", len(entries))
	}
	if entries, _ := l.List("t2"); len(entries) != 1 {
		t.Fatalf("reset must not touch other targets, got %d", len(entries))
	}
}

func TestLedgerConcurrentRecords(t *testing.T) {
	l := newTestLedger(t)
	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := filepath.ToSlash(filepath.Join("img", string(rune('a'+i%26)), "f"))
			if err := l.Record("t", key+string(rune('0'+i/26)), "sum", int64(i)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Record: %v", err)
	}
	entries, err := l.List("t")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 50 {
		t.Fatalf("expected 50 entries, got %d", len(entries))
	}
}

func TestFormatEntries(t *testing.T) {
	l := newTestLedger(t)
	if err := l.Record("t", "site/index.html", "0123456789abcdef0123", 2048); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Record("t", "site/img/a.jpg", "fedcba", 1000); err != nil {
		t.Fatalf("Record: %v", err)
	}
	entries, err := l.List("t")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	out := FormatEntries(entries)
	for _, want := range []string{"site/index.html", "site/img/a.jpg", "2.0 kB", "2 files, 3.0 kB"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatEntries output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "0123456789abcdef0123") {
		t.Errorf("digest not shortened:\n%s", out)
	}
}
