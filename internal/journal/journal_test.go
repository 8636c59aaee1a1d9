package journal

import (
	"context"
	"testing"
	"time"

	"github.com/Brownie44l1/ningapi/internal/model"
)

func openMem(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(Options{InMemory: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func result(denom string, conf float64, at time.Time) *model.ClassificationResult {
	return &model.ClassificationResult{
		Denomination: denom,
		Currency:     model.CurrencyOf(denom),
		Confidence:   conf,
		Timestamp:    at,
	}
}

func TestRecordRecent(t *testing.T) {
	j := openMem(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	records := []struct {
		session string
		denom   string
		at      time.Time
	}{
		{"s1", "1000FC", base},
		{"s2", "20$", base.Add(time.Second)},
		{"s1", "50FC", base.Add(2 * time.Second)},
	}
	for _, r := range records {
		if err := j.Record(ctx, r.session, result(r.denom, 0.9, r.at)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := j.Recent(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("Recent returned %d entries, want 3", len(got))
	}
	want := []string{"50FC", "20$", "1000FC"}
	for i, e := range got {
		if e.Denomination != want[i] {
			t.Errorf("entry %d = %s, want %s", i, e.Denomination, want[i])
		}
	}
	if got[1].Currency != "USD" || got[1].SessionID != "s2" {
		t.Errorf("entry 1 = %+v", got[1])
	}
	if !got[2].Timestamp.Equal(base) {
		t.Errorf("timestamp = %v, want %v", got[2].Timestamp, base)
	}
}

func TestRecentLimit(t *testing.T) {
	j := openMem(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := j.Record(ctx, "s", result("100FC", 0.5, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	got, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d entries", len(got))
	}
	if !got[0].Timestamp.Equal(base.Add(4 * time.Minute)) {
		t.Errorf("newest entry at %v", got[0].Timestamp)
	}
}

func TestRecentEmpty(t *testing.T) {
	got, err := openMem(t).Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("empty journal returned %d entries", len(got))
	}
}

func TestOpenRequiresDir(t *testing.T) {
	if _, err := Open(Options{}); err == nil {
		t.Fatal("expected error without Dir")
	}
}

func TestRecordNil(t *testing.T) {
	if err := openMem(t).Record(context.Background(), "s", nil); err == nil {
		t.Fatal("expected error for nil result")
	}
}

func TestOnDisk(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(Options{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := j.Record(context.Background(), "s", result("5$", 0.8, at)); err != nil {
		t.Fatal(err)
	}
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}

	j, err = Open(Options{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	got, err := j.Recent(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Denomination != "5$" {
		t.Fatalf("reopened journal = %+v", got)
	}
}
