package policy

import (
	"context"
	"errors"
	"testing"
)

// scriptedSource returns its queued results in order.
type scriptedSource struct {
	results []Set
	errs    []error
	calls   int
}

func (s *scriptedSource) Name() string { return "scripted:test" }

func (s *scriptedSource) Load(ctx context.Context) (Set, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return Set{}, s.errs[i]
	}
	return s.results[i], nil
}

func mustParse(t *testing.T, doc string) Set {
	t.Helper()
	set, err := ParseDocument([]byte(doc))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	return set
}

func TestStore_RefreshKeepsLastKnownGood(t *testing.T) {
	first := mustParse(t, "vol-1:\n  interval: daily\n  max_snapshots: 3\n")
	src := &scriptedSource{
		results: []Set{first, {}},
		errs:    []error{nil, errors.New("parse error")},
	}
	store := NewStore(src)

	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	if err := store.Refresh(context.Background()); err == nil {
		t.Fatal("second Refresh should fail")
	}

	p, ok := store.Get("vol-1")
	if !ok || p.MaxSnapshots != 3 {
		t.Fatalf("Get(vol-1) = %+v, %v; want last known good policy", p, ok)
	}

	lastRefresh, lastErr := store.Status()
	if lastRefresh.IsZero() {
		t.Error("lastRefresh should be set after a successful load")
	}
	if lastErr == nil {
		t.Error("lastErr should report the failed attempt")
	}
}

func TestStore_RegisterAndDeregister(t *testing.T) {
	src := &scriptedSource{results: []Set{mustParse(t, "vol-file:\n  interval: weekly\n")}}
	store := NewStore(src)
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if err := store.Register(Policy{VolumeID: "vol-api", Interval: IntervalHourly, MaxSnapshots: 5}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := store.Register(Policy{VolumeID: "vol-bad", Interval: "daily-ish"}); !IsConfigError(err) {
		t.Fatalf("Register(invalid) = %v, want ConfigError", err)
	}

	set := store.Snapshot()
	if len(set.Policies) != 2 {
		t.Fatalf("got %d policies, want 2", len(set.Policies))
	}

	// Registered entries override the document.
	if err := store.Register(Policy{VolumeID: "vol-file", Interval: IntervalDaily}); err != nil {
		t.Fatalf("Register override: %v", err)
	}
	if p, _ := store.Get("vol-file"); p.Interval != IntervalDaily {
		t.Errorf("vol-file interval = %s, want daily", p.Interval)
	}

	if !store.Deregister("vol-file") {
		t.Error("Deregister(vol-file) = false, want true")
	}
	if _, ok := store.Get("vol-file"); ok {
		t.Error("vol-file should be gone after Deregister")
	}
	if store.Deregister("vol-file") {
		t.Error("second Deregister should report absence")
	}
	if store.Deregister("vol-unknown") {
		t.Error("Deregister of unknown volume should report absence")
	}

	if !store.Deregister("vol-api") {
		t.Error("Deregister(vol-api) = false, want true")
	}
	if got := store.Snapshot().Len(); got != 0 {
		t.Errorf("Len() = %d, want 0", got)
	}
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	store := NewStore(nil)
	if err := store.Register(Policy{VolumeID: "vol-1", Interval: IntervalDaily}); err != nil {
		t.Fatal(err)
	}

	set := store.Snapshot()
	delete(set.Policies, "vol-1")

	if _, ok := store.Get("vol-1"); !ok {
		t.Error("mutating a snapshot must not change the store")
	}
	if err := store.Refresh(context.Background()); err != nil {
		t.Errorf("Refresh without source = %v, want nil", err)
	}
	if store.SourceName() != "none" {
		t.Errorf("SourceName() = %q", store.SourceName())
	}
}
