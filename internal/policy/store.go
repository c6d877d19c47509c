package policy

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Store holds the active policy set. It is created explicitly and handed to
// whoever needs it; there is no process-wide instance.
//
// The set is assembled from two layers:
//  1. The last document successfully loaded from the Source.
//  2. Policies registered or deregistered at runtime (for example through the
//     HTTP API), which override the document until the process exits.
type Store struct {
	source Source

	mu           sync.RWMutex
	loaded       Set
	registered   map[string]Policy
	deregistered map[string]struct{}
	lastRefresh  time.Time
	lastErr      error
}

// NewStore returns an empty store backed by source. A nil source is allowed
// for stores populated only through Register.
func NewStore(source Source) *Store {
	return &Store{
		source:       source,
		loaded:       NewSet(),
		registered:   make(map[string]Policy),
		deregistered: make(map[string]struct{}),
	}
}

// Refresh reloads the document from the source. On failure the previously
// loaded set stays active and the error is returned for reporting.
func (s *Store) Refresh(ctx context.Context) error {
	if s.source == nil {
		return nil
	}

	set, err := s.source.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err
		return err
	}
	s.loaded = set
	s.lastRefresh = time.Now().UTC()
	s.lastErr = nil
	return nil
}

// Snapshot returns a copy of the effective policy set.
func (s *Store) Snapshot() Set {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.loaded.Clone()
	for id := range s.deregistered {
		delete(out.Policies, id)
		delete(out.Rejected, id)
	}
	for id, p := range s.registered {
		out.Policies[id] = p
		delete(out.Rejected, id)
	}
	return out
}

// Get returns the effective policy of one volume.
func (s *Store) Get(volumeID string) (Policy, bool) {
	p, ok := s.Snapshot().Policies[volumeID]
	return p, ok
}

// Register adds or replaces the policy of a volume after validating it.
func (s *Store) Register(p Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered[p.VolumeID] = p
	delete(s.deregistered, p.VolumeID)
	return nil
}

// Deregister removes a volume from the effective set. It reports whether the
// volume was present.
func (s *Store) Deregister(volumeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, inRegistered := s.registered[volumeID]
	_, inPolicies := s.loaded.Policies[volumeID]
	_, inRejected := s.loaded.Rejected[volumeID]
	_, gone := s.deregistered[volumeID]

	existed := inRegistered || ((inPolicies || inRejected) && !gone)
	if !existed {
		return false
	}

	delete(s.registered, volumeID)
	if inPolicies || inRejected {
		s.deregistered[volumeID] = struct{}{}
	}
	return true
}

// Status reports when the source was last loaded successfully and the error
// of the most recent attempt, if it failed.
func (s *Store) Status() (lastRefresh time.Time, lastErr error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefresh, s.lastErr
}

// SourceName describes the backing source, or "none".
func (s *Store) SourceName() string {
	if s.source == nil {
		return "none"
	}
	return s.source.Name()
}

// ErrUnknownVolume is returned when a volume has no policy in the store.
var ErrUnknownVolume = errors.New("volume has no registered policy")
