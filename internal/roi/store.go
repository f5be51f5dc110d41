package roi

import (
	"fmt"
	"sort"
	"sync"
)

// imageBucket holds the ROIs for a single image plus the lock that
// serializes mutation of that image's ROI list and the next-id counter.
type imageBucket struct {
	mu    sync.RWMutex
	rois  []ROI
	nextID int
}

// Store is a thread-safe mapping from image_key to an ordered list of ROIs.
// Concurrent workers may call Add for different image keys without
// contending; per-image operations take that image's lock, and global
// iteration takes a shared read guard over the top-level map (spec.md 4.7,
// 5). This replaces the teacher's global-singleton ROI manager with an
// explicitly constructed, dependency-injected store (spec.md 9).
type Store struct {
	mu      sync.RWMutex
	buckets map[string]*imageBucket
}

// New creates an empty store.
func New() *Store {
	return &Store{buckets: make(map[string]*imageBucket)}
}

func (s *Store) bucket(imageKey string, create bool) *imageBucket {
	s.mu.RLock()
	b, ok := s.buckets[imageKey]
	s.mu.RUnlock()
	if ok || !create {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.buckets[imageKey]; ok {
		return b
	}
	b = &imageBucket{}
	s.buckets[imageKey] = b
	return b
}

// Add inserts roi under imageKey, assigning it the next monotonic id for
// that image. The ROI's own ID and ImageKey fields are overwritten to
// match. IDs are never reused, even after Remove.
func (s *Store) Add(imageKey string, r ROI) int {
	b := s.bucket(imageKey, true)
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	r.ID = id
	r.ImageKey = imageKey
	b.rois = append(b.rois, r)
	return id
}

// GetAll returns a read-only snapshot of all ROIs for imageKey, in
// creation order.
func (s *Store) GetAll(imageKey string) []ROI {
	b := s.bucket(imageKey, false)
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]ROI, len(b.rois))
	copy(out, b.rois)
	return out
}

// ByCategory returns a read-only snapshot filtered to one category.
func (s *Store) ByCategory(imageKey string, cat Category) []ROI {
	all := s.GetAll(imageKey)
	out := make([]ROI, 0, len(all))
	for _, r := range all {
		if r.Category == cat {
			out = append(out, r)
		}
	}
	return out
}

// Get returns a single ROI by id, if present.
func (s *Store) Get(imageKey string, id int) (ROI, bool) {
	b := s.bucket(imageKey, false)
	if b == nil {
		return ROI{}, false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, r := range b.rois {
		if r.ID == id {
			return r, true
		}
	}
	return ROI{}, false
}

// Update replaces the ROI with the given id via fn, applied under the
// image's lock. This is the only mutation path for the "set once" fields
// (Ignored, Features, Classification) described in spec.md 9.
func (s *Store) Update(imageKey string, id int, fn func(ROI) ROI) error {
	b := s.bucket(imageKey, false)
	if b == nil {
		return fmt.Errorf("roi: unknown image key %q", imageKey)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, r := range b.rois {
		if r.ID == id {
			updated := fn(r)
			updated.ID = r.ID
			updated.ImageKey = r.ImageKey
			b.rois[i] = updated
			return nil
		}
	}
	return fmt.Errorf("roi: no ROI %d in image %q", id, imageKey)
}

// Remove deletes a single ROI. The id is not reassigned to future ROIs.
func (s *Store) Remove(imageKey string, id int) error {
	b := s.bucket(imageKey, false)
	if b == nil {
		return fmt.Errorf("roi: unknown image key %q", imageKey)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, r := range b.rois {
		if r.ID == id {
			b.rois = append(b.rois[:i], b.rois[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("roi: no ROI %d in image %q", id, imageKey)
}

// Clear removes all ROIs for one image but preserves its id counter, so
// subsequent Add calls still never reuse an id.
func (s *Store) Clear(imageKey string) {
	b := s.bucket(imageKey, false)
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rois = nil
}

// ClearAll removes every image's ROIs from the store.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets = make(map[string]*imageBucket)
}

// ImageKeys returns all known image keys in sorted order, taken under the
// store's shared read guard (spec.md 5 "global read-only iteration uses a
// shared guard").
func (s *Store) ImageKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.buckets))
	for k := range s.buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CountByCategory returns the number of ROIs of each category for one
// image.
func (s *Store) CountByCategory(imageKey string) map[Category]int {
	counts := make(map[Category]int)
	for _, r := range s.GetAll(imageKey) {
		counts[r.Category]++
	}
	return counts
}

// TotalCountByCategory aggregates counts across every image in the store.
func (s *Store) TotalCountByCategory() map[Category]int {
	counts := make(map[Category]int)
	for _, key := range s.ImageKeys() {
		for cat, n := range s.CountByCategory(key) {
			counts[cat] += n
		}
	}
	return counts
}
