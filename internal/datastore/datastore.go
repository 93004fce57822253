// Package datastore provides the in-memory hierarchical store of normalized data points.
package datastore

import (
	"encoding/json"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// DataPoint is one normalized measurement. The JSON form follows SenML
// short names: v (value), u (unit), t (time in seconds since the epoch).
type DataPoint struct {
	Value interface{}
	Unit  string
	Time  float64
	Tags  map[string]interface{}
}

// MarshalJSON renders the point as {"v":..., "u":..., "t":..., tags...}.
func (p DataPoint) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(p.Tags)+3)
	for k, v := range p.Tags {
		m[k] = v
	}
	m["v"] = p.Value
	if p.Unit != "" {
		m["u"] = p.Unit
	}
	if p.Time != 0 {
		m["t"] = p.Time
	}
	return json.Marshal(m)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (p *DataPoint) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	*p = DataPoint{Value: m["v"]}
	if u, ok := m["u"].(string); ok {
		p.Unit = u
	}
	if t, ok := m["t"].(float64); ok {
		p.Time = t
	}
	for k, v := range m {
		if k == "v" || k == "u" || k == "t" {
			continue
		}
		if p.Tags == nil {
			p.Tags = make(map[string]interface{})
		}
		p.Tags[k] = v
	}
	return nil
}

// EpochSeconds converts a time to fractional seconds since the epoch.
func EpochSeconds(ts time.Time) float64 {
	return float64(ts.UnixNano()) / float64(time.Second)
}

// Entry is a data point together with its path.
type Entry struct {
	Path  string    `json:"path"`
	Point DataPoint `json:"point"`
}

// Store is a sparse path -> DataPoint map. Writes replace any previous
// point at the same path; no history is retained.
type Store struct {
	points map[string]DataPoint
	latest []Entry
	mutex  sync.RWMutex
}

// New creates an empty store.
func New() *Store {
	return &Store{points: make(map[string]DataPoint)}
}

// Join builds a store path from its segments.
func Join(segments ...string) string {
	return path.Join(segments...)
}

// Put writes a single point.
func (s *Store) Put(p string, point DataPoint) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.points[clean(p)] = point
}

// PutAll writes a batch of points under one lock so readers never observe
// half of a batch. The batch replaces the one returned by Latest.
func (s *Store) PutAll(entries []Entry) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	latest := make([]Entry, 0, len(entries))
	for _, e := range entries {
		p := clean(e.Path)
		s.points[p] = e.Point
		latest = append(latest, Entry{Path: p, Point: e.Point})
	}
	sort.Slice(latest, func(i, j int) bool {
		return latest[i].Path < latest[j].Path
	})
	s.latest = latest
}

// Latest returns the entries of the most recent PutAll, sorted by path.
// Paths the batch did not carry are absent even if the store still holds
// an older point for them.
func (s *Store) Latest() []Entry {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return append([]Entry(nil), s.latest...)
}

// Get returns the point stored at a path.
func (s *Store) Get(p string) (DataPoint, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	point, ok := s.points[clean(p)]
	return point, ok
}

// List returns every entry whose path starts with prefix, sorted by path.
// An empty prefix lists the whole store.
func (s *Store) List(prefix string) []Entry {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	prefix = clean(prefix)
	entries := make([]Entry, 0, len(s.points))
	for p, point := range s.points {
		if prefix != "" && p != prefix && !strings.HasPrefix(p, prefix+"/") {
			continue
		}
		entries = append(entries, Entry{Path: p, Point: point})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
	return entries
}

// Snapshot returns a copy of the whole store.
func (s *Store) Snapshot() map[string]DataPoint {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	snapshot := make(map[string]DataPoint, len(s.points))
	for p, point := range s.points {
		snapshot[p] = point
	}
	return snapshot
}

// Len returns the number of stored points.
func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.points)
}

// Reset discards every point.
func (s *Store) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.points = make(map[string]DataPoint)
	s.latest = nil
}

func clean(p string) string {
	if p == "" {
		return ""
	}
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}
