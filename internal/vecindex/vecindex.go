// Package vecindex implements per-user exact nearest-neighbor indexes with
// true add/remove/update by integer id. One index file per user lives under
// a base directory; indexes are lazily loaded, cached in memory, and flushed
// to disk after every mutation.
package vecindex

import (
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Metric selects the distance function for an index.
type Metric string

const (
	// MetricL2 ranks by squared Euclidean distance (closer is better).
	MetricL2 Metric = "l2"
	// MetricInnerProduct ranks by dot product (larger is better).
	MetricInnerProduct Metric = "ip"
)

// Hit is one search result. Score is always higher-is-better: inner product
// for MetricInnerProduct, negated squared distance for MetricL2.
type Hit struct {
	VectorID int64
	Score    float64
}

// userIndex is the flat in-memory index for one user. The first insertion
// fixes Dim for the index's lifetime.
type userIndex struct {
	Dim     int
	IDs     []int64
	Vectors [][]float32
}

// Manager owns the per-user index cache. Every operation against one user's
// index runs under that user's lock: update is delete-then-add and
// persistence is write-through, so unserialized access could expose an
// absent-id window or let a stale flush overwrite a newer one.
type Manager struct {
	baseDir string
	metric  Metric
	logger  *slog.Logger

	mu    sync.Mutex // guards cache and locks maps
	cache map[string]*userIndex
	locks map[string]*sync.Mutex
}

// NewManager creates a manager persisting indexes under baseDir.
func NewManager(baseDir string, metric Metric, logger *slog.Logger) (*Manager, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create index dir")
	}
	if metric != MetricL2 && metric != MetricInnerProduct {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		baseDir: baseDir,
		metric:  metric,
		logger:  logger,
		cache:   make(map[string]*userIndex),
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// Add inserts a vector under vectorID. The first vector added for a user
// fixes the dimensionality of that user's index; later mismatches and
// duplicate ids are errors.
func (m *Manager) Add(userID string, vectorID int64, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("empty vector")
	}
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	idx, err := m.loadLocked(userID)
	if err != nil {
		return err
	}
	if idx == nil {
		idx = &userIndex{Dim: len(vec)}
		m.setCached(userID, idx)
	}
	if idx.Dim != len(vec) {
		return fmt.Errorf("vector dim %d does not match index dim %d for user %s", len(vec), idx.Dim, userID)
	}
	for _, id := range idx.IDs {
		if id == vectorID {
			return fmt.Errorf("vector id %d already present for user %s", vectorID, userID)
		}
	}

	idx.IDs = append(idx.IDs, vectorID)
	idx.Vectors = append(idx.Vectors, append([]float32(nil), vec...))
	return m.saveLocked(userID, idx)
}

// Update replaces the vector stored under vectorID. It is delete-then-add
// inside one critical section, so no reader of this user's index can observe
// the id absent.
func (m *Manager) Update(userID string, vectorID int64, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("empty vector")
	}
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	idx, err := m.loadLocked(userID)
	if err != nil {
		return err
	}
	if idx == nil {
		idx = &userIndex{Dim: len(vec)}
		m.setCached(userID, idx)
	}
	if idx.Dim != len(vec) {
		return fmt.Errorf("vector dim %d does not match index dim %d for user %s", len(vec), idx.Dim, userID)
	}

	idx.remove(vectorID)
	idx.IDs = append(idx.IDs, vectorID)
	idx.Vectors = append(idx.Vectors, append([]float32(nil), vec...))
	return m.saveLocked(userID, idx)
}

// Delete removes vectorID from the user's index. Absent ids and users with
// no index file are a no-op, not an error.
func (m *Manager) Delete(userID string, vectorID int64) error {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	idx, err := m.loadLocked(userID)
	if err != nil {
		return err
	}
	if idx == nil {
		return nil
	}
	if !idx.remove(vectorID) {
		return nil
	}
	return m.saveLocked(userID, idx)
}

// Search returns up to k hits for vec, best first. An empty or nonexistent
// index yields an empty result.
func (m *Manager) Search(userID string, vec []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	idx, err := m.loadLocked(userID)
	if err != nil {
		return nil, err
	}
	if idx == nil || len(idx.IDs) == 0 {
		return nil, nil
	}
	if len(vec) != idx.Dim {
		return nil, fmt.Errorf("query dim %d does not match index dim %d for user %s", len(vec), idx.Dim, userID)
	}

	hits := make([]Hit, len(idx.IDs))
	for i, id := range idx.IDs {
		hits[i] = Hit{VectorID: id, Score: m.score(vec, idx.Vectors[i])}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].VectorID < hits[j].VectorID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of vectors indexed for a user.
func (m *Manager) Count(userID string) (int, error) {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	idx, err := m.loadLocked(userID)
	if err != nil {
		return 0, err
	}
	if idx == nil {
		return 0, nil
	}
	return len(idx.IDs), nil
}

// Reset discards both the in-memory and persisted index for a user.
func (m *Manager) Reset(userID string) error {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	delete(m.cache, userID)
	m.mu.Unlock()

	err := os.Remove(m.indexPath(userID))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove index file")
	}
	return nil
}

func (idx *userIndex) remove(vectorID int64) bool {
	for i, id := range idx.IDs {
		if id == vectorID {
			idx.IDs = append(idx.IDs[:i], idx.IDs[i+1:]...)
			idx.Vectors = append(idx.Vectors[:i], idx.Vectors[i+1:]...)
			return true
		}
	}
	return false
}

func (m *Manager) score(query, stored []float32) float64 {
	var acc float64
	switch m.metric {
	case MetricInnerProduct:
		for i := range query {
			acc += float64(query[i]) * float64(stored[i])
		}
		return acc
	default: // MetricL2
		for i := range query {
			d := float64(query[i]) - float64(stored[i])
			acc += d * d
		}
		return -acc
	}
}

// userLock returns the exclusive lock for one user's index.
func (m *Manager) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[userID] = lock
	}
	return lock
}

func (m *Manager) getCached(userID string) *userIndex {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache[userID]
}

func (m *Manager) setCached(userID string, idx *userIndex) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[userID] = idx
}

// loadLocked returns the user's index, reading it from disk on first touch.
// Returns nil when the user has no index yet. Caller holds the user lock.
func (m *Manager) loadLocked(userID string) (*userIndex, error) {
	if idx := m.getCached(userID); idx != nil {
		return idx, nil
	}

	f, err := os.Open(m.indexPath(userID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "open index file")
	}
	defer f.Close()

	var idx userIndex
	if err := gob.NewDecoder(f).Decode(&idx); err != nil {
		return nil, errors.Wrapf(err, "decode index for user %s", userID)
	}
	m.setCached(userID, &idx)
	m.logger.Debug("loaded vector index", "user_id", userID, "vectors", len(idx.IDs), "dim", idx.Dim)
	return &idx, nil
}

// saveLocked flushes the index to disk via a temp file and atomic rename.
// Caller holds the user lock.
func (m *Manager) saveLocked(userID string, idx *userIndex) error {
	path := m.indexPath(userID)
	tmp, err := os.CreateTemp(m.baseDir, ".tmp-*.vec")
	if err != nil {
		return errors.Wrap(err, "create temp index file")
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(idx); err != nil {
		tmp.Close()
		return errors.Wrap(err, "encode index")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp index file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "replace index file")
	}
	return nil
}

// indexPath returns the deterministic per-user index file path.
func (m *Manager) indexPath(userID string) string {
	return filepath.Join(m.baseDir, "user_"+sanitize(userID)+".vec")
}

func sanitize(userID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.', r == '_':
			return r
		default:
			return '_'
		}
	}, userID)
}
