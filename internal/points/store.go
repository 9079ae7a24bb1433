// Package points owns the canonical list of point-of-interest features: CRUD,
// GeoJSON import and export, the search filter state, and persistence of the
// whole collection after every mutation.
package points

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/poi-cli/internal/feature"
	"github.com/sells-group/poi-cli/internal/store"
)

// DefaultKey is the storage key holding the persisted FeatureCollection.
const DefaultKey = "poi_editor_state"

// Sentinel errors. Match with eris.Is.
var (
	// ErrParse means an import payload could not be decoded: not JSON, not a
	// FeatureCollection, or a workbook or shapefile with unreadable content.
	ErrParse = eris.New("points: invalid GeoJSON")
	// ErrRead means an import file could not be read.
	ErrRead = eris.New("points: file reading failed")
	// ErrPersist means the mutation was applied in memory but the snapshot
	// could not be written to storage.
	ErrPersist = eris.New("points: persist failed")
)

// Attributes are the values an editing form submits.
type Attributes struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Store is the point store. All methods are safe for concurrent use; writers
// are serialised so only one mutation is in flight at a time.
type Store struct {
	mu       sync.RWMutex
	storage  store.Storage
	key      string
	ids      *feature.IdentityAssigner
	now      func() time.Time
	features []feature.Feature
	search   feature.SearchState

	subMu  sync.Mutex
	subs   map[int]func()
	nextID int
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithClock overrides the clock used for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIdentityAssigner overrides the id generator.
func WithIdentityAssigner(a *feature.IdentityAssigner) Option {
	return func(s *Store) { s.ids = a }
}

// New creates a store and loads the persisted snapshot. A missing, corrupt or
// malformed snapshot yields an empty store; it is logged, never returned.
func New(ctx context.Context, storage store.Storage, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		key:     DefaultKey,
		ids:     feature.NewIdentityAssigner(),
		now:     time.Now,
		subs:    make(map[int]func()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.features = s.load(ctx)
	return s
}

// Features returns a copy of every stored feature in insertion order.
func (s *Store) Features() []feature.Feature {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.features)
}

// Len returns the number of stored features.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.features)
}

// Get returns the feature with the given id. Lookup is by the id's text.
func (s *Store) Get(id string) (feature.Feature, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.features[i].Clone(), true
	}
	return feature.Feature{}, false
}

// Add creates a feature at coords with the given attributes, assigns its id
// and creation timestamp, appends it and persists.
func (s *Store) Add(ctx context.Context, coords feature.Coordinates, attrs Attributes) (feature.Feature, error) {
	if err := feature.ValidateCoordinates(coords); err != nil {
		return feature.Feature{}, err
	}
	props := feature.Properties{feature.PropName: attrs.Name, feature.PropCategory: attrs.Category}
	if err := feature.ValidateAttributes(props); err != nil {
		return feature.Feature{}, err
	}

	f := s.ids.Assign(feature.New(feature.ID{}, coords, props))
	f.CreatedAt = s.now().UTC()

	s.mu.Lock()
	s.features = append(s.features, f)
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify()
	zap.L().Debug("points: added", zap.String("id", f.ID.String()), zap.String("name", attrs.Name))
	return f.Clone(), err
}

// Update shallow-merges attrs into the properties of the feature with the
// given id. An unknown id is a no-op. The id, geometry and creation
// timestamp never change.
func (s *Store) Update(ctx context.Context, id string, attrs feature.Properties) error {
	if err := feature.ValidateAttributes(attrs); err != nil {
		return err
	}

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		zap.L().Debug("points: update of unknown feature ignored", zap.String("id", id))
		return nil
	}
	merged := s.features[i].Properties.Clone()
	for k, v := range attrs {
		merged[k] = v
	}
	s.features[i].Properties = merged
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify()
	return err
}

// Remove deletes the feature with the given id. An unknown id is a no-op.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		zap.L().Debug("points: remove of unknown feature ignored", zap.String("id", id))
		return nil
	}
	s.features = append(s.features[:i:i], s.features[i+1:]...)
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify()
	return err
}

// Import parses data as a FeatureCollection and replaces the whole store
// with its valid features. Invalid features are counted and described in
// the result. Parse failures wrap ErrParse and leave the store untouched.
func (s *Store) Import(ctx context.Context, data []byte) (*feature.ImportResult, error) {
	candidates, err := feature.DecodeCollection(data)
	if err != nil {
		return nil, eris.Wrap(ErrParse, err.Error())
	}

	result := &feature.ImportResult{Errors: []string{}}
	valid := make([]feature.Feature, 0, len(candidates))
	now := s.now().UTC()
	for i, candidate := range candidates {
		f, err := feature.FromValue(candidate)
		if err != nil {
			result.Discarded++
			result.Errors = append(result.Errors, describe(i, err))
			continue
		}
		f = s.ids.Assign(f)
		if f.CreatedAt.IsZero() {
			f.CreatedAt = now
		}
		valid = append(valid, f)
		result.Imported++
	}

	s.mu.Lock()
	s.features = valid
	err = s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify()
	zap.L().Info("points: import complete",
		zap.Int("imported", result.Imported),
		zap.Int("discarded", result.Discarded),
	)
	return result, err
}

// ImportFile reads path and imports its content. Read failures wrap ErrRead.
func (s *Store) ImportFile(ctx context.Context, path string) (*feature.ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(ErrRead, err.Error())
	}
	return s.Import(ctx, data)
}

// Export returns the stored features as an indented FeatureCollection.
func (s *Store) Export() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return feature.MarshalIndent(s.features)
}

// Clear empties the store and removes the persisted snapshot.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.features = nil
	err := s.storage.Delete(ctx, s.key)
	s.mu.Unlock()

	s.notify()
	if err != nil {
		zap.L().Error("points: clear persisted state failed", zap.Error(err))
		return eris.Wrap(ErrPersist, err.Error())
	}
	return nil
}

// indexOf finds a feature by the textual form of its id. Ids reach the store
// as text from URLs and flags, so a number and a string with the same text
// are not told apart; the first match in collection order wins.
func (s *Store) indexOf(id string) int {
	for i, f := range s.features {
		if f.ID.String() == id {
			return i
		}
	}
	return -1
}

func describe(index int, err error) string {
	var verr *feature.ValidationError
	if errors.As(err, &verr) {
		return featureError(index, verr.Errors)
	}
	return featureError(index, []string{err.Error()})
}

func cloneAll(features []feature.Feature) []feature.Feature {
	out := make([]feature.Feature, len(features))
	for i, f := range features {
		out[i] = f.Clone()
	}
	return out
}
