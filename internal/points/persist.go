package points

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/poi-cli/internal/feature"
)

// load reads the persisted snapshot. Anything other than a well-formed
// FeatureCollection falls back to an empty store.
func (s *Store) load(ctx context.Context) []feature.Feature {
	data, err := s.storage.Get(ctx, s.key)
	if err != nil {
		zap.L().Warn("points: load persisted state failed", zap.String("key", s.key), zap.Error(err))
		return nil
	}
	if data == nil {
		return nil
	}

	candidates, err := feature.DecodeCollection(data)
	if err != nil {
		zap.L().Warn("points: persisted state is corrupt, starting empty",
			zap.String("key", s.key),
			zap.Error(err),
		)
		return nil
	}

	features := make([]feature.Feature, 0, len(candidates))
	for i, candidate := range candidates {
		f, err := feature.FromValue(candidate)
		if err != nil {
			zap.L().Warn("points: dropping invalid persisted feature", zap.Int("index", i), zap.Error(err))
			continue
		}
		features = append(features, s.ids.Assign(f))
	}
	zap.L().Debug("points: loaded persisted state", zap.Int("features", len(features)))
	return features
}

// persistLocked writes the full snapshot. Callers hold s.mu.
func (s *Store) persistLocked(ctx context.Context) error {
	data, err := feature.Marshal(s.features)
	if err != nil {
		return eris.Wrap(ErrPersist, err.Error())
	}
	if err := s.storage.Set(ctx, s.key, data); err != nil {
		zap.L().Error("points: persist failed", zap.String("key", s.key), zap.Error(err))
		return eris.Wrap(ErrPersist, err.Error())
	}
	return nil
}

// Subscribe registers fn to run after every committed mutation or filter
// change. fn runs outside the store lock and may read the store. The
// returned function cancels the subscription.
func (s *Store) Subscribe(fn func()) (cancel func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for i := 0; i < s.nextID; i++ {
		if fn, ok := s.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func featureError(index int, msgs []string) string {
	return fmt.Sprintf("Feature %d: %s", index, strings.Join(msgs, ", "))
}
