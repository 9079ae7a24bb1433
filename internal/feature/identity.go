package feature

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IdentityAssigner hands out feature ids of the form
// feature_<unix millis>_<9 random hex chars>.
type IdentityAssigner struct {
	now    func() time.Time
	suffix func() string
}

// NewIdentityAssigner returns an assigner using the wall clock and random
// UUID entropy for the suffix.
func NewIdentityAssigner() *IdentityAssigner {
	return &IdentityAssigner{
		now:    time.Now,
		suffix: randomSuffix,
	}
}

// Next returns a fresh id.
func (a *IdentityAssigner) Next() ID {
	return StringID(fmt.Sprintf("feature_%d_%s", a.now().UnixMilli(), a.suffix()))
}

// Assign returns f with an id, keeping the existing one when present.
func (a *IdentityAssigner) Assign(f Feature) Feature {
	if f.ID.IsZero() {
		f.ID = a.Next()
	}
	return f
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}
