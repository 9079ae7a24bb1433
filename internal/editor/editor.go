// Package editor bridges the point editing form and the core: it derives
// what the form should show from the map selection and applies submitted
// values to the point store.
package editor

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/poi-cli/internal/feature"
	"github.com/sells-group/poi-cli/internal/points"
)

// Mode is the form mode.
type Mode string

// Form modes.
const (
	ModeAdd  Mode = "add"
	ModeEdit Mode = "edit"
)

// Form field messages.
const (
	MsgRequired  = "This field is required"
	MsgMinLength = "Minimum 2 characters required"
)

// minNameLength is the shortest accepted name.
const minNameLength = 2

// ErrNothingSelected means there is neither a selected feature nor a
// pending click to edit.
var ErrNothingSelected = eris.New("editor: no feature selected and no map click pending")

// Request is what the form opens with.
type Request struct {
	Mode        Mode                 `json:"mode"`
	Coordinates *feature.Coordinates `json:"coordinates,omitempty"`
	Feature     *feature.Feature     `json:"feature,omitempty"`
}

// Initial returns the values the form starts with.
func (r Request) Initial() points.Attributes {
	if r.Feature == nil {
		return points.Attributes{}
	}
	return points.Attributes{Name: r.Feature.Name(), Category: r.Feature.Category()}
}

// FormError maps field names to their first failing rule.
type FormError struct {
	Fields map[string]string
}

func (e *FormError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "editor: " + strings.Join(parts, ", ")
}

// ValidateForm applies the form rules: name is required with at least two
// characters, category is required.
func ValidateForm(a points.Attributes) error {
	fields := make(map[string]string)
	switch name := strings.TrimSpace(a.Name); {
	case name == "":
		fields[feature.PropName] = MsgRequired
	case utf8.RuneCountInString(name) < minNameLength:
		fields[feature.PropName] = MsgMinLength
	}
	if strings.TrimSpace(a.Category) == "" {
		fields[feature.PropCategory] = MsgRequired
	}
	if len(fields) > 0 {
		return &FormError{Fields: fields}
	}
	return nil
}

// Points is the part of the point store the form writes to.
type Points interface {
	Add(ctx context.Context, coords feature.Coordinates, attrs points.Attributes) (feature.Feature, error)
	Update(ctx context.Context, id string, attrs feature.Properties) error
	Get(id string) (feature.Feature, bool)
	Categories() []string
}

// Selection is the part of the map synchronizer the form reads.
type Selection interface {
	Selected() *feature.Feature
	ClickCoordinates() *feature.Coordinates
	ClearSelection()
}

// Session connects a form to a store and a selection.
type Session struct {
	points Points
	sel    Selection
}

// New creates a session.
func New(p Points, sel Selection) *Session {
	return &Session{points: p, sel: sel}
}

// Request returns the form request for the current selection. A selected
// feature opens the form in edit mode; otherwise pending click coordinates
// open it in add mode.
func (s *Session) Request() (Request, error) {
	if f := s.sel.Selected(); f != nil {
		return Request{Mode: ModeEdit, Feature: f}, nil
	}
	if c := s.sel.ClickCoordinates(); c != nil {
		return Request{Mode: ModeAdd, Coordinates: c}, nil
	}
	return Request{}, ErrNothingSelected
}

// Categories returns the choices offered by the category field.
func (s *Session) Categories() []string {
	return s.points.Categories()
}

// Submit validates the form values and applies them. In add mode the new
// feature is created at the click coordinates and the selection is cleared.
// In edit mode the selected feature's name and category are replaced.
func (s *Session) Submit(ctx context.Context, form points.Attributes) (feature.Feature, error) {
	req, err := s.Request()
	if err != nil {
		return feature.Feature{}, err
	}
	if err := ValidateForm(form); err != nil {
		return feature.Feature{}, err
	}
	form.Name = strings.TrimSpace(form.Name)
	form.Category = strings.TrimSpace(form.Category)

	switch req.Mode {
	case ModeAdd:
		f, err := s.points.Add(ctx, *req.Coordinates, form)
		if err != nil && !eris.Is(err, points.ErrPersist) {
			return feature.Feature{}, err
		}
		s.sel.ClearSelection()
		zap.L().Info("editor: point added", zap.String("id", f.ID.String()), zap.String("name", form.Name))
		return f, err

	default:
		id := req.Feature.ID.String()
		err := s.points.Update(ctx, id, feature.Properties{
			feature.PropName:     form.Name,
			feature.PropCategory: form.Category,
		})
		if err != nil && !eris.Is(err, points.ErrPersist) {
			return feature.Feature{}, err
		}
		updated, ok := s.points.Get(id)
		if !ok {
			return feature.Feature{}, eris.Errorf("editor: feature %q no longer exists", id)
		}
		zap.L().Info("editor: point updated", zap.String("id", id), zap.String("name", form.Name))
		return updated, err
	}
}

// Cancel abandons the form and clears the selection.
func (s *Session) Cancel() {
	s.sel.ClearSelection()
}
