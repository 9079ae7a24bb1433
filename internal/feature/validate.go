package feature

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
)

// Validator messages, in rule order.
const (
	MsgNotFeature        = "Not a Feature"
	MsgNotPoint          = "Geometry must be Point"
	MsgBadCoordinates    = "Invalid coordinates format"
	MsgCoordsNotNumbers  = "Coordinates must be numbers"
	MsgCoordsOutOfRange  = "Coordinates out of range"
	MsgMissingProperties = "Missing properties"
	MsgNameNotString     = "Name must be string"
	MsgCategoryNotString = "Category must be string"
	MsgNameRequired      = "Name is required"
)

// Result is the outcome of validating one candidate feature.
type Result struct {
	OK     bool
	Errors []string
}

// ValidationError reports why a feature was rejected.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "feature: " + strings.Join(e.Errors, ", ")
}

// Err returns the result as an error, or nil when the candidate is valid.
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	return &ValidationError{Errors: r.Errors}
}

// Validate checks an untyped candidate (as decoded from JSON) against the
// point feature rules. Structural failures stop at the first error; the
// name and category checks are both reported.
func Validate(candidate any) Result {
	fail := func(msg string) Result { return Result{Errors: []string{msg}} }

	obj, _ := candidate.(map[string]any)
	if s, _ := obj["type"].(string); s != TypeFeature {
		return fail(MsgNotFeature)
	}

	geometry, _ := obj["geometry"].(map[string]any)
	if s, _ := geometry["type"].(string); s != TypePoint {
		return fail(MsgNotPoint)
	}

	if _, err := ParseCoordinates(geometry["coordinates"]); err != nil {
		var verr *ValidationError
		errors.As(err, &verr)
		return Result{Errors: verr.Errors}
	}

	props := obj["properties"]
	if missing(props) {
		return fail(MsgMissingProperties)
	}

	var errs []string
	propMap, _ := props.(map[string]any)
	if _, ok := propMap[PropName].(string); !ok {
		errs = append(errs, MsgNameNotString)
	}
	if _, ok := propMap[PropCategory].(string); !ok {
		errs = append(errs, MsgCategoryNotString)
	}
	return Result{OK: len(errs) == 0, Errors: errs}
}

// ParseCoordinates checks an untyped coordinate value (as decoded from JSON)
// and returns it as a pair. Anything other than exactly two numbers in range
// is rejected with the matching validator message.
func ParseCoordinates(v any) (Coordinates, error) {
	coords, ok := v.([]any)
	if !ok || len(coords) != 2 {
		return Coordinates{}, &ValidationError{Errors: []string{MsgBadCoordinates}}
	}
	lon, lonOK := toFloat(coords[0])
	lat, latOK := toFloat(coords[1])
	if !lonOK || !latOK {
		return Coordinates{}, &ValidationError{Errors: []string{MsgCoordsNotNumbers}}
	}
	c := Coordinates{lon, lat}
	if err := ValidateCoordinates(c); err != nil {
		return Coordinates{}, err
	}
	return c, nil
}

// missing reports whether a properties value is absent or empty-valued:
// null, false, zero or the empty string.
func missing(v any) bool {
	switch p := v.(type) {
	case nil:
		return true
	case bool:
		return !p
	case string:
		return p == ""
	case json.Number:
		f, err := p.Float64()
		return err == nil && (f == 0 || math.IsNaN(f))
	case float64:
		return p == 0 || math.IsNaN(p)
	case int:
		return p == 0
	}
	return false
}

// ValidateCoordinates applies the numeric and range rules to a typed pair.
func ValidateCoordinates(c Coordinates) error {
	if math.IsNaN(c.Lon()) || math.IsNaN(c.Lat()) || math.IsInf(c.Lon(), 0) || math.IsInf(c.Lat(), 0) {
		return &ValidationError{Errors: []string{MsgCoordsNotNumbers}}
	}
	if !inRange(c.Lon(), c.Lat()) {
		return &ValidationError{Errors: []string{MsgCoordsOutOfRange}}
	}
	return nil
}

// ValidateAttributes checks the typed name/category pair supplied by an
// editing form. Name must be non-empty.
func ValidateAttributes(props Properties) error {
	var errs []string
	if v, ok := props[PropName]; ok {
		s, isString := v.(string)
		switch {
		case !isString:
			errs = append(errs, MsgNameNotString)
		case strings.TrimSpace(s) == "":
			errs = append(errs, MsgNameRequired)
		}
	}
	if v, ok := props[PropCategory]; ok {
		if _, isString := v.(string); !isString {
			errs = append(errs, MsgCategoryNotString)
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func inRange(lon, lat float64) bool {
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
