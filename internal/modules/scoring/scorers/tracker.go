// Package scorers holds the component scorers behind the composite score.
// Every scorer produces a 0-100 value and records each input it had to
// impute in the shared Tracker, so the caller can report data confidence
// honestly instead of hiding substituted defaults.
package scorers

// Tracker records input availability across one ticker's scoring pass.
type Tracker struct {
	required  int
	populated int
	missing   []string
	estimated []string
}

// Value returns the input when present, otherwise the neutral fallback, and
// books the field either way. Imputed fields end up in Estimated.
func (t *Tracker) Value(name string, v *float64, fallback float64) float64 {
	t.required++
	if v != nil {
		t.populated++
		return *v
	}
	t.missing = append(t.missing, name)
	t.estimated = append(t.estimated, name)
	return fallback
}

// Have books an input that a scorer skips rather than imputes when absent.
func (t *Tracker) Have(name string, v *float64) bool {
	t.required++
	if v != nil {
		t.populated++
		return true
	}
	t.missing = append(t.missing, name)
	return false
}

// Confidence is populated inputs over required inputs, 1.0 when nothing was
// required.
func (t *Tracker) Confidence() float64 {
	if t.required == 0 {
		return 1.0
	}
	return float64(t.populated) / float64(t.required)
}

// Missing lists every absent input, imputed or not.
func (t *Tracker) Missing() []string { return t.missing }

// Estimated lists inputs replaced by a neutral fallback.
func (t *Tracker) Estimated() []string { return t.estimated }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// toScore converts a 0..1 blend to the 0-100 scale.
func toScore(v float64) float64 {
	return clamp01(v) * 100
}
