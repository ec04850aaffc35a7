package align

// Manual performs no alignment: every offset maps to the beginning of
// the speech. Scene authors then time their waits by hand.
type Manual struct{}

func (Manual) AlignChars(text string, offsets []int, audioPath string) ([]float64, error) {
	return make([]float64, len(offsets)), nil
}

func (Manual) Name() string { return "manual" }

func (Manual) Kwargs() map[string]any { return map[string]any{} }
