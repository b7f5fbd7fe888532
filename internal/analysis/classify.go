package analysis

import "tremor-monitor-backend/config"

// Severity is the reporting bucket for a tremor index.
type Severity string

const (
	SeverityMinimal    Severity = "minimal"
	SeverityMild       Severity = "mild"
	SeverityModerate   Severity = "moderate"
	SeveritySevere     Severity = "severe"
	SeverityVerySevere Severity = "very_severe"
)

// SeverityBuckets lists the buckets in ascending order.
var SeverityBuckets = []Severity{
	SeverityMinimal,
	SeverityMild,
	SeverityModerate,
	SeveritySevere,
	SeverityVerySevere,
}

// ClassifySeverity maps a 0-1 tremor index onto a reporting bucket. The
// UI-facing score is index*100.
func ClassifySeverity(index float64) Severity {
	switch {
	case index < 0.2:
		return SeverityMinimal
	case index < 0.4:
		return SeverityMild
	case index < 0.6:
		return SeverityModerate
	case index < 0.8:
		return SeveritySevere
	default:
		return SeverityVerySevere
	}
}

// Classifier turns extracted features into a tremor index and a Parkinsonian
// flag according to a configurable scoring policy.
type Classifier struct {
	cfg config.ScoringConfig
}

// NewClassifier creates a classifier with the given scoring policy.
func NewClassifier(cfg config.ScoringConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Score combines the spectral concentration ratio with the RMS amplitude into
// a normalized 0-1 severity index.
func (c *Classifier) Score(f Features) float64 {
	spectralRatio := 0.0
	if f.TotalPower > 0 {
		spectralRatio = clamp(f.TremorPower/f.TotalPower, 0, 1)
	}
	amplitude := clamp(f.RMS/c.cfg.RMSScale, 0, 1)
	return clamp(c.cfg.SpectralWeight*spectralRatio+c.cfg.AmplitudeWeight*amplitude, 0, 1)
}

// IsParkinsonian reports whether the window looks like pathological tremor:
// the dominant frequency sits in the Parkinsonian band and the index clears a
// minimum threshold, so low-amplitude noise that happens to peak in-band does
// not trigger a positive.
func (c *Classifier) IsParkinsonian(f Features, tremorIndex float64) bool {
	return f.DominantFrequency >= c.cfg.ParkinsonianBandLow &&
		f.DominantFrequency <= c.cfg.ParkinsonianBandHigh &&
		tremorIndex >= c.cfg.ParkinsonianMinIndex
}
