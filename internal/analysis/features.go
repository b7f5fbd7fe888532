package analysis

import (
	"math"
	"time"

	"tremor-monitor-backend/config"
)

// Features holds the per-window metrics extracted from a closed window.
type Features struct {
	SampleCount       int
	SamplingRate      float64
	RMS               float64
	DominantFrequency float64
	TremorPower       float64
	TotalPower        float64
	SignalQuality     float64
}

// Extractor computes spectral and amplitude features over a window of
// samples.
type Extractor struct {
	cfg config.AnalysisConfig
}

// NewExtractor creates a feature extractor with the given analysis settings.
func NewExtractor(cfg config.AnalysisConfig) *Extractor {
	return &Extractor{cfg: cfg}
}

// Extract computes the feature set for one closed window. Samples must be
// ordered by timestamp. The magnitude signal is mean-detrended before the
// transform so the DC component does not dominate the spectrum; the analyzed
// band is then restricted to physiologically plausible frequencies.
func (e *Extractor) Extract(samples []Sample, windowStart, windowEnd time.Time) Features {
	n := len(samples)
	signal := make([]float64, n)
	for i, s := range samples {
		signal[i] = s.Magnitude()
	}
	detrend(signal)

	f := Features{
		SampleCount:  n,
		SamplingRate: e.cfg.SamplingRate,
		RMS:          rms(signal),
	}

	spectrum := magnitudeSpectrum(signal)
	binWidth := e.cfg.SamplingRate / float64(n)

	var peakMagnitude float64
	for k := 1; k < len(spectrum); k++ { // bin 0 is DC, always skipped
		freq := float64(k) * binWidth
		if freq < e.cfg.BandLowHz || freq > e.cfg.BandHighHz {
			continue
		}
		power := spectrum[k] * spectrum[k]
		f.TotalPower += power
		if freq >= e.cfg.TremorBandLowHz && freq <= e.cfg.TremorBandHighHz {
			f.TremorPower += power
		}
		if spectrum[k] > peakMagnitude {
			peakMagnitude = spectrum[k]
			f.DominantFrequency = freq
		}
	}

	f.SignalQuality = e.signalQuality(samples, windowStart, windowEnd)
	return f
}

// signalQuality is a heuristic in [0,1] penalizing sparse windows, clipped
// sensor values and large intra-window gaps.
func (e *Extractor) signalQuality(samples []Sample, windowStart, windowEnd time.Time) float64 {
	if len(samples) == 0 {
		return 0
	}

	expected := e.cfg.SamplingRate * windowEnd.Sub(windowStart).Seconds()
	fill := 1.0
	if expected > 0 {
		fill = math.Min(float64(len(samples))/expected, 1.0)
	}

	clipped := 0
	for _, s := range samples {
		if math.Abs(s.X) >= e.cfg.ClipLimit || math.Abs(s.Y) >= e.cfg.ClipLimit || math.Abs(s.Z) >= e.cfg.ClipLimit {
			clipped++
		}
	}
	clipPenalty := 1.0 - float64(clipped)/float64(len(samples))

	// Largest gap between consecutive samples, relative to the window length.
	nominal := time.Duration(float64(time.Second) / e.cfg.SamplingRate)
	maxGap := time.Duration(0)
	for i := 1; i < len(samples); i++ {
		if gap := samples[i].Timestamp.Sub(samples[i-1].Timestamp); gap > maxGap {
			maxGap = gap
		}
	}
	gapPenalty := 1.0
	if maxGap > 2*nominal {
		gapPenalty = 1.0 - math.Min(maxGap.Seconds()/windowEnd.Sub(windowStart).Seconds(), 1.0)
	}

	return clamp(fill*clipPenalty*gapPenalty, 0, 1)
}

// detrend subtracts the mean in place.
func detrend(signal []float64) {
	if len(signal) == 0 {
		return
	}
	sum := 0.0
	for _, v := range signal {
		sum += v
	}
	mean := sum / float64(len(signal))
	for i := range signal {
		signal[i] -= mean
	}
}

func rms(signal []float64) float64 {
	if len(signal) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range signal {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(signal)))
}

// magnitudeSpectrum computes |X(k)| for k = 0..n/2 with a direct DFT. Window
// sizes are a few hundred samples, so the quadratic transform stays well
// under a millisecond and avoids padding artifacts a power-of-two FFT would
// introduce at these lengths.
func magnitudeSpectrum(signal []float64) []float64 {
	n := len(signal)
	if n == 0 {
		return nil
	}
	bins := n/2 + 1
	spectrum := make([]float64, bins)
	for k := 0; k < bins; k++ {
		var re, im float64
		angle := -2 * math.Pi * float64(k) / float64(n)
		for i, v := range signal {
			phase := angle * float64(i)
			re += v * math.Cos(phase)
			im += v * math.Sin(phase)
		}
		spectrum[k] = math.Hypot(re, im)
	}
	return spectrum
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
