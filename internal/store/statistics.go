package store

import (
	"math"
	"sort"

	"tremor-monitor-backend/internal/analysis"
)

// Statistics is the aggregate view over a patient's analysis records.
type Statistics struct {
	Count             int              `json:"count"`
	Min               float64          `json:"min"`
	Max               float64          `json:"max"`
	Mean              float64          `json:"mean"`
	Median            float64          `json:"median"`
	StdDev            float64          `json:"std_dev"`
	ParkinsonianCount int              `json:"parkinsonian_count"`
	Severity          map[string]int64 `json:"severity_distribution"`
}

// computeStatistics aggregates tremor indices in memory. No pre-materialized
// rollups; the statistics endpoint sits behind the response cache to absorb
// bursty polling.
func computeStatistics(indices []float64, parkinsonianCount int) *Statistics {
	stats := &Statistics{
		Count:             len(indices),
		ParkinsonianCount: parkinsonianCount,
		Severity:          make(map[string]int64, len(analysis.SeverityBuckets)),
	}
	for _, b := range analysis.SeverityBuckets {
		stats.Severity[string(b)] = 0
	}
	if len(indices) == 0 {
		return stats
	}

	sorted := make([]float64, len(indices))
	copy(sorted, indices)
	sort.Float64s(sorted)

	stats.Min = sorted[0]
	stats.Max = sorted[len(sorted)-1]
	stats.Mean = mean(sorted)
	stats.Median = median(sorted)
	stats.StdDev = stdDev(sorted, stats.Mean)

	for _, v := range indices {
		stats.Severity[string(analysis.ClassifySeverity(v))]++
	}
	return stats
}

func mean(data []float64) float64 {
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// median expects sorted input.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func stdDev(data []float64, mean float64) float64 {
	if len(data) <= 1 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range data {
		diff := v - mean
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(data)-1))
}
