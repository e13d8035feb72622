package sweep

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

// AxisSummary aggregates the trials of one axis. Statistics cover
// successful trials only.
type AxisSummary struct {
	Axis           string   `json:"axis" yaml:"axis"`
	Trials         int      `json:"trials" yaml:"trials"`
	Succeeded      int      `json:"succeeded" yaml:"succeeded"`
	Values         []string `json:"values" yaml:"values"`
	MeanDurationMs float64  `json:"mean_duration_ms" yaml:"mean_duration_ms"`
	MeanFaces      float64  `json:"mean_faces" yaml:"mean_faces"`
	MinFaces       int      `json:"min_faces" yaml:"min_faces"`
	MaxFaces       int      `json:"max_faces" yaml:"max_faces"`
	FacesStdDev    float64  `json:"faces_std_dev" yaml:"faces_std_dev"`
	MeanQuality    float64  `json:"mean_quality" yaml:"mean_quality"`
	BestValue      string   `json:"best_value,omitempty" yaml:"best_value,omitempty"`
	BestQuality    float64  `json:"best_quality" yaml:"best_quality"`
	Finding        string   `json:"finding" yaml:"finding"`
}

// Summarize reduces results to one summary per axis, in first-seen order.
func Summarize(results []TrialResult) []AxisSummary {
	order := axisOrder(results)
	out := make([]AxisSummary, 0, len(order))
	for _, axis := range order {
		var ok []TrialResult
		s := AxisSummary{Axis: axis}
		for _, r := range results {
			if r.Axis != axis {
				continue
			}
			s.Trials++
			s.Values = append(s.Values, r.Value)
			if r.Succeeded() {
				ok = append(ok, r)
			}
		}
		s.Succeeded = len(ok)
		summarizeAxis(&s, ok)
		out = append(out, s)
	}
	return out
}

func summarizeAxis(s *AxisSummary, ok []TrialResult) {
	if len(ok) == 0 {
		s.Finding = "no successful trials"
		return
	}
	durations := make(stats.Float64Data, len(ok))
	faces := make(stats.Float64Data, len(ok))
	quality := make(stats.Float64Data, len(ok))
	best := 0
	for i, r := range ok {
		durations[i] = float64(r.DurationMs)
		faces[i] = float64(r.Faces)
		quality[i] = r.QualityScore
		if r.QualityScore > ok[best].QualityScore {
			best = i
		}
	}

	// Inputs are non-empty, the only error these functions return.
	s.MeanDurationMs, _ = durations.Mean()
	s.MeanFaces, _ = faces.Mean()
	s.FacesStdDev, _ = faces.StandardDeviationPopulation()
	s.MeanQuality, _ = quality.Mean()
	minFaces, _ := faces.Min()
	maxFaces, _ := faces.Max()
	s.MinFaces, s.MaxFaces = int(minFaces), int(maxFaces)
	s.BestValue = ok[best].Value
	s.BestQuality = ok[best].QualityScore
	s.Finding = finding(s, ok)
}

func finding(s *AxisSummary, ok []TrialResult) string {
	switch s.Axis {
	case AxisSteps:
		first, last := ok[0], ok[len(ok)-1]
		if len(ok) == 1 {
			return fmt.Sprintf("only steps=%s succeeded (quality %.1f)", first.Value, first.QualityScore)
		}
		timing := "time unchanged"
		if first.DurationMs > 0 {
			pct := float64(last.DurationMs-first.DurationMs) / float64(first.DurationMs) * 100
			timing = fmt.Sprintf("time changes by %+.0f%%", pct)
		}
		return fmt.Sprintf("steps %s to %s: %s, quality changes by %+.1f points",
			first.Value, last.Value, timing, last.QualityScore-first.QualityScore)
	case AxisSeed:
		return fmt.Sprintf("face count std dev %.0f across %d seeds (range %d to %d)",
			s.FacesStdDev, len(ok), s.MinFaces, s.MaxFaces)
	case AxisPrompt:
		return fmt.Sprintf("%q prompt style scored best (%.1f)", s.BestValue, s.BestQuality)
	default:
		return fmt.Sprintf("best quality (%.1f) at %s=%s", s.BestQuality, s.Axis, s.BestValue)
	}
}
