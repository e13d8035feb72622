package lode

import "time"

// RecordKind discriminator values.
const (
	RecordKindJob     = "job"
	RecordKindMetrics = "metrics"
)

// JobRecord is the storage format for one finished job.
// Day and JobID are partition keys for the Hive layout.
type JobRecord struct {
	RecordKind   string   `json:"record_kind"`
	JobID        string   `json:"job_id"`
	Day          string   `json:"day"`
	Prompt       string   `json:"prompt"`
	State        string   `json:"state"`
	ErrorKind    string   `json:"error_kind,omitempty"`
	Error        string   `json:"error,omitempty"`
	Vertices     int      `json:"vertices"`
	Faces        int      `json:"faces"`
	QualityScore float64  `json:"quality_score"`
	Grade        string   `json:"grade,omitempty"`
	Watertight   bool     `json:"watertight"`
	LODFaces     []int    `json:"lod_faces,omitempty"`
	MeshPaths    []string `json:"mesh_paths,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
	CompletedAt  string   `json:"completed_at"`
}

// DeriveDay formats t as the YYYY-MM-DD UTC partition value.
func DeriveDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// toMap flattens r into the map shape the JSONL codec and Hive layout expect.
func (r JobRecord) toMap() map[string]any {
	m := map[string]any{
		"record_kind":   RecordKindJob,
		"job_id":        r.JobID,
		"day":           r.Day,
		"prompt":        r.Prompt,
		"state":         r.State,
		"vertices":      r.Vertices,
		"faces":         r.Faces,
		"quality_score": r.QualityScore,
		"watertight":    r.Watertight,
		"completed_at":  r.CompletedAt,
	}
	if r.ErrorKind != "" {
		m["error_kind"] = r.ErrorKind
	}
	if r.Error != "" {
		m["error"] = r.Error
	}
	if r.Grade != "" {
		m["grade"] = r.Grade
	}
	if len(r.LODFaces) > 0 {
		m["lod_faces"] = r.LODFaces
	}
	if len(r.MeshPaths) > 0 {
		m["mesh_paths"] = r.MeshPaths
	}
	if len(r.Warnings) > 0 {
		m["warnings"] = r.Warnings
	}
	return m
}

// jobRecordFromMap is the inverse of toMap for records decoded from JSONL,
// where numbers arrive as float64 and lists as []any.
func jobRecordFromMap(m map[string]any) JobRecord {
	return JobRecord{
		RecordKind:   toString(m["record_kind"]),
		JobID:        toString(m["job_id"]),
		Day:          toString(m["day"]),
		Prompt:       toString(m["prompt"]),
		State:        toString(m["state"]),
		ErrorKind:    toString(m["error_kind"]),
		Error:        toString(m["error"]),
		Vertices:     toInt(m["vertices"]),
		Faces:        toInt(m["faces"]),
		QualityScore: toFloat(m["quality_score"]),
		Grade:        toString(m["grade"]),
		Watertight:   m["watertight"] == true,
		LODFaces:     toInts(m["lod_faces"]),
		MeshPaths:    toStrings(m["mesh_paths"]),
		Warnings:     toStrings(m["warnings"]),
		CompletedAt:  toString(m["completed_at"]),
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func toInt(v any) int { return int(toFloat(v)) }

func toInts(v any) []int {
	switch xs := v.(type) {
	case []int:
		return xs
	case []any:
		out := make([]int, 0, len(xs))
		for _, x := range xs {
			out = append(out, toInt(x))
		}
		return out
	}
	return nil
}

func toStrings(v any) []string {
	switch xs := v.(type) {
	case []string:
		return xs
	case []any:
		out := make([]string, 0, len(xs))
		for _, x := range xs {
			out = append(out, toString(x))
		}
		return out
	}
	return nil
}
