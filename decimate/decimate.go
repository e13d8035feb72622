// Package decimate reduces triangle count with quadric edge collapse.
//
// Each vertex accumulates an error quadric from the planes of its incident
// faces. Edges are collapsed cheapest-first from a min-heap; stale heap
// entries are skipped using per-vertex generation counters. A collapse is
// rejected when it would fold an adjacent face past MaxFlipAngle, produce a
// face below the area tolerance, or break the link condition. When too many
// consecutive collapses are rejected the decimator falls back to spatial
// vertex clustering on the current intermediate mesh.
//
// The input mesh is never modified.
package decimate

import (
	"errors"
	"fmt"
	"math"

	"github.com/justapithecus/meshforge/mesh"
)

// MinTarget is the smallest accepted target face count.
const MinTarget = 4

// Sentinel errors.
var (
	// ErrInvalidTarget is returned when the target is below MinTarget, or at or
	// above the current face count under TargetStrict.
	ErrInvalidTarget = errors.New("invalid decimation target")
	// ErrDecimationFailed is returned when the clustering fallback yields no faces.
	ErrDecimationFailed = errors.New("decimation failed")
)

// TargetPolicy controls how a target at or above the face count is handled.
type TargetPolicy int

const (
	// TargetStrict rejects targets >= face count with ErrInvalidTarget.
	TargetStrict TargetPolicy = iota
	// TargetPassThrough returns an unchanged copy when target >= face count.
	TargetPassThrough
)

// String returns the policy name.
func (p TargetPolicy) String() string {
	switch p {
	case TargetStrict:
		return "strict"
	case TargetPassThrough:
		return "pass_through"
	default:
		return fmt.Sprintf("TargetPolicy(%d)", int(p))
	}
}

// Defaults.
const (
	DefaultMaxFlipAngle   = math.Pi / 3
	DefaultStallLimit     = 500
	DefaultBoundaryWeight = 100.0
)

// Options configures a Decimator. Zero values select defaults.
type Options struct {
	// MaxFlipAngle is the largest allowed rotation, in radians, of an adjacent
	// face normal caused by a collapse.
	MaxFlipAngle float64
	// StallLimit is the number of consecutive rejected collapses after which
	// vertex clustering takes over.
	StallLimit int
	// BoundaryWeight scales the constraint planes placed on open edges.
	BoundaryWeight float64
	// TargetPolicy selects strict or pass-through handling of large targets.
	TargetPolicy TargetPolicy
}

func (o Options) withDefaults() Options {
	if o.MaxFlipAngle <= 0 {
		o.MaxFlipAngle = DefaultMaxFlipAngle
	}
	if o.StallLimit <= 0 {
		o.StallLimit = DefaultStallLimit
	}
	if o.BoundaryWeight <= 0 {
		o.BoundaryWeight = DefaultBoundaryWeight
	}
	return o
}

// Result is the outcome of a decimation run.
type Result struct {
	// Mesh is the decimated mesh. Unreferenced vertices are removed.
	Mesh *mesh.Mesh
	// InputFaces is the face count before decimation.
	InputFaces int
	// Target is the requested face count.
	Target int
	// Collapses is the number of applied edge collapses.
	Collapses int
	// Rejections is the number of collapses rejected by the validity checks.
	Rejections int
	// UsedClustering reports whether the vertex-clustering fallback produced Mesh.
	UsedClustering bool
	// PassThrough reports whether the mesh was returned unchanged.
	PassThrough bool
}

// ReachedTarget reports whether the output face count is at or below the target.
func (r *Result) ReachedTarget() bool {
	return r.Mesh.FaceCount() <= r.Target
}

// Decimator simplifies meshes. It holds no per-call state and is safe for
// concurrent use.
type Decimator struct {
	opts Options
}

// New creates a Decimator.
func New(opts Options) *Decimator {
	return &Decimator{opts: opts.withDefaults()}
}

// Options returns the effective options.
func (d *Decimator) Options() Options { return d.opts }

// Decimate reduces m to at most target faces where the surface allows it.
func (d *Decimator) Decimate(m *mesh.Mesh, target int) (*mesh.Mesh, error) {
	res, err := d.Run(m, target)
	if err != nil {
		return nil, err
	}
	return res.Mesh, nil
}

// Run is Decimate with collapse statistics.
func (d *Decimator) Run(m *mesh.Mesh, target int) (*Result, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	faces := m.FaceCount()
	if target < MinTarget {
		return nil, fmt.Errorf("%w: target %d below minimum %d", ErrInvalidTarget, target, MinTarget)
	}
	if target >= faces {
		if d.opts.TargetPolicy == TargetPassThrough {
			return &Result{Mesh: m.Clone(), InputFaces: faces, Target: target, PassThrough: true}, nil
		}
		return nil, fmt.Errorf("%w: target %d not below face count %d", ErrInvalidTarget, target, faces)
	}

	s := newState(m, d.opts)
	stalled := s.collapseTo(target)
	res := &Result{
		InputFaces: faces,
		Target:     target,
		Collapses:  s.collapses,
		Rejections: s.rejections,
		Mesh:       s.output(),
	}

	if stalled && res.Mesh.FaceCount() > target {
		clustered, err := cluster(res.Mesh, target)
		if err != nil {
			return nil, err
		}
		if clustered.FaceCount() < res.Mesh.FaceCount() {
			res.Mesh = clustered
			res.UsedClustering = true
		}
	}
	return res, nil
}
