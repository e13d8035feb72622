// Package lod builds level-of-detail chains from a source mesh.
//
// Level 0 is always the source mesh itself. Every reduced level is decimated
// independently from the source, never from the previous level, so error does
// not compound down the chain.
package lod

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/justapithecus/meshforge/decimate"
	"github.com/justapithecus/meshforge/mesh"
)

// DefaultDistanceK is the default switch-distance constant.
const DefaultDistanceK = 10.0

// DefaultRatios is the level chain used when none is configured.
var DefaultRatios = []float64{1.0, 0.5, 0.25}

// Sentinel errors.
var (
	// ErrInvalidLODConfig is returned for a ratio list that is empty, does not
	// start at 1.0, or is not strictly decreasing and positive.
	ErrInvalidLODConfig = errors.New("invalid lod config")
	// ErrDegenerateBounds is returned when the source has a zero bounding diagonal.
	ErrDegenerateBounds = errors.New("mesh has degenerate bounds")
)

// Level is one entry of an LODSet.
type Level struct {
	// Ratio is the fraction of source faces this level targets.
	Ratio float64 `json:"ratio" yaml:"ratio"`
	// Mesh is the level geometry. For level 0 it is the source mesh pointer.
	Mesh *mesh.Mesh `json:"-" yaml:"-"`
	// TargetFaces is the requested face count.
	TargetFaces int `json:"target_faces" yaml:"target_faces"`
	// Faces is the achieved face count.
	Faces int `json:"faces" yaml:"faces"`
	// SwitchDistance is the camera distance at which this level becomes active.
	SwitchDistance float64 `json:"switch_distance" yaml:"switch_distance"`
	// Reduced is false when the level could not be made smaller than the source.
	Reduced bool `json:"reduced" yaml:"reduced"`
	// UsedClustering reports whether the decimator fell back to vertex clustering.
	UsedClustering bool `json:"used_clustering" yaml:"used_clustering"`
}

// LODSet is an ordered chain of levels with strictly decreasing ratio.
type LODSet struct {
	Levels []Level `json:"levels" yaml:"levels"`
}

// Len returns the number of levels.
func (s *LODSet) Len() int { return len(s.Levels) }

// Level returns level i, or false when out of range.
func (s *LODSet) Level(i int) (Level, bool) {
	if s == nil || i < 0 || i >= len(s.Levels) {
		return Level{}, false
	}
	return s.Levels[i], true
}

// Options configures a Generator. Zero values select defaults.
type Options struct {
	// DistanceK scales switch distances.
	DistanceK float64
	// Concurrency bounds how many levels decimate at once. Zero means one per level.
	Concurrency int
	// Decimation configures the per-level decimator. The target policy is
	// always pass-through so small meshes yield unreduced levels.
	Decimation decimate.Options
}

// Generator builds LOD chains. It is safe for concurrent use.
type Generator struct {
	k           float64
	concurrency int
	decimator   *decimate.Decimator
}

// New creates a Generator.
func New(opts Options) *Generator {
	if opts.DistanceK <= 0 {
		opts.DistanceK = DefaultDistanceK
	}
	dopts := opts.Decimation
	dopts.TargetPolicy = decimate.TargetPassThrough
	return &Generator{
		k:           opts.DistanceK,
		concurrency: opts.Concurrency,
		decimator:   decimate.New(dopts),
	}
}

// ValidateRatios checks that ratios is non-empty, starts at exactly 1.0,
// and is strictly decreasing with every ratio above zero.
func ValidateRatios(ratios []float64) error {
	if len(ratios) == 0 {
		return fmt.Errorf("%w: no ratios", ErrInvalidLODConfig)
	}
	if ratios[0] != 1.0 {
		return fmt.Errorf("%w: first ratio is %v, want 1.0", ErrInvalidLODConfig, ratios[0])
	}
	for i := 1; i < len(ratios); i++ {
		r := ratios[i]
		if math.IsNaN(r) || r <= 0 {
			return fmt.Errorf("%w: ratio[%d] = %v must be positive", ErrInvalidLODConfig, i, r)
		}
		if r >= ratios[i-1] {
			return fmt.Errorf("%w: ratio[%d] = %v not below ratio[%d] = %v",
				ErrInvalidLODConfig, i, r, i-1, ratios[i-1])
		}
	}
	return nil
}

// Generate builds one level per ratio. The source mesh is never modified.
func (g *Generator) Generate(m *mesh.Mesh, ratios []float64) (*LODSet, error) {
	return g.GenerateContext(context.Background(), m, ratios)
}

// GenerateContext is Generate with cancellation between levels.
func (g *Generator) GenerateContext(ctx context.Context, m *mesh.Mesh, ratios []float64) (*LODSet, error) {
	if err := ValidateRatios(ratios); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	diag := m.Diagonal()
	if diag == 0 || math.IsNaN(diag) {
		return nil, ErrDegenerateBounds
	}

	faces := m.FaceCount()
	set := &LODSet{Levels: make([]Level, len(ratios))}
	set.Levels[0] = Level{
		Ratio:          1.0,
		Mesh:           m,
		TargetFaces:    faces,
		Faces:          faces,
		SwitchDistance: g.k / diag,
	}

	eg, ctx := errgroup.WithContext(ctx)
	if g.concurrency > 0 {
		eg.SetLimit(g.concurrency)
	}
	for i := 1; i < len(ratios); i++ {
		r := ratios[i]
		target := max(int(math.Round(float64(faces)*r)), decimate.MinTarget)
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := g.decimator.Run(m, target)
			if err != nil {
				return fmt.Errorf("lod level %d (ratio %v): %w", i, r, err)
			}
			set.Levels[i] = Level{
				Ratio:          r,
				Mesh:           res.Mesh,
				TargetFaces:    target,
				Faces:          res.Mesh.FaceCount(),
				SwitchDistance: g.k / (diag * r),
				Reduced:        !res.PassThrough,
				UsedClustering: res.UsedClustering,
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return set, nil
}
