package generator

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/justapithecus/meshforge/mesh"
)

// Procedural builds a primitive chosen from prompt keywords. Step count
// controls tessellation and the seed perturbs vertices, so identical
// inputs produce identical meshes.
type Procedural struct {
	// Jitter is the maximum radial displacement as a fraction of the radius.
	Jitter float64
}

// NewProcedural returns a Procedural generator with a small default jitter.
func NewProcedural() *Procedural {
	return &Procedural{Jitter: 0.02}
}

// Generate implements Generator.
func (p *Procedural) Generate(ctx context.Context, prompt string, params Params) (*mesh.Mesh, error) {
	if err := ValidatePrompt(prompt); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, classifyContextErr(err)
	}
	params = params.WithDefaults()

	lower := strings.ToLower(prompt)
	var m *mesh.Mesh
	switch {
	case strings.Contains(lower, "cube") || strings.Contains(lower, "box") || strings.Contains(lower, "crate"):
		m = mesh.NewCube(1)
	default:
		rings := mesh.Clamp(params.Steps/2, 8, 64)
		m = mesh.NewUVSphere(rings, rings*2, 1)
	}

	if p.Jitter > 0 {
		seed := seedFor(prompt, params.Seed)
		rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		for i, v := range m.Vertices {
			s := 1 + (rng.Float64()*2-1)*p.Jitter
			m.Vertices[i] = v.Scale(s)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, classifyContextErr(err)
	}
	return m, nil
}

func seedFor(prompt string, seed *int64) uint64 {
	if seed != nil {
		return uint64(*seed)
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(prompt))
	return h.Sum64() & math.MaxInt64
}
