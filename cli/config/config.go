package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/justapithecus/meshforge/validate"
)

// Config represents a meshforge.yaml configuration file.
// All values are optional and act as defaults for command flags.
// CLI flags always override config values.
type Config struct {
	Workers           int             `yaml:"workers"`
	GenerationTimeout Duration        `yaml:"generation_timeout"`
	Generator         GeneratorConfig `yaml:"generator"`
	Pipeline          PipelineConfig  `yaml:"pipeline"`
	Limits            []EngineLimits  `yaml:"limits"`
	Queue             QueueConfig     `yaml:"queue"`
	Storage           StorageConfig   `yaml:"storage"`
	Adapter           AdapterConfig   `yaml:"adapter"`
	Metrics           MetricsConfig   `yaml:"metrics"`
}

// GeneratorConfig selects the mesh generator backend.
type GeneratorConfig struct {
	// Backend is procedural (default) or process.
	Backend string   `yaml:"backend"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,omitempty"`
	Env     []string `yaml:"env,omitempty"`
}

// PipelineConfig holds post-processing defaults.
type PipelineConfig struct {
	TargetFaces    int       `yaml:"target_faces"`
	LODRatios      []float64 `yaml:"lod_ratios,omitempty"`
	DistanceK      float64   `yaml:"distance_k"`
	LODConcurrency int       `yaml:"lod_concurrency"`
	// MaxFlipAngle is in degrees.
	MaxFlipAngle float64 `yaml:"max_flip_angle"`
	StallLimit   int     `yaml:"stall_limit"`
	// TargetPolicy is strict (default) or pass_through.
	TargetPolicy string `yaml:"target_policy"`
}

// MaxFlipAngleRadians converts MaxFlipAngle; zero stays zero.
func (p PipelineConfig) MaxFlipAngleRadians() float64 {
	return p.MaxFlipAngle * math.Pi / 180
}

// EngineLimits is an extra engine budget checked for every completed job.
type EngineLimits struct {
	Name         string `yaml:"name"`
	MaxTriangles int    `yaml:"max_triangles"`
	MaxVertices  int    `yaml:"max_vertices"`
}

// QueueConfig selects the job queue backend.
type QueueConfig struct {
	// Backend is memory (default) or redis.
	Backend     string   `yaml:"backend"`
	URL         string   `yaml:"url"`
	Key         string   `yaml:"key"`
	// Instance scopes the redis list to this process (default: random per run).
	Instance    string   `yaml:"instance"`
	PollTimeout Duration `yaml:"poll_timeout"`
}

// StorageConfig selects where meshes and job records are written.
type StorageConfig struct {
	// Backend is none (default), memory, fs or s3.
	Backend     string `yaml:"backend"`
	Dataset     string `yaml:"dataset"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
	// Policy is strict (default) or buffered.
	Policy string `yaml:"policy"`
	// BufferRecords bounds the buffered policy's record buffer.
	BufferRecords int `yaml:"buffer_records"`
}

// AdapterConfig holds completion notification settings.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Mode    string            `yaml:"mode,omitempty"`    // redis: pubsub or stream
	MaxLen  int64             `yaml:"max_len,omitempty"` // redis stream cap
	Secret  string            `yaml:"secret,omitempty"`  // webhook signing key
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the HTTP address for /metrics; empty disables it.
	Listen    string `yaml:"listen"`
	Namespace string `yaml:"namespace"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// EngineLimits converts the configured budgets for the validator.
func (c *Config) EngineLimits() []validate.Limits {
	if len(c.Limits) == 0 {
		return nil
	}
	out := make([]validate.Limits, 0, len(c.Limits))
	for _, l := range c.Limits {
		out = append(out, validate.Limits{Name: l.Name, MaxTriangles: l.MaxTriangles, MaxVertices: l.MaxVertices})
	}
	return out
}

// Validate checks enumerated fields and numeric ranges. Cross-field checks
// that need the runtime (target bounds, LOD ratios) happen at construction.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", c.Workers))
	}
	if c.GenerationTimeout.Duration < 0 {
		errs = append(errs, errors.New("generation_timeout must not be negative"))
	}
	switch c.Generator.Backend {
	case "", "procedural":
	case "process":
		if c.Generator.Command == "" {
			errs = append(errs, errors.New("generator.command is required for the process backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid generator.backend: %q (must be procedural or process)", c.Generator.Backend))
	}
	switch c.Pipeline.TargetPolicy {
	case "", "strict", "pass_through":
	default:
		errs = append(errs, fmt.Errorf("invalid pipeline.target_policy: %q (must be strict or pass_through)", c.Pipeline.TargetPolicy))
	}
	if c.Pipeline.MaxFlipAngle < 0 || c.Pipeline.MaxFlipAngle >= 180 {
		errs = append(errs, fmt.Errorf("pipeline.max_flip_angle must be in [0, 180), got %v", c.Pipeline.MaxFlipAngle))
	}
	for i, l := range c.Limits {
		if l.Name == "" {
			errs = append(errs, fmt.Errorf("limits[%d]: name is required", i))
		}
	}
	switch c.Queue.Backend {
	case "", "memory":
	case "redis":
		if c.Queue.URL == "" {
			errs = append(errs, errors.New("queue.url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid queue.backend: %q (must be memory or redis)", c.Queue.Backend))
	}
	switch c.Storage.Backend {
	case "", "none", "memory":
	case "fs", "s3":
		if c.Storage.Path == "" {
			errs = append(errs, fmt.Errorf("storage.path is required for the %s backend", c.Storage.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid storage.backend: %q (must be none, memory, fs or s3)", c.Storage.Backend))
	}
	switch c.Storage.Policy {
	case "", "strict", "buffered":
	default:
		errs = append(errs, fmt.Errorf("invalid storage.policy: %q (must be strict or buffered)", c.Storage.Policy))
	}
	if c.Storage.BufferRecords < 0 {
		errs = append(errs, errors.New("storage.buffer_records must not be negative"))
	}
	switch c.Adapter.Type {
	case "":
	case "webhook", "redis":
		if c.Adapter.URL == "" {
			errs = append(errs, fmt.Errorf("adapter.url is required for the %s adapter", c.Adapter.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid adapter.type: %q (must be webhook or redis)", c.Adapter.Type))
	}
	switch c.Adapter.Mode {
	case "", "pubsub":
	case "stream":
		if c.Adapter.Type != "redis" {
			errs = append(errs, errors.New("adapter.mode stream requires the redis adapter"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid adapter.mode: %q (must be pubsub or stream)", c.Adapter.Mode))
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		errs = append(errs, errors.New("adapter.retries must not be negative"))
	}
	return errors.Join(errs...)
}
