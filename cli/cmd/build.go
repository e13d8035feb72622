package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/justapithecus/meshforge/adapter"
	adapterredis "github.com/justapithecus/meshforge/adapter/redis"
	"github.com/justapithecus/meshforge/adapter/webhook"
	"github.com/justapithecus/meshforge/cli/config"
	"github.com/justapithecus/meshforge/generator"
	"github.com/justapithecus/meshforge/lod"
	"github.com/justapithecus/meshforge/lode"
	"github.com/justapithecus/meshforge/log"
	"github.com/justapithecus/meshforge/metrics"
	"github.com/justapithecus/meshforge/policy"
	"github.com/justapithecus/meshforge/queue"
	"github.com/justapithecus/meshforge/runtime"
)

// DefaultMetricsNamespace prefixes exported metric names.
const DefaultMetricsNamespace = "meshforge"

// stack is an orchestrator plus the backends built for it from config.
type stack struct {
	orch      *runtime.Orchestrator
	collector *metrics.Collector
	// store and sink are nil when storage is disabled.
	store *lode.ArtifactStore
	sink  policy.Policy
	// queue is closed after Shutdown when the orchestrator does not own it.
	queue queue.Queue
}

func buildGenerator(cfg config.GeneratorConfig) (generator.Generator, string) {
	if cfg.Backend == "process" {
		return &generator.Process{Command: cfg.Command, Args: cfg.Args, Env: cfg.Env}, "process"
	}
	return generator.NewProcedural(), "procedural"
}

// buildQueue returns a nil queue for the memory backend; the orchestrator
// then owns an in-memory one. Redis lists are scoped to this process.
func buildQueue(cfg config.QueueConfig) (queue.Queue, string, error) {
	if cfg.Backend != "redis" {
		return nil, "memory", nil
	}
	instance := cfg.Instance
	if instance == "" {
		instance = uuid.NewString()
	}
	q, err := queue.NewRedis(queue.RedisConfig{
		URL:         cfg.URL,
		Key:         cfg.Key,
		Instance:    instance,
		PollTimeout: cfg.PollTimeout.Duration,
	})
	if err != nil {
		return nil, "", err
	}
	return q, "redis", nil
}

func buildStore(ctx context.Context, cfg config.StorageConfig) (*lode.ArtifactStore, string, error) {
	var (
		store *lode.ArtifactStore
		err   error
	)
	switch cfg.Backend {
	case "", "none":
		return nil, "none", nil
	case "memory":
		store, err = lode.NewMemoryArtifactStore(cfg.Dataset)
	case "fs":
		store, err = lode.NewFSArtifactStore(cfg.Dataset, cfg.Path)
	case "s3":
		bucket, prefix := lode.ParseS3Path(cfg.Path)
		store, err = lode.NewS3ArtifactStore(ctx, cfg.Dataset, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.S3PathStyle,
		})
	default:
		return nil, "", fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, "", err
	}
	return store, cfg.Backend, nil
}

func buildPolicy(cfg config.StorageConfig, store lode.Sink, logger *log.Logger) (policy.Policy, error) {
	if cfg.Policy == "buffered" {
		return policy.NewBuffered(store, policy.BufferedConfig{MaxRecords: cfg.BufferRecords, Logger: logger})
	}
	return policy.NewStrict(store), nil
}

func buildAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	retries := adapterredis.DefaultRetries
	if cfg.Retries != nil {
		retries = *cfg.Retries
	}
	switch cfg.Type {
	case "":
		return nil, nil
	case "webhook":
		a, err := webhook.New(webhook.Config{URL: cfg.URL, Headers: cfg.Headers, Secret: cfg.Secret, Timeout: cfg.Timeout.Duration, Retries: retries})
		if err != nil {
			return nil, err
		}
		return a, nil
	case "redis":
		a, err := adapterredis.New(adapterredis.Config{URL: cfg.URL, Mode: cfg.Mode, Channel: cfg.Channel, MaxLen: cfg.MaxLen, Timeout: cfg.Timeout.Duration, Retries: retries})
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown adapter type %q", cfg.Type)
	}
}

// buildStack wires an orchestrator from cfg. The orchestrator is not started.
func buildStack(ctx context.Context, cfg *config.Config, logger *log.Logger) (*stack, error) {
	gen, genName := buildGenerator(cfg.Generator)

	q, queueName, err := buildQueue(cfg.Queue)
	if err != nil {
		return nil, fmt.Errorf("queue: %w", err)
	}
	store, storeName, err := buildStore(ctx, cfg.Storage)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("storage: %w", err), closeQueue(q))
	}
	var sink policy.Policy
	if store != nil {
		if sink, err = buildPolicy(cfg.Storage, store, logger); err != nil {
			return nil, errors.Join(fmt.Errorf("storage: %w", err), closeQueue(q))
		}
	}
	pub, err := buildAdapter(cfg.Adapter)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("adapter: %w", err), closeQueue(q))
	}

	s := &stack{
		collector: metrics.NewCollector(genName, queueName, storeName),
		store:     store,
		sink:      sink,
		queue:     q,
	}
	dec := decimationOptions(cfg.Pipeline)
	rc := runtime.Config{
		Generator:         gen,
		Workers:           cfg.Workers,
		GenerationTimeout: cfg.GenerationTimeout.Duration,
		Queue:             q,
		Decimation:        dec,
		LOD: lod.Options{
			DistanceK:   cfg.Pipeline.DistanceK,
			Concurrency: cfg.Pipeline.LODConcurrency,
			Decimation:  dec,
		},
		TargetFaces:  cfg.Pipeline.TargetFaces,
		LODRatios:    cfg.Pipeline.LODRatios,
		EngineLimits: cfg.EngineLimits(),
		Adapter:      pub,
		Collector:    s.collector,
		Logger:       logger,
	}
	if sink != nil {
		rc.Artifacts = sink
	}

	s.orch, err = runtime.New(rc)
	if err != nil {
		var closeErr error
		if pub != nil {
			closeErr = pub.Close()
		}
		return nil, errors.Join(err, closeErr, closeQueue(q))
	}
	return s, nil
}

func closeQueue(q queue.Queue) error {
	if q == nil {
		return nil
	}
	return q.Close()
}

// shutdown stops the orchestrator, flushes buffered records, persists a
// final metrics snapshot and closes the backends the orchestrator does not own.
func (s *stack) shutdown(ctx context.Context) error {
	err := s.orch.Shutdown(ctx)
	if s.sink != nil {
		if ferr := s.sink.Flush(context.WithoutCancel(ctx)); ferr != nil {
			err = errors.Join(err, fmt.Errorf("flush records: %w", ferr))
		}
	}
	if s.store != nil {
		if perr := s.store.PutMetrics(context.WithoutCancel(ctx), s.collector.Snapshot()); perr != nil {
			err = errors.Join(err, fmt.Errorf("persist metrics: %w", perr))
		}
	}
	return errors.Join(err, closeQueue(s.queue))
}

// serveMetrics exposes the Prometheus exporter on listen at /metrics. The
// returned server is already accepting connections.
func (s *stack) serveMetrics(listen, namespace string, logger *log.Logger) (*http.Server, string, error) {
	if namespace == "" {
		namespace = DefaultMetricsNamespace
	}
	handler, err := metrics.NewExporter(namespace, s.collector, s.orch.JobsByState).Handler()
	if err != nil {
		return nil, "", err
	}
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, "", fmt.Errorf("metrics listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", map[string]any{"error": err.Error()})
		}
	}()
	return srv, ln.Addr().String(), nil
}
