package main

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/qhd-cli/internal/catalog"
	"github.com/sells-group/qhd-cli/internal/model"
	"github.com/sells-group/qhd-cli/internal/pipeline"
	"github.com/sells-group/qhd-cli/internal/publish"
	"github.com/sells-group/qhd-cli/internal/qhd"
	"github.com/sells-group/qhd-cli/internal/quality"
	"github.com/sells-group/qhd-cli/internal/recording"
	"github.com/sells-group/qhd-cli/internal/resilience"
	"github.com/sells-group/qhd-cli/internal/store"
	"github.com/sells-group/qhd-cli/pkg/dqaas"
	"github.com/sells-group/qhd-cli/pkg/qhs"
)

// runnerFactory opens the runner of one process type.
type runnerFactory func(ctx context.Context, process string) (*pipeline.Runner, recording.Loader, error)

// pipelineEnv holds the store, the publisher and one lazily opened runner
// per process type.
type pipelineEnv struct {
	Store     store.Store        // nil in "process" mode
	Publisher *publish.Publisher // nil in "process" mode

	mirror    publish.Mirror
	newRunner runnerFactory
	jobs      sync.WaitGroup // background publish jobs

	mu      sync.Mutex
	runners map[string]*pipeline.Runner
	loaders []recording.Loader
}

// Close waits for background jobs, then releases resources held by the
// pipeline environment.
func (pe *pipelineEnv) Close() {
	pe.jobs.Wait()

	pe.mu.Lock()
	defer pe.mu.Unlock()
	for _, l := range pe.loaders {
		_ = l.Close()
	}
	pe.loaders = nil
	pe.runners = nil
	if pe.mirror != nil {
		_ = pe.mirror.Close()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// Go runs fn in the background. Close waits for it to return.
func (pe *pipelineEnv) Go(fn func()) {
	pe.jobs.Add(1)
	go func() {
		defer pe.jobs.Done()
		fn()
	}()
}

// Runner returns the runner of a process type, opening it on first use.
func (pe *pipelineEnv) Runner(ctx context.Context, process string) (*pipeline.Runner, error) {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	if r, ok := pe.runners[process]; ok {
		return r, nil
	}
	r, loader, err := pe.newRunner(ctx, process)
	if err != nil {
		return nil, err
	}
	if pe.runners == nil {
		pe.runners = make(map[string]*pipeline.Runner)
	}
	pe.runners[process] = r
	if loader != nil {
		pe.loaders = append(pe.loaders, loader)
	}
	return r, nil
}

// initPipeline validates the config for mode and builds the environment.
// Modes "publish" and "serve" also open the store and the publisher.
// Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env := &pipelineEnv{newRunner: buildRunner}
	if mode == "process" {
		return env, nil
	}

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	env.Store = st

	opts := []publish.Option{
		publish.WithStore(st),
		publish.WithConcurrency(cfg.Batch.MaxConcurrentParts),
		publish.WithRetry(resilience.FromRetryConfig(
			cfg.Publish.MaxAttempts,
			cfg.Publish.InitialBackoffMs,
			cfg.Publish.MaxBackoffMs,
			cfg.Publish.Multiplier,
			cfg.Publish.Jitter,
		)),
	}

	breakerCfg := resilience.FromBreakerConfig(cfg.Publish.BreakerThreshold, cfg.Publish.BreakerCooldownSecs)
	breakerCfg.OnOpen = func(failures int) {
		zap.L().Error("hallmark service breaker opened", zap.Int("consecutive_failures", failures))
	}
	opts = append(opts, publish.WithBreaker(resilience.NewBreaker(breakerCfg)))

	if len(cfg.Kafka.Brokers) > 0 {
		m, err := publish.NewKafkaMirror(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.mirror = m
		opts = append(opts, publish.WithMirror(m))
		zap.L().Info("kafka mirror enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	client := qhs.NewClient(cfg.Publish.Endpoint,
		qhs.WithIDField(cfg.Publish.IDField),
		qhs.WithRateLimit(cfg.Publish.RateLimit),
	)
	env.Publisher = publish.New(client, opts...)
	return env, nil
}

// loadCatalog returns the catalog of a process type, preferring a file in
// dataset.catalog_dir over the built-in version.
func loadCatalog(process string) (*catalog.Catalog, error) {
	if cfg.Dataset.CatalogDir != "" {
		return catalog.LoadFile(filepath.Join(cfg.Dataset.CatalogDir, process+".yaml"))
	}
	return catalog.Load(process)
}

func buildRunner(ctx context.Context, process string) (*pipeline.Runner, recording.Loader, error) {
	cat, err := loadCatalog(process)
	if err != nil {
		return nil, nil, err
	}

	loader, err := recording.New(ctx, cat, cfg.DatasetPath(process))
	if err != nil {
		return nil, nil, eris.Wrapf(err, "open %s recordings", process)
	}

	builder := qhd.NewBuilder(cat, qhd.Identity{
		Owner: cfg.Owner,
		Model: cfg.Model,
		CID:   cfg.Publish.CID,
		Pwd:   cfg.Publish.Pwd,
	})

	opts := []pipeline.Option{
		pipeline.WithDQaaS(
			dqaas.NewClient(cfg.DQaaS.Endpoint),
			cfg.DQaaS.StagingDir,
			cfg.DQaaS.QHDKey,
		),
	}
	if path := cfg.QualityPath(process); path != "" {
		tbl, err := quality.ReadTable(ctx, path, cat.Product)
		if err != nil {
			_ = loader.Close()
			return nil, nil, eris.Wrapf(err, "read %s quality table", process)
		}
		opts = append(opts, pipeline.WithQuality(tbl))
		zap.L().Info("quality table loaded", zap.String("process", process), zap.Int("parts", len(tbl.Records)))
	}

	return pipeline.New(cat, loader, builder, opts...), loader, nil
}

// partIDs lists the parts a document type can be built for.
func partIDs(ctx context.Context, r *pipeline.Runner, dt model.DocType) ([]string, error) {
	if dt == model.DocTypeProduct {
		return r.QualityIDs(), nil
	}
	return r.PartIDs(ctx)
}

// publishPart builds and publishes one document. With skipPublished set, a
// part recorded as published locally or already stored by the service is
// left alone.
func (pe *pipelineEnv) publishPart(ctx context.Context, r *pipeline.Runner, dt model.DocType, partID string, skipPublished bool) error {
	process := r.Catalog().Process
	if skipPublished {
		ok, err := pe.Store.IsPublished(ctx, partID, process, dt)
		if err != nil {
			return err
		}
		if !ok {
			subject, err := r.Subject(partID, dt)
			if err != nil {
				return err
			}
			if ok, err = pe.Publisher.Exists(ctx, subject); err != nil {
				return err
			}
		}
		if ok {
			zap.L().Debug("already published, skipping", zap.String("part_id", partID), zap.String("doc_type", string(dt)))
			return nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	doc, err := r.Document(ctx, dt, partID)
	if err != nil {
		return err
	}
	_, err = pe.Publisher.Publish(ctx, doc, publish.Ref{PartID: partID, Process: process, DocType: dt})
	return err
}
