package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/qhd-cli/internal/config"
	"github.com/sells-group/qhd-cli/internal/model"
	"github.com/sells-group/qhd-cli/internal/resilience"
	"github.com/sells-group/qhd-cli/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		Owner: "ptw",
		Model: "None",
		Dataset: config.DatasetConfig{
			Root:  root,
			Paths: map[string]string{"milling": "milling"},
		},
		Publish: config.PublishConfig{
			Endpoint:    "http://127.0.0.1:1/qhs",
			CID:         "cid",
			MaxAttempts: 1,
		},
		DQaaS: config.DQaaSConfig{StagingDir: filepath.Join(root, "staging")},
		Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(root, "qhd.db")},
		Batch: config.BatchConfig{MaxConcurrentParts: 2},
		Server: config.ServerConfig{Port: 8080},
	}
}

func TestPipelineEnv_Close_Nil(t *testing.T) {
	pe := &pipelineEnv{}
	assert.NotPanics(t, func() {
		pe.Close()
	})
}

func TestPipelineEnv_CloseWaitsForJobs(t *testing.T) {
	st, err := store.Open(context.Background(), store.DriverSQLite, filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	pe := &pipelineEnv{Store: st}

	release := make(chan struct{})
	var jobErr error
	pe.Go(func() {
		<-release
		jobErr = pe.Store.AppendFailure(context.Background(), resilience.NewFailure("1", "sawing", model.DocTypeProcess, assert.AnError))
	})

	closed := make(chan struct{})
	go func() {
		pe.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a job was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return after the job finished")
	}
	assert.NoError(t, jobErr)
}

func TestInitPipeline_ProcessModeSkipsStore(t *testing.T) {
	cfg = testConfig(t)

	env, err := initPipeline(context.Background(), "process")
	require.NoError(t, err)
	defer env.Close()
	assert.Nil(t, env.Store)
	assert.Nil(t, env.Publisher)
}

func TestInitPipeline_PublishMode(t *testing.T) {
	cfg = testConfig(t)

	env, err := initPipeline(context.Background(), "publish")
	require.NoError(t, err)
	defer env.Close()
	assert.NotNil(t, env.Store)
	assert.NotNil(t, env.Publisher)
}

func TestInitPipeline_InvalidConfig(t *testing.T) {
	cfg = testConfig(t)
	cfg.Publish.CID = ""

	env, err := initPipeline(context.Background(), "publish")
	assert.Nil(t, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish.cid is required")
}

func TestRunner_BuiltinCatalog(t *testing.T) {
	cfg = testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Dataset.Root, "milling", "12_2021"), 0o755))

	env, err := initPipeline(context.Background(), "process")
	require.NoError(t, err)
	defer env.Close()

	r, err := env.Runner(context.Background(), "milling")
	require.NoError(t, err)
	assert.Equal(t, "cylinder_bottom", r.Catalog().PartType)

	again, err := env.Runner(context.Background(), "milling")
	require.NoError(t, err)
	assert.Same(t, r, again)

	ids, err := partIDs(context.Background(), r, model.DocTypeProcess)
	require.NoError(t, err)
	assert.Equal(t, []string{"12"}, ids)

	_, err = env.Runner(context.Background(), "welding")
	require.Error(t, err)
}

func TestLoadCatalog_FromDir(t *testing.T) {
	cfg = testConfig(t)
	dir := t.TempDir()
	cfg.Dataset.CatalogDir = dir

	_, err := loadCatalog("milling")
	require.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "milling.yaml"), []byte(`
process: milling
version: 3
part_type: cylinder_bottom
layout: directory
boundary_unit: s
timing_stream: acc
sides:
  - {name: side_1, boundary_file: b.csv, files: {acc: a.arrow}}
steps:
  - {side: side_1, name: roughing}
streams:
  - {name: acc, group: features_acc, unit: us, channels: [acc_x]}
`), 0o644))
	cat, err := loadCatalog("milling")
	require.NoError(t, err)
	assert.Equal(t, 3, cat.Version)
}
