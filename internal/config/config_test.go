package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != filepath.Join(cfg.DataDir, "sqlite", "memories.db") {
		t.Errorf("unexpected db path %q", cfg.DBPath)
	}
	if cfg.VectorDir != filepath.Join(cfg.DataDir, "vecindex") {
		t.Errorf("unexpected vector dir %q", cfg.VectorDir)
	}
	if cfg.Embedding.Provider != "ollama" || cfg.Embedding.Model != "nomic-embed-text:latest" {
		t.Errorf("unexpected embedding defaults %+v", cfg.Embedding)
	}
	if cfg.Hybrid.SemanticWeight != 0.6 || cfg.Hybrid.TextWeight != 0.4 {
		t.Errorf("unexpected hybrid defaults %+v", cfg.Hybrid)
	}
	if cfg.VectorMetric != "l2" {
		t.Errorf("unexpected metric %q", cfg.VectorMetric)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("EVA_MEMORY_EMBEDDING_PROVIDER", "openai")
	t.Setenv("EVA_MEMORY_EMBEDDING_DIMS", "1536")
	t.Setenv("EVA_MEMORY_HYBRID_TEXT_WEIGHT", "0.5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Embedding.Provider != "openai" {
		t.Errorf("env override ignored, provider %q", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Dims != 1536 {
		t.Errorf("env override ignored, dims %d", cfg.Embedding.Dims)
	}
	if cfg.Hybrid.TextWeight != 0.5 {
		t.Errorf("env override ignored, weight %f", cfg.Hybrid.TextWeight)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "data_dir: " + dir + "\nembedding:\n  model: all-minilm\nvector_metric: ip\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Embedding.Model != "all-minilm" {
		t.Errorf("file value ignored, model %q", cfg.Embedding.Model)
	}
	if cfg.VectorMetric != "ip" {
		t.Errorf("file value ignored, metric %q", cfg.VectorMetric)
	}
	if cfg.DBPath != filepath.Join(dir, "sqlite", "memories.db") {
		t.Errorf("derived db path wrong: %q", cfg.DBPath)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		DBPath:    filepath.Join(dir, "sqlite", "memories.db"),
		VectorDir: filepath.Join(dir, "vecindex"),
	}
	if err := cfg.EnsureDirs(); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	for _, p := range []string{filepath.Join(dir, "sqlite"), cfg.VectorDir} {
		if st, err := os.Stat(p); err != nil || !st.IsDir() {
			t.Errorf("expected directory %q", p)
		}
	}
}
