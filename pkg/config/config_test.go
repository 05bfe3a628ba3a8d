package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_Defaults(t *testing.T) {
	cfg := New()

	if cfg.Log.Verbosity != 2 {
		t.Errorf("default verbosity = %d, want 2", cfg.Log.Verbosity)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("default log format = %q, want %q", cfg.Log.Format, "text")
	}
	if _, ok := cfg.IgnoredAttrSet()["generator_location"]; !ok {
		t.Error("generator_location should be ignored by default")
	}
	if cfg.Hashing.Workers != 4 {
		t.Errorf("default workers = %d, want 4", cfg.Hashing.Workers)
	}
}

func TestMerge_OverlaysNonZeroFields(t *testing.T) {
	base := New()
	other := &Config{
		Bazel: BazelConfig{Path: "/opt/bazel", UseCquery: true},
		Hashing: HashingConfig{
			FineGrainedHashExternalRepos: []string{"@ext"},
			IncludeTargetType:            true,
		},
		Log: LogConfig{Verbosity: 4},
	}

	base.Merge(other)

	if base.Bazel.Path != "/opt/bazel" {
		t.Errorf("Bazel.Path = %q, want /opt/bazel", base.Bazel.Path)
	}
	if !base.Bazel.UseCquery {
		t.Error("UseCquery should be true after merge")
	}
	if !base.Hashing.IncludeTargetType {
		t.Error("IncludeTargetType should be true after merge")
	}
	if _, ok := base.FineGrainedRepoSet()["@ext"]; !ok {
		t.Error("@ext should be in fine-grained repo set after merge")
	}
	if base.Log.Verbosity != 4 {
		t.Errorf("Verbosity = %d, want 4", base.Log.Verbosity)
	}
	// Untouched fields keep their defaults.
	if base.Hashing.Workers != 4 {
		t.Errorf("Workers = %d, want unchanged default 4", base.Hashing.Workers)
	}
}

func TestLoadFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	content := `
[bazel]
path = "/usr/bin/bazel"
use_cquery = true

[hashing]
fine_grained_hash_external_repos = ["@ext1", "@ext2"]
include_target_type = true

[log]
verbosity = 3
format = "json"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg := loadFile(configPath)
	if cfg == nil {
		t.Fatal("loadFile() returned nil")
	}
	if cfg.Bazel.Path != "/usr/bin/bazel" || !cfg.Bazel.UseCquery {
		t.Errorf("Bazel = %+v", cfg.Bazel)
	}
	if len(cfg.Hashing.FineGrainedHashExternalRepos) != 2 {
		t.Errorf("FineGrainedHashExternalRepos = %v", cfg.Hashing.FineGrainedHashExternalRepos)
	}
	if cfg.Log.Verbosity != 3 || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := New()
	t.Setenv("BAZEL_DIFFEROUS_BAZEL_PATH", "/opt/bazel/bin/bazel")
	t.Setenv("BAZEL_DIFFEROUS_USE_CQUERY", "true")
	t.Setenv("BAZEL_DIFFEROUS_FINE_GRAINED_HASH_EXTERNAL_REPOS", "@a, @b")
	t.Setenv("BAZEL_DIFFEROUS_VERBOSITY", "4")

	applyEnv(cfg)

	if cfg.Bazel.Path != "/opt/bazel/bin/bazel" {
		t.Errorf("Bazel.Path = %q", cfg.Bazel.Path)
	}
	if !cfg.Bazel.UseCquery {
		t.Error("UseCquery should be true via env var")
	}
	if len(cfg.Hashing.FineGrainedHashExternalRepos) != 2 {
		t.Errorf("FineGrainedHashExternalRepos = %v", cfg.Hashing.FineGrainedHashExternalRepos)
	}
	if cfg.Log.Verbosity != 4 {
		t.Errorf("Verbosity = %d, want 4", cfg.Log.Verbosity)
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"go,kotlin,python", []string{"go", "kotlin", "python"}},
		{" a , b ", []string{"a", "b"}},
		{"", nil},
		{" , , ", nil},
	}
	for _, tt := range tests {
		got := splitAndTrim(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("splitAndTrim(%q) = %v, want %v", tt.input, got, tt.want)
			continue
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("splitAndTrim(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}

func TestProjectConfigSearch(t *testing.T) {
	tmpDir := t.TempDir()
	projectDir := filepath.Join(tmpDir, "project", "subdir")
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.MkdirAll(filepath.Join(tmpDir, "project", ".git"), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	configPath := filepath.Join(tmpDir, "project", ConfigFileName)
	content := "[bazel]\nuse_cquery = true\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg := loadProjectConfig(projectDir)
	if cfg == nil {
		t.Fatal("loadProjectConfig() returned nil")
	}
	if !cfg.Bazel.UseCquery {
		t.Error("UseCquery should be true from discovered project config")
	}
}

func TestWorkspaceRootDetection(t *testing.T) {
	for _, marker := range []string{".git", "WORKSPACE", "WORKSPACE.bazel", "MODULE.bazel"} {
		t.Run(marker, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, marker)
			if marker == ".git" {
				if err := os.MkdirAll(path, 0o755); err != nil {
					t.Fatal(err)
				}
			} else if err := os.WriteFile(path, nil, 0o644); err != nil {
				t.Fatal(err)
			}
			if !isWorkspaceRoot(dir) {
				t.Errorf("directory with %s should be a workspace root", marker)
			}
		})
	}
}
