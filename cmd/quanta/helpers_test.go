package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quantaml/quanta/internal/logger"
)

func TestLoadLabelsFromURL(t *testing.T) {
	// Not parallel: mutates the shared labelsPath flag variable.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tench\ngoldfish\n"))
	}))
	defer srv.Close()

	old := labelsPath
	labelsPath = srv.URL
	defer func() { labelsPath = old }()

	set, err := loadLabels(context.Background())
	if err != nil {
		t.Fatalf("loadLabels: %v", err)
	}
	if set.Len() != 2 || set.Name(1) != "goldfish" {
		t.Errorf("labels = %v", set.Names())
	}
}

func TestLoadLabelsFromFile(t *testing.T) {
	// Not parallel: mutates the shared labelsPath flag variable.
	path := filepath.Join(t.TempDir(), "labels.txt")
	if err := os.WriteFile(path, []byte("cat\ndog\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	old := labelsPath
	labelsPath = path
	defer func() { labelsPath = old }()

	set, err := loadLabels(context.Background())
	if err != nil {
		t.Fatalf("loadLabels: %v", err)
	}
	if set.Len() != 2 || set.Name(0) != "cat" {
		t.Errorf("labels = %v", set.Names())
	}
}

func TestLoadConfigFileMalformedYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("labels_path: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	log := logger.JSON(&buf, logger.ParseLevel("warn"))

	if cfg := loadConfigFile(path, log); cfg != (Config{}) {
		t.Errorf("config = %+v, want zero", cfg)
	}
	if !strings.Contains(buf.String(), "malformed config") {
		t.Errorf("expected a malformed-config warning, log output: %s", buf.String())
	}
}

func TestLoadConfigFileMissingIsSilent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.JSON(&buf, logger.ParseLevel("warn"))

	if cfg := loadConfigFile(filepath.Join(t.TempDir(), "config.yaml"), log); cfg != (Config{}) {
		t.Errorf("config = %+v, want zero", cfg)
	}
	if buf.Len() != 0 {
		t.Errorf("missing file should not warn, log output: %s", buf.String())
	}
}

func TestLoadConfigFileValid(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("labels_path: /tmp/labels.txt\ninput_size: 299\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	cfg := loadConfigFile(path, logger.JSON(&buf, logger.ParseLevel("warn")))
	if cfg.LabelsPath != "/tmp/labels.txt" {
		t.Errorf("LabelsPath = %q", cfg.LabelsPath)
	}
	if cfg.InputSize == nil || *cfg.InputSize != 299 {
		t.Errorf("InputSize = %v", cfg.InputSize)
	}
	if buf.Len() != 0 {
		t.Errorf("valid file should not warn, log output: %s", buf.String())
	}
}
