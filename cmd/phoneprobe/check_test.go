package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/nao1215/phoneprobe/internal/config"
	"github.com/nao1215/phoneprobe/internal/model"
)

// TestNewCheckCmd tests the check command creation.
func TestNewCheckCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCheckCmd()
	if cmd.Use != "check <platform> <username>..." {
		t.Errorf("unexpected use %q", cmd.Use)
	}
	if err := cmd.Args(cmd, []string{"instagram"}); err == nil {
		t.Error("expected an error without usernames")
	}
	if cmd.Flags().Lookup("no-history") != nil {
		t.Error("expected no history flag on check")
	}
}

// TestBuildCheckConfig tests the positional arguments.
func TestBuildCheckConfig(t *testing.T) {
	t.Parallel()

	cmd := NewCheckCmd()
	cfg, err := buildCheckConfig(cmd, []string{"x", "alice", "bob"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Platform != "x" || len(cfg.Targets) != 2 || cfg.SaveToDB {
		t.Errorf("unexpected config %+v", cfg)
	}
}

// TestRunCheck probes given usernames against a local platform.
func TestRunCheck(t *testing.T) {
	t.Parallel()

	srv := newProfileServer(t, "alice")

	cfg := config.NewConfig()
	cfg.Platform = "local"
	cfg.Targets = []string{"alice", "bob", "alice"}
	cfg.SaveToDB = false
	cfg.File = localPlatformFile(t, srv.URL)

	var stdout, stderr bytes.Buffer
	if err := runCheck(context.Background(), cfg, &stdout, &stderr, strings.NewReader(""), discardLogger()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var records []model.ProfileRecord
	if err := json.Unmarshal(stdout.Bytes(), &records); err != nil {
		t.Fatalf("expected JSON records, got %v: %s", err, stdout.String())
	}
	if len(records) != 1 || records[0].Candidate != "alice" {
		t.Errorf("expected one record for alice, got %+v", records)
	}
	if !strings.Contains(stderr.String(), "1 found, 1 not found") {
		t.Errorf("expected duplicates dropped in the summary, got %q", stderr.String())
	}
}
