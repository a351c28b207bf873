package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/ShayCichocki/sprintguardian/internal/config"
	"github.com/ShayCichocki/sprintguardian/internal/orchestrator"
	"github.com/ShayCichocki/sprintguardian/internal/orchestrator/policy"
)

func TestReadBrainDump(t *testing.T) {
	file := filepath.Join(t.TempDir(), "dump.txt")
	if err := os.WriteFile(file, []byte("from a file\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		args    []string
		file    string
		stdin   string
		want    string
		wantErr error
	}{
		{name: "args are joined", args: []string{"need", "a", "login", "page"}, want: "need a login page"},
		{name: "file wins over args", args: []string{"ignored"}, file: file, want: "from a file\n"},
		{name: "piped stdin", stdin: "piped dump", want: "piped dump"},
		{name: "blank args", args: []string{"  "}, wantErr: orchestrator.ErrEmptyInput},
		{name: "blank stdin", stdin: "\n\t", wantErr: orchestrator.ErrEmptyInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readBrainDump(tt.args, tt.file, strings.NewReader(tt.stdin))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadBrainDump_MissingFile(t *testing.T) {
	_, err := readBrainDump(nil, filepath.Join(t.TempDir(), "nope.txt"), strings.NewReader(""))
	if err == nil || !strings.Contains(err.Error(), "read brain dump") {
		t.Errorf("expected read error, got %v", err)
	}
}

func TestPolicyConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.PolicyMode = "strict"
	cfg.Pipeline.BlockingLabel = "SEC-HOLD"

	p, err := policyConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if p.Gatekeeper.Mode != policy.ModeStrict {
		t.Errorf("mode = %q, want strict", p.Gatekeeper.Mode)
	}
	if p.Gatekeeper.BlockingLabel != "SEC-HOLD" {
		t.Errorf("blocking label = %q", p.Gatekeeper.BlockingLabel)
	}

	cfg.Pipeline.PolicyMode = "lenient"
	if _, err := policyConfig(cfg); err == nil {
		t.Error("expected an invalid mode to be rejected")
	}
}

func TestAdapterOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Generation.Timeout = 30 * time.Second
	cfg.Generation.RateLimit = 2
	cfg.Generation.Retry.MaxAttempts = 5

	opts := adapterOptions(cfg)
	if opts.Timeout != 30*time.Second {
		t.Errorf("timeout = %v", opts.Timeout)
	}
	if opts.RateLimit != 2 || opts.Burst != cfg.Generation.Burst {
		t.Errorf("rate = %v burst = %d", opts.RateLimit, opts.Burst)
	}
	if opts.Retry.MaxAttempts != 5 || opts.Retry.Multiplier != cfg.Generation.Retry.Multiplier {
		t.Errorf("retry = %+v", opts.Retry)
	}
	if opts.MaxTokens != cfg.Generation.MaxTokens {
		t.Errorf("max tokens = %d", opts.MaxTokens)
	}
}

func TestCreateBackend_NoKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	cfg := config.Default()
	cfg.Backend.APIKey = ""

	_, err := createBackend(cfg)
	if !errors.Is(err, config.ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestOpenHistory(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.HistoryDB = filepath.Join(t.TempDir(), "runs.db")

	db, err := openHistory(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	runs, err := db.ListRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("expected empty history, got %d runs", len(runs))
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("a much\nlonger   summary", 8); got != "a much …" {
		t.Errorf("got %q", got)
	}
}

func TestFormatLabels_HighlightsConfiguredBlockingLabel(t *testing.T) {
	prev := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = prev }()

	got := formatLabels([]string{"auth", "BLOCKED", "sec-hold"}, "SEC-HOLD")
	if !strings.Contains(got, "auth, BLOCKED, ") {
		t.Errorf("non-blocking labels should be plain: %q", got)
	}
	if !strings.Contains(got, "sec-hold") || strings.Contains(got, ", sec-hold") {
		t.Errorf("blocking label not highlighted: %q", got)
	}

	if got := formatLabels([]string{"auth"}, ""); got != "auth" {
		t.Errorf("formatLabels with no blocking label = %q", got)
	}
}

func TestBlockingLabel(t *testing.T) {
	cfg := config.Default()
	if got := blockingLabel(cfg); got != "BLOCKED" {
		t.Errorf("default blockingLabel = %q, want BLOCKED", got)
	}
	cfg.Pipeline.BlockingLabel = "SEC-HOLD"
	if got := blockingLabel(cfg); got != "SEC-HOLD" {
		t.Errorf("blockingLabel = %q, want SEC-HOLD", got)
	}
}
