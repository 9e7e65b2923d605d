// Package simulator runs the external physics simulator on demos.
package simulator

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	scoreservice "github.com/edelkas/inne-sub000/app/modules/score/application"
	"github.com/edelkas/inne-sub000/pkg/attr"
	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/semaphore"
)

// Config locates the simulator binary.
type Config struct {
	Path string
	// Args precede the work directory on the command line.
	Args    []string
	Timeout time.Duration
	// Concurrency bounds the simultaneous runs.
	Concurrency int64
	// TempDir is the parent of the per-run directories, os.TempDir when empty.
	TempDir string
}

// Exec implements scoreservice.Simulator with a subprocess. Each run gets
// its own directory holding map_<i> and inputs_<i> files; the process prints
// a JSON object with valid, scores and fractions arrays as its last line.
type Exec struct {
	cfg    Config
	sem    *semaphore.Weighted
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Exec {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exec{cfg: cfg, sem: semaphore.NewWeighted(cfg.Concurrency), logger: logger}
}

var _ scoreservice.Simulator = (*Exec)(nil)

func (e *Exec) Run(ctx context.Context, maps [][]byte, demos [][]byte) (*scoreservice.SimResult, error) {
	const op = "simulator.Run"
	if len(maps) == 0 || len(maps) != len(demos) {
		return nil, npp.Errorf(op, npp.ErrFormat, "%d maps for %d demos", len(maps), len(demos))
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, npp.Errorf(op, npp.ErrTransient, "wait for a slot: %v", err)
	}
	defer e.sem.Release(1)

	dir, err := os.MkdirTemp(e.cfg.TempDir, "nsim-")
	if err != nil {
		return nil, npp.Errorf(op, npp.ErrTransient, "create work dir: %v", err)
	}
	defer os.RemoveAll(dir)

	for i := range maps {
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("map_%d", i)), maps[i], 0o600); err != nil {
			return nil, npp.Errorf(op, npp.ErrTransient, "write map: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("inputs_%d", i)), demos[i], 0o600); err != nil {
			return nil, npp.Errorf(op, npp.ErrTransient, "write inputs: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	args := append(append([]string(nil), e.cfg.Args...), dir)
	cmd := exec.CommandContext(ctx, e.cfg.Path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err = cmd.Run()
	e.logger.DebugContext(ctx, "Simulation finished",
		attr.ExtractCorrelationID(ctx),
		attr.Duration("elapsed", time.Since(start)),
		attr.Int("levels", len(maps)),
	)
	if ctx.Err() != nil {
		return nil, npp.Errorf(op, npp.ErrTransient, "timed out after %s", e.cfg.Timeout)
	}
	if err != nil {
		return nil, npp.Errorf(op, npp.ErrTransient, "%v: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseOutput(op, stdout.String(), len(maps))
}

// parseOutput reads the JSON summary on the last non-empty line.
func parseOutput(op, out string, levels int) (*scoreservice.SimResult, error) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	last := lines[len(lines)-1]
	if !gjson.Valid(last) {
		return nil, npp.Errorf(op, npp.ErrTransient, "unparseable output %q", last)
	}

	doc := gjson.Parse(last)
	res := &scoreservice.SimResult{}
	for _, v := range doc.Get("valid").Array() {
		res.Valid = append(res.Valid, v.Bool())
	}
	for _, v := range doc.Get("scores").Array() {
		res.Scores = append(res.Scores, v.Float())
	}
	for _, v := range doc.Get("fractions").Array() {
		res.Fractions = append(res.Fractions, v.Float())
	}
	if len(res.Valid) != levels {
		return nil, npp.Errorf(op, npp.ErrTransient, "%d validity flags for %d levels", len(res.Valid), levels)
	}
	return res, nil
}
