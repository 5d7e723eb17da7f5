package actions

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ExecuteLocal runs a shell command directly in each run directory. It is the
// no-service path used by tests and small local studies. When OutputFile is
// set, the command's stdout is written there inside the run directory.
type ExecuteLocal struct {
	Command    string
	OutputFile string
}

var _ Action = (*ExecuteLocal)(nil)

func (a *ExecuteLocal) ActOnDir(dir string) (Status, error) {
	if a.Command == "" {
		return nil, fmt.Errorf("local execution requires a command")
	}
	return &localStatus{command: a.Command, dir: dir, outputFile: a.OutputFile}, nil
}

type localStatus struct {
	command    string
	dir        string
	outputFile string

	started   bool
	succeeded bool
}

// Start runs the command to completion. Local runs are synchronous; the
// poll/finalise steps become no-ops.
func (s *localStatus) Start(ctx context.Context) error {
	if s.started {
		return fmt.Errorf("local run in %s has already started", s.dir)
	}
	s.started = true

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", s.command)
	cmd.Dir = s.dir

	out, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("command %q failed in %s: %w", s.command, s.dir, err)
	}

	if s.outputFile != "" {
		path := filepath.Join(s.dir, s.outputFile)
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return fmt.Errorf("failed to write output %s: %w", path, err)
		}
	}

	s.succeeded = true
	return nil
}

func (s *localStatus) Finished(ctx context.Context) (bool, error) { return s.started, nil }

func (s *localStatus) Succeeded() bool { return s.succeeded }

func (s *localStatus) Finalise(ctx context.Context) error {
	if !s.succeeded {
		return fmt.Errorf("cannot finalise local run in %s: it did not succeed", s.dir)
	}
	return nil
}
