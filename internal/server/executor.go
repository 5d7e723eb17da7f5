package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"uqflow/internal/database"
	"uqflow/internal/messaging"
	"uqflow/internal/storage"
	"uqflow/pkg/api"

	"gorm.io/gorm"
)

// Executor consumes execute tasks from the queue and runs job commands on the
// local machine. Each job gets a scratch directory under dataDir where inline
// inputs are materialized and output streams are captured.
type Executor struct {
	db      *gorm.DB
	store   storage.ObjectStore
	bucket  string
	dataDir string
}

func NewExecutor(db *gorm.DB, store storage.ObjectStore, bucket, dataDir string) *Executor {
	return &Executor{db: db, store: store, bucket: bucket, dataDir: dataDir}
}

// Run processes tasks until the context is cancelled or the task channel is
// closed. Start one Run goroutine per desired level of concurrency.
func (e *Executor) Run(ctx context.Context, tasks <-chan messaging.Task) {
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-tasks:
			if !ok {
				return
			}
			e.handle(ctx, task)
		}
	}
}

func (e *Executor) handle(ctx context.Context, task messaging.Task) {
	var payload messaging.ExecuteJobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		slog.Error("discarding malformed execute task", "error", err)
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting task", "error", err)
		}
		return
	}

	if err := e.execute(ctx, payload.JobId); err != nil {
		slog.Error("job execution failed", "job_id", payload.JobId, "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error nacking task", "job_id", payload.JobId, "error", err)
		}
		return
	}

	if err := task.Ack(); err != nil {
		slog.Error("error acking task", "job_id", payload.JobId, "error", err)
	}
}

func (e *Executor) execute(ctx context.Context, jobId int) error {
	job, err := database.GetJob(ctx, e.db, jobId)
	if err != nil {
		return err
	}

	// The job may have been cancelled between submission and pickup.
	if job.Status != api.JobPending {
		slog.Info("skipping job in non-pending state", "job_id", jobId, "status", job.Status)
		return nil
	}

	var description api.JobDescription
	if err := json.Unmarshal(job.Description, &description); err != nil {
		return fmt.Errorf("failed to decode description of job %d: %w", jobId, err)
	}

	scratch := filepath.Join(e.dataDir, "jobs", strconv.Itoa(jobId))
	if err := os.MkdirAll(scratch, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create scratch directory for job %d: %w", jobId, err)
	}

	if err := materializeInputs(scratch, description.Inputs); err != nil {
		return e.finish(ctx, jobId, api.JobFailed, err.Error(), "", "", nil)
	}

	if err := database.MarkJobRunning(ctx, e.db, jobId); err != nil {
		return err
	}

	slog.Info("job started", "job_id", jobId, "name", job.Name, "tasks", len(description.Tasks))

	stdoutPath := filepath.Join(scratch, "stdout.log")
	stderrPath := filepath.Join(scratch, "stderr.log")

	if err := e.runTasks(ctx, description, scratch, stdoutPath, stderrPath); err != nil {
		return e.finish(ctx, jobId, api.JobFailed, err.Error(), stdoutPath, stderrPath, nil)
	}

	outputs, err := e.stageOutputs(ctx, jobId, description, scratch)
	if err != nil {
		return e.finish(ctx, jobId, api.JobFailed, err.Error(), stdoutPath, stderrPath, nil)
	}

	return e.finish(ctx, jobId, api.JobCompleted, "", stdoutPath, stderrPath, outputs)
}

func (e *Executor) finish(ctx context.Context, jobId int, status, reason, stdoutPath, stderrPath string, outputs []api.JobOutput) error {
	if err := database.MarkJobFinished(ctx, e.db, jobId, status, reason, stdoutPath, stderrPath, outputs); err != nil {
		return err
	}
	slog.Info("job finished", "job_id", jobId, "status", status, "reason", reason)
	return nil
}

func (e *Executor) runTasks(ctx context.Context, description api.JobDescription, scratch, stdoutPath, stderrPath string) error {
	stdout, err := os.Create(stdoutPath)
	if err != nil {
		return fmt.Errorf("failed to create stdout log: %w", err)
	}
	defer stdout.Close()

	stderr, err := os.Create(stderrPath)
	if err != nil {
		return fmt.Errorf("failed to create stderr log: %w", err)
	}
	defer stderr.Close()

	for i, task := range description.Tasks {
		dir := scratch
		// A workdir that exists locally means the job operates on a shared
		// filesystem instead of the scratch directory.
		if task.Workdir != "" {
			if info, err := os.Stat(task.Workdir); err == nil && info.IsDir() {
				dir = task.Workdir
			}
		}

		cmd := exec.CommandContext(ctx, "/bin/sh", "-c", task.Cmd)
		cmd.Dir = dir
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		cmd.Env = os.Environ()
		for k, v := range task.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}

		if err := cmd.Run(); err != nil {
			return fmt.Errorf("task %d failed: %w", i, err)
		}
	}

	return nil
}

func (e *Executor) stageOutputs(ctx context.Context, jobId int, description api.JobDescription, scratch string) ([]api.JobOutput, error) {
	var outputs []api.JobOutput
	for _, name := range description.OutputFiles {
		path := filepath.Join(scratch, name)
		if len(description.Tasks) > 0 && description.Tasks[0].Workdir != "" {
			if info, err := os.Stat(description.Tasks[0].Workdir); err == nil && info.IsDir() {
				path = filepath.Join(description.Tasks[0].Workdir, name)
			}
		}

		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("declared output file %s is missing: %w", name, err)
		}

		key := fmt.Sprintf("jobs/%d/%s", jobId, name)
		err = e.store.PutObject(ctx, e.bucket, key, file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to stage output file %s: %w", name, err)
		}

		outputs = append(outputs, api.JobOutput{
			Name: name,
			URL:  fmt.Sprintf("%s/%s", e.bucket, key),
		})
	}
	return outputs, nil
}

func materializeInputs(dir string, inputs []api.InputFile) error {
	for _, input := range inputs {
		data, err := base64.StdEncoding.DecodeString(input.Content)
		if err != nil {
			return fmt.Errorf("input file %s is not valid base64: %w", input.Filename, err)
		}
		if err := os.WriteFile(filepath.Join(dir, input.Filename), data, 0644); err != nil {
			return fmt.Errorf("failed to write input file %s: %w", input.Filename, err)
		}
	}
	return nil
}
