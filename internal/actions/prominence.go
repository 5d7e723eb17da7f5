package actions

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"uqflow/internal/prominence"
	"uqflow/pkg/api"
)

// ExecuteProminence submits one PROMINENCE job per run directory. There are
// two ways outputs flow back:
//
//  1. Inline: small input files are embedded in the job description and the
//     simulation prints its output to stdout, which is written to OutputFile
//     after completion.
//  2. Shared storage: the job description carries a storage mount (e.g.
//     B2DROP) with the same mount point on both sides, and no inputs or
//     output file are configured here.
type ExecuteProminence struct {
	client     *prominence.Client
	template   api.JobDescription
	inputFiles []string
	outputFile string
}

var _ Action = (*ExecuteProminence)(nil)

// NewExecuteProminence loads the job description template from a JSON config
// file. inputFiles are names relative to each run directory; outputFile, when
// non-empty, receives the job's stdout inside each run directory.
func NewExecuteProminence(client *prominence.Client, jobConfig string, inputFiles []string, outputFile string) (*ExecuteProminence, error) {
	raw, err := os.ReadFile(jobConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to read job config %s: %w", jobConfig, err)
	}

	var template api.JobDescription
	if err := json.Unmarshal(raw, &template); err != nil {
		return nil, fmt.Errorf("failed to parse job config %s: %w", jobConfig, err)
	}
	if len(template.Tasks) == 0 {
		return nil, fmt.Errorf("job config %s has no tasks", jobConfig)
	}

	return &ExecuteProminence{
		client:     client,
		template:   template,
		inputFiles: inputFiles,
		outputFile: outputFile,
	}, nil
}

func (a *ExecuteProminence) ActOnDir(dir string) (Status, error) {
	job := a.template
	job.Name = filepath.Base(dir)
	job.Tasks = append([]api.Task(nil), a.template.Tasks...)
	for i := range job.Tasks {
		job.Tasks[i].Workdir = dir
	}

	if len(a.inputFiles) > 0 {
		inputs, err := inlineInputs(dir, a.inputFiles)
		if err != nil {
			return nil, err
		}
		job.Inputs = inputs
	}

	outputPath := ""
	if a.outputFile != "" {
		outputPath = filepath.Join(dir, a.outputFile)
	}

	return &prominenceStatus{client: a.client, job: job, outputPath: outputPath}, nil
}

func inlineInputs(dir string, names []string) ([]api.InputFile, error) {
	inputs := make([]api.InputFile, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file %s: %w", path, err)
		}
		inputs = append(inputs, api.InputFile{
			Filename: filepath.Base(name),
			Content:  base64.StdEncoding.EncodeToString(data),
		})
	}
	return inputs, nil
}

type prominenceStatus struct {
	client     *prominence.Client
	job        api.JobDescription
	outputPath string

	id        int
	started   bool
	succeeded bool
}

func (s *prominenceStatus) Start(ctx context.Context) error {
	if s.started {
		return fmt.Errorf("job %s has already started", s.job.Name)
	}

	id, err := s.client.SubmitJob(ctx, s.job)
	if err != nil {
		return err
	}
	s.id = id
	s.started = true
	return nil
}

func (s *prominenceStatus) Finished(ctx context.Context) (bool, error) {
	job, err := s.client.GetJob(ctx, s.id, true)
	if err != nil {
		return false, fmt.Errorf("error checking status of job %d: %w", s.id, err)
	}

	switch job.Status {
	case api.JobCompleted:
		s.succeeded = true
		return true, nil
	case api.JobPending, api.JobRunning:
		return false, nil
	case "":
		return false, nil
	default:
		return true, nil
	}
}

func (s *prominenceStatus) Succeeded() bool { return s.succeeded }

// Finalise writes the job's stdout to the run's output file. With shared
// storage there is nothing to retrieve.
func (s *prominenceStatus) Finalise(ctx context.Context) error {
	if !s.succeeded {
		return fmt.Errorf("cannot finalise job %d: it did not succeed", s.id)
	}
	if s.outputPath == "" {
		return nil
	}

	stdout, err := s.client.Stdout(ctx, s.id)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.outputPath, []byte(stdout), 0o644); err != nil {
		return fmt.Errorf("failed to write output %s: %w", s.outputPath, err)
	}
	return nil
}
