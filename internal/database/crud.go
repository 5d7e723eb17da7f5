package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"uqflow/pkg/api"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrJobNotFound = errors.New("job not found")

// CreateJob stores a newly submitted job in pending state and returns its id.
func CreateJob(ctx context.Context, db *gorm.DB, description api.JobDescription) (int, error) {
	raw, err := json.Marshal(description)
	if err != nil {
		return 0, fmt.Errorf("failed to encode job description: %w", err)
	}

	job := Job{
		Name:        description.Name,
		Status:      api.JobPending,
		Description: datatypes.JSON(raw),
		CreateTime:  time.Now(),
	}
	if err := db.WithContext(ctx).Create(&job).Error; err != nil {
		return 0, fmt.Errorf("failed to create job: %w", err)
	}
	return job.Id, nil
}

func GetJob(ctx context.Context, db *gorm.DB, id int) (Job, error) {
	var job Job
	if err := db.WithContext(ctx).First(&job, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Job{}, fmt.Errorf("%w: %d", ErrJobNotFound, id)
		}
		return Job{}, fmt.Errorf("failed to load job %d: %w", id, err)
	}
	return job, nil
}

// ListJobs returns jobs newest first. Unless all is set, only pending and
// running jobs are included.
func ListJobs(ctx context.Context, db *gorm.DB, all bool) ([]Job, error) {
	query := db.WithContext(ctx).Order("id desc")
	if !all {
		query = query.Where("status IN ?", []string{api.JobPending, api.JobRunning})
	}

	var jobs []Job
	if err := query.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// MarkJobRunning flips a pending job to running and stamps its start time.
func MarkJobRunning(ctx context.Context, db *gorm.DB, id int) error {
	return updateJob(ctx, db, id, map[string]any{
		"status":     api.JobRunning,
		"start_time": sql.NullTime{Time: time.Now(), Valid: true},
	})
}

// MarkJobFinished records a terminal status with the paths of the captured
// output streams.
func MarkJobFinished(ctx context.Context, db *gorm.DB, id int, status, reason, stdoutPath, stderrPath string, outputs []api.JobOutput) error {
	updates := map[string]any{
		"status":        status,
		"status_reason": reason,
		"end_time":      sql.NullTime{Time: time.Now(), Valid: true},
		"stdout_path":   stdoutPath,
		"stderr_path":   stderrPath,
	}
	if len(outputs) > 0 {
		raw, err := json.Marshal(outputs)
		if err != nil {
			return fmt.Errorf("failed to encode job outputs: %w", err)
		}
		updates["outputs"] = datatypes.JSON(raw)
	}
	return updateJob(ctx, db, id, updates)
}

// MarkJobDeleted cancels a job unless it already reached a terminal state.
func MarkJobDeleted(ctx context.Context, db *gorm.DB, id int) error {
	result := db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status IN ?", id, []string{api.JobPending, api.JobRunning}).
		Updates(map[string]any{
			"status":   api.JobDeleted,
			"end_time": sql.NullTime{Time: time.Now(), Valid: true},
		})
	if result.Error != nil {
		return fmt.Errorf("failed to delete job %d: %w", id, result.Error)
	}
	return nil
}

func updateJob(ctx context.Context, db *gorm.DB, id int, updates map[string]any) error {
	result := db.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update job %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrJobNotFound, id)
	}
	return nil
}

// ToAPI converts a stored job to its wire form.
func (j Job) ToAPI() (api.Job, error) {
	job := api.Job{
		Id:           j.Id,
		Name:         j.Name,
		Status:       j.Status,
		StatusReason: j.StatusReason,
	}

	if len(j.Description) > 0 {
		var description api.JobDescription
		if err := json.Unmarshal(j.Description, &description); err != nil {
			return api.Job{}, fmt.Errorf("failed to decode description of job %d: %w", j.Id, err)
		}
		job.Tasks = description.Tasks
	}

	events := &api.JobEvents{CreateTime: j.CreateTime.Unix()}
	if j.StartTime.Valid {
		events.StartTime = j.StartTime.Time.Unix()
	}
	if j.EndTime.Valid {
		events.EndTime = j.EndTime.Time.Unix()
	}
	job.Events = events

	if len(j.Outputs) > 0 {
		if err := json.Unmarshal(j.Outputs, &job.Outputs); err != nil {
			return api.Job{}, fmt.Errorf("failed to decode outputs of job %d: %w", j.Id, err)
		}
	}

	return job, nil
}
