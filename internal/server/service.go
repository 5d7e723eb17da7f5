package server

import (
	"errors"
	"log/slog"
	"net/http"
	"os"

	"uqflow/internal/database"
	"uqflow/internal/messaging"
	"uqflow/pkg/api"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// Service implements the slice of the PROMINENCE REST API that the campaign
// tooling uses: job submission, status lookup, logs and cancellation.
type Service struct {
	db        *gorm.DB
	publisher messaging.Publisher
}

func NewService(db *gorm.DB, publisher messaging.Publisher) *Service {
	return &Service{db: db, publisher: publisher}
}

func (s *Service) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", RestCreatedHandler(s.SubmitJob))
		r.Get("/", RestHandler(s.ListJobs))
		r.Get("/{job_id}", RestHandler(s.GetJob))
		r.Get("/{job_id}/stdout", s.jobLogHandler(func(j database.Job) string { return j.StdoutPath }))
		r.Get("/{job_id}/stderr", s.jobLogHandler(func(j database.Job) string { return j.StderrPath }))
		r.Delete("/{job_id}", RestHandler(s.DeleteJob))
	})
}

func (s *Service) SubmitJob(r *http.Request) (any, error) {
	description, err := ParseRequest[api.JobDescription](r)
	if err != nil {
		return nil, err
	}

	if len(description.Tasks) == 0 {
		return nil, CodedErrorf(http.StatusBadRequest, "job must have at least one task")
	}
	for _, task := range description.Tasks {
		if task.Cmd == "" {
			return nil, CodedErrorf(http.StatusBadRequest, "job task is missing a cmd")
		}
	}

	ctx := r.Context()

	id, err := database.CreateJob(ctx, s.db, description)
	if err != nil {
		slog.Error("error creating job", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create job entry")
	}

	if err := s.publisher.PublishExecuteJobTask(ctx, messaging.ExecuteJobPayload{JobId: id}); err != nil {
		slog.Error("error publishing execute task", "job_id", id, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to queue job for execution")
	}

	slog.Info("job submitted", "job_id", id, "name", description.Name)
	return api.SubmitJobResponse{Id: id}, nil
}

type listJobsQuery struct {
	All bool `schema:"all"`
}

func (s *Service) ListJobs(r *http.Request) (any, error) {
	query, err := ParseRequestQueryParams[listJobsQuery](r)
	if err != nil {
		return nil, err
	}

	jobs, err := database.ListJobs(r.Context(), s.db, query.All)
	if err != nil {
		slog.Error("error listing jobs", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving jobs")
	}

	return s.toAPIJobs(jobs)
}

// GetJob returns a one-element array, mirroring the PROMINENCE API. Terminal
// jobs are only visible with the all query parameter set.
func (s *Service) GetJob(r *http.Request) (any, error) {
	id, err := URLParamInt(r, "job_id")
	if err != nil {
		return nil, err
	}

	query, err := ParseRequestQueryParams[listJobsQuery](r)
	if err != nil {
		return nil, err
	}

	job, err := s.loadJob(r, id)
	if err != nil {
		return nil, err
	}

	if !query.All && api.Terminal(job.Status) {
		return []api.Job{}, nil
	}

	return s.toAPIJobs([]database.Job{job})
}

func (s *Service) DeleteJob(r *http.Request) (any, error) {
	id, err := URLParamInt(r, "job_id")
	if err != nil {
		return nil, err
	}

	if _, err := s.loadJob(r, id); err != nil {
		return nil, err
	}

	if err := database.MarkJobDeleted(r.Context(), s.db, id); err != nil {
		slog.Error("error deleting job", "job_id", id, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error deleting job")
	}

	return nil, nil
}

func (s *Service) jobLogHandler(path func(database.Job) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := URLParamInt(r, "job_id")
		if err != nil {
			writeError(w, err)
			return
		}

		job, err := s.loadJob(r, id)
		if err != nil {
			writeError(w, err)
			return
		}

		logPath := path(job)
		if logPath == "" {
			writeError(w, CodedErrorf(http.StatusNotFound, "no log available for job %d", id))
			return
		}

		data, err := os.ReadFile(logPath)
		if err != nil {
			slog.Error("error reading job log", "job_id", id, "path", logPath, "error", err)
			writeError(w, CodedErrorf(http.StatusInternalServerError, "error reading job log"))
			return
		}

		w.Header().Set("Content-Type", "text/plain")
		if _, err := w.Write(data); err != nil {
			slog.Error("error writing job log response", "job_id", id, "error", err)
		}
	}
}

func (s *Service) loadJob(r *http.Request, id int) (database.Job, error) {
	job, err := database.GetJob(r.Context(), s.db, id)
	if err != nil {
		if errors.Is(err, database.ErrJobNotFound) {
			return database.Job{}, CodedErrorf(http.StatusNotFound, "job %d not found", id)
		}
		slog.Error("error getting job", "job_id", id, "error", err)
		return database.Job{}, CodedErrorf(http.StatusInternalServerError, "error retrieving job record")
	}
	return job, nil
}

func (s *Service) toAPIJobs(jobs []database.Job) ([]api.Job, error) {
	out := make([]api.Job, 0, len(jobs))
	for _, job := range jobs {
		converted, err := job.ToAPI()
		if err != nil {
			slog.Error("error converting job record", "job_id", job.Id, "error", err)
			return nil, CodedErrorf(http.StatusInternalServerError, "error converting job record")
		}
		out = append(out, converted)
	}
	return out, nil
}
