package prominence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"uqflow/pkg/api"

	"github.com/go-resty/resty/v2"
)

const maxRetries = 5

// Client is a REST client for a PROMINENCE server. Transient server errors
// (HTTP 500) are retried.
type Client struct {
	http   *resty.Client
	tokens TokenProvider
}

func NewClient(baseURL string, tokens TokenProvider) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetRetryCount(maxRetries).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusInternalServerError
		})

	return &Client{http: client, tokens: tokens}
}

// request builds a request with the Authorization header. The token is read
// per request because it may have been refreshed externally.
func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, err
	}
	return c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "token "+token), nil
}

// SubmitJob creates a job and returns its identifier.
func (c *Client) SubmitJob(ctx context.Context, job api.JobDescription) (int, error) {
	req, err := c.request(ctx)
	if err != nil {
		return 0, err
	}

	res, err := req.SetBody(job).Post("/jobs")
	if err != nil {
		return 0, fmt.Errorf("failed to submit job: %w", err)
	}
	if res.StatusCode() != http.StatusCreated {
		return 0, fmt.Errorf("failed to submit job: %s: %s", res.Status(), res.String())
	}

	var created api.SubmitJobResponse
	if err := json.Unmarshal(res.Body(), &created); err != nil {
		return 0, fmt.Errorf("failed to parse job submission response: %w", err)
	}
	return created.Id, nil
}

// GetJob fetches the status record of a single job. With all set, completed
// jobs are included in the lookup.
func (c *Client) GetJob(ctx context.Context, id int, all bool) (api.Job, error) {
	jobs, err := c.getJobs(ctx, "/jobs/"+strconv.Itoa(id), all)
	if err != nil {
		return api.Job{}, err
	}
	if len(jobs) == 0 {
		return api.Job{}, fmt.Errorf("job %d not found", id)
	}
	return jobs[0], nil
}

// ListJobs fetches the caller's jobs, active ones only unless all is set.
func (c *Client) ListJobs(ctx context.Context, all bool) ([]api.Job, error) {
	return c.getJobs(ctx, "/jobs", all)
}

func (c *Client) getJobs(ctx context.Context, path string, all bool) ([]api.Job, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	if all {
		req.SetQueryParam("all", "true")
	}

	res, err := req.Get(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get jobs: %w", err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("failed to get jobs: %s: %s", res.Status(), res.String())
	}

	var jobs []api.Job
	if err := json.Unmarshal(res.Body(), &jobs); err != nil {
		return nil, fmt.Errorf("failed to parse job list: %w", err)
	}
	return jobs, nil
}

// Stdout fetches the standard output of a job.
func (c *Client) Stdout(ctx context.Context, id int) (string, error) {
	return c.jobLog(ctx, id, "stdout")
}

// Stderr fetches the standard error of a job.
func (c *Client) Stderr(ctx context.Context, id int) (string, error) {
	return c.jobLog(ctx, id, "stderr")
}

func (c *Client) jobLog(ctx context.Context, id int, stream string) (string, error) {
	req, err := c.request(ctx)
	if err != nil {
		return "", err
	}

	res, err := req.Get(fmt.Sprintf("/jobs/%d/%s", id, stream))
	if err != nil {
		return "", fmt.Errorf("failed to get job %d %s: %w", id, stream, err)
	}
	if !res.IsSuccess() {
		return "", fmt.Errorf("failed to get job %d %s: %s: %s", id, stream, res.Status(), res.String())
	}
	return res.String(), nil
}

// DeleteJob cancels a job.
func (c *Client) DeleteJob(ctx context.Context, id int) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}

	res, err := req.Delete("/jobs/" + strconv.Itoa(id))
	if err != nil {
		return fmt.Errorf("failed to delete job %d: %w", id, err)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("failed to delete job %d: %s: %s", id, res.Status(), res.String())
	}
	return nil
}
