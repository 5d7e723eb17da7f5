package server_test

import (
	"context"
	"encoding/base64"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"uqflow/internal/database"
	"uqflow/internal/messaging"
	"uqflow/internal/prominence"
	"uqflow/internal/server"
	"uqflow/internal/storage"
	"uqflow/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testBucket = "job-outputs"

func createDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())

	return db
}

type testServer struct {
	client *prominence.Client
	store  *storage.LocalObjectStore
	db     *gorm.DB
}

func startServer(t *testing.T, withExecutor bool) *testServer {
	db := createDB(t)

	queue := messaging.NewInMemoryQueue()
	t.Cleanup(queue.Close)

	store, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.CreateBucket(context.Background(), testBucket))

	if withExecutor {
		executor := server.NewExecutor(db, store, testBucket, t.TempDir())
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		go executor.Run(ctx, queue.Tasks())
	}

	router := chi.NewRouter()
	server.NewService(db, queue).AddRoutes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	client := prominence.NewClient(srv.URL, prominence.StaticToken("test-token"))

	return &testServer{client: client, store: store, db: db}
}

func waitForJob(t *testing.T, client *prominence.Client, id int) api.Job {
	ctx := context.Background()
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		job, err := client.GetJob(ctx, id, true)
		require.NoError(t, err)
		if api.Terminal(job.Status) {
			return job
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("job %d did not finish in time", id)
	return api.Job{}
}

func TestJobLifecycle(t *testing.T) {
	ts := startServer(t, true)
	ctx := context.Background()

	id, err := ts.client.SubmitJob(ctx, api.JobDescription{
		Name: "run_1",
		Tasks: []api.Task{{
			Image: "alpine:3.19",
			Cmd:   "cat greeting.txt && printf 'a,b\\n1,2\\n' > out.csv",
		}},
		Inputs: []api.InputFile{{
			Filename: "greeting.txt",
			Content:  base64.StdEncoding.EncodeToString([]byte("hello from job\n")),
		}},
		OutputFiles: []string{"out.csv"},
	})
	require.NoError(t, err)
	assert.Greater(t, id, 0)

	job := waitForJob(t, ts.client, id)
	assert.Equal(t, api.JobCompleted, job.Status)
	assert.Equal(t, "run_1", job.Name)
	require.NotNil(t, job.Events)
	assert.NotZero(t, job.Events.CreateTime)
	assert.NotZero(t, job.Events.EndTime)

	stdout, err := ts.client.Stdout(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello from job\n", stdout)

	require.Len(t, job.Outputs, 1)
	assert.Equal(t, "out.csv", job.Outputs[0].Name)

	key := strings.TrimPrefix(job.Outputs[0].URL, testBucket+"/")
	obj, err := ts.store.GetObject(ctx, testBucket, key)
	require.NoError(t, err)
	defer obj.Close()
	data, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
}

func TestFailedJob(t *testing.T) {
	ts := startServer(t, true)
	ctx := context.Background()

	id, err := ts.client.SubmitJob(ctx, api.JobDescription{
		Name:  "broken",
		Tasks: []api.Task{{Cmd: "echo oops >&2; exit 3"}},
	})
	require.NoError(t, err)

	job := waitForJob(t, ts.client, id)
	assert.Equal(t, api.JobFailed, job.Status)
	assert.Contains(t, job.StatusReason, "task 0 failed")

	stderr, err := ts.client.Stderr(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "oops\n", stderr)
}

func TestMissingOutputFile(t *testing.T) {
	ts := startServer(t, true)
	ctx := context.Background()

	id, err := ts.client.SubmitJob(ctx, api.JobDescription{
		Name:        "no_output",
		Tasks:       []api.Task{{Cmd: "true"}},
		OutputFiles: []string{"never_written.csv"},
	})
	require.NoError(t, err)

	job := waitForJob(t, ts.client, id)
	assert.Equal(t, api.JobFailed, job.Status)
	assert.Contains(t, job.StatusReason, "never_written.csv")
}

func TestListAndDeleteJobs(t *testing.T) {
	// No executor, so jobs stay pending.
	ts := startServer(t, false)
	ctx := context.Background()

	id1, err := ts.client.SubmitJob(ctx, api.JobDescription{Name: "one", Tasks: []api.Task{{Cmd: "true"}}})
	require.NoError(t, err)
	id2, err := ts.client.SubmitJob(ctx, api.JobDescription{Name: "two", Tasks: []api.Task{{Cmd: "true"}}})
	require.NoError(t, err)

	jobs, err := ts.client.ListJobs(ctx, false)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	require.NoError(t, ts.client.DeleteJob(ctx, id1))

	jobs, err = ts.client.ListJobs(ctx, false)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, id2, jobs[0].Id)

	deleted, err := ts.client.GetJob(ctx, id1, true)
	require.NoError(t, err)
	assert.Equal(t, api.JobDeleted, deleted.Status)

	// Without all, terminal jobs are hidden.
	_, err = ts.client.GetJob(ctx, id1, false)
	assert.ErrorContains(t, err, "not found")
}

func TestSubmitValidation(t *testing.T) {
	ts := startServer(t, false)
	ctx := context.Background()

	_, err := ts.client.SubmitJob(ctx, api.JobDescription{Name: "empty"})
	assert.ErrorContains(t, err, "at least one task")

	_, err = ts.client.SubmitJob(ctx, api.JobDescription{
		Name:  "no_cmd",
		Tasks: []api.Task{{Image: "alpine:3.19"}},
	})
	assert.ErrorContains(t, err, "missing a cmd")
}

func TestDeletedJobIsNotExecuted(t *testing.T) {
	db := createDB(t)
	queue := messaging.NewInMemoryQueue()

	store, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	id, err := database.CreateJob(ctx, db, api.JobDescription{
		Name:  "cancelled",
		Tasks: []api.Task{{Cmd: "echo should not run"}},
	})
	require.NoError(t, err)
	require.NoError(t, database.MarkJobDeleted(ctx, db, id))
	require.NoError(t, queue.PublishExecuteJobTask(ctx, messaging.ExecuteJobPayload{JobId: id}))

	tasks := queue.Tasks()
	queue.Close()

	executor := server.NewExecutor(db, store, testBucket, t.TempDir())
	executor.Run(ctx, tasks)

	job, err := database.GetJob(ctx, db, id)
	require.NoError(t, err)
	assert.Equal(t, api.JobDeleted, job.Status)
	assert.Empty(t, job.StdoutPath)
}

func TestRequeuePendingJobs(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	desc := api.JobDescription{Name: "backlog", Tasks: []api.Task{{Cmd: "true"}}}
	const backlog = 150
	for i := 0; i < backlog; i++ {
		_, err := database.CreateJob(ctx, db, desc)
		require.NoError(t, err)
	}

	queue := messaging.NewInMemoryQueue()
	t.Cleanup(queue.Close)

	// The backlog exceeds the queue's buffer, so the replay only completes
	// with a consumer draining it.
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		seen := 0
		for task := range queue.Tasks() {
			_ = task.Ack()
			seen++
			if seen == backlog {
				return
			}
		}
	}()

	count, err := server.RequeuePendingJobs(ctx, db, queue)
	require.NoError(t, err)
	assert.Equal(t, backlog, count)

	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out draining the requeued backlog")
	}
}
