package api

// Job description and status types for the PROMINENCE REST API. The same
// types are used by the client and by the local development server.

const (
	JobPending   string = "pending"
	JobRunning   string = "running"
	JobCompleted string = "completed"
	JobFailed    string = "failed"
	JobDeleted   string = "deleted"
	JobKilled    string = "killed"
)

type Task struct {
	Image   string            `json:"image"`
	Runtime string            `json:"runtime,omitempty"`
	Cmd     string            `json:"cmd"`
	Workdir string            `json:"workdir,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

type Resources struct {
	Cpus   int `json:"cpus,omitempty"`
	Memory int `json:"memory,omitempty"`
	Disk   int `json:"disk,omitempty"`
	Nodes  int `json:"nodes,omitempty"`
}

// InputFile carries a small input file inline in the job description. Content
// is base64 encoded.
type InputFile struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type Artifact struct {
	URL string `json:"url"`
}

type B2DropCredentials struct {
	AppUsername string `json:"app-username"`
	AppPassword string `json:"app-password"`
}

// Storage describes a shared filesystem mounted into the job, e.g. a B2DROP
// volume. When set, input and output files flow through the mount rather than
// through inline inputs and stdout.
type Storage struct {
	Type       string             `json:"type"`
	Mountpoint string             `json:"mountpoint,omitempty"`
	B2Drop     *B2DropCredentials `json:"b2drop,omitempty"`
}

type JobDescription struct {
	Name        string            `json:"name,omitempty"`
	Tasks       []Task            `json:"tasks"`
	Resources   *Resources        `json:"resources,omitempty"`
	Inputs      []InputFile       `json:"inputs,omitempty"`
	Artifacts   []Artifact        `json:"artifacts,omitempty"`
	OutputFiles []string          `json:"outputFiles,omitempty"`
	Storage     *Storage          `json:"storage,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

type JobEvents struct {
	CreateTime int64 `json:"createTime,omitempty"`
	StartTime  int64 `json:"startTime,omitempty"`
	EndTime    int64 `json:"endTime,omitempty"`
}

type JobOutput struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Job is the status record returned by GET /jobs.
type Job struct {
	Id           int         `json:"id"`
	Name         string      `json:"name,omitempty"`
	Status       string      `json:"status"`
	StatusReason string      `json:"statusReason,omitempty"`
	Tasks        []Task      `json:"tasks,omitempty"`
	Events       *JobEvents  `json:"events,omitempty"`
	Outputs      []JobOutput `json:"outputs,omitempty"`
}

type SubmitJobResponse struct {
	Id int `json:"id"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Terminal reports whether a job status will no longer change.
func Terminal(status string) bool {
	return status != JobPending && status != JobRunning
}
