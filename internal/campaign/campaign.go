package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"uqflow/internal/actions"
	"uqflow/internal/analysis"
	"uqflow/internal/params"
	"uqflow/internal/sampling"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrNoApp     = errors.New("campaign has no app")
	ErrNoSampler = errors.New("campaign has no sampler")
	ErrNoRuns    = errors.New("campaign has no runs, call DrawSamples first")
	ErrNotFound  = errors.New("campaign not found")
)

// Config holds the campaign's working directory and database location. Zero
// values put everything under ./<name>/.
type Config struct {
	WorkDir     string
	DatabaseURL string
}

type run struct {
	id     string
	seq    int
	point  params.Point
	status string
}

// Campaign ties together a parameter space, an app, a sampler and a run
// directory tree, and drives runs from sampling through analysis. State is
// persisted so a campaign can be reopened by name.
type Campaign struct {
	Name    string
	WorkDir string

	db      *gorm.DB
	id      uuid.UUID
	app     *App
	sampler sampling.Sampler
	runs    []run
	last    *analysis.Results
}

// New creates a fresh campaign. The working directory and its runs/
// subdirectory are created immediately.
func New(name string, cfg Config) (*Campaign, error) {
	if name == "" {
		return nil, fmt.Errorf("campaign requires a name")
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = name
	}
	if err := os.MkdirAll(filepath.Join(workDir, "runs"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create campaign work dir: %w", err)
	}

	db, err := OpenDatabase(databaseURL(cfg, workDir))
	if err != nil {
		return nil, err
	}

	c := &Campaign{
		Name:    name,
		WorkDir: workDir,
		db:      db,
		id:      uuid.New(),
	}

	record := CampaignRecord{
		Id:           c.id,
		Name:         name,
		WorkDir:      workDir,
		CreationTime: time.Now(),
	}
	if err := db.Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to create campaign %q: %w", name, err)
	}

	slog.Info("created campaign", "name", name, "work_dir", workDir)
	return c, nil
}

// Open reopens an existing campaign by name, rebuilding its app, sampler and
// runs from the database.
func Open(name string, cfg Config) (*Campaign, error) {
	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = name
	}

	db, err := OpenDatabase(databaseURL(cfg, workDir))
	if err != nil {
		return nil, err
	}

	var record CampaignRecord
	if err := db.Where("name = ?", name).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to load campaign %q: %w", name, err)
	}

	c := &Campaign{
		Name:    record.Name,
		WorkDir: record.WorkDir,
		db:      db,
		id:      record.Id,
	}

	if len(record.App) > 0 {
		var app App
		if err := json.Unmarshal(record.App, &app); err != nil {
			return nil, fmt.Errorf("failed to decode app of campaign %q: %w", name, err)
		}
		c.app = &app
	}
	if len(record.Sampler) > 0 {
		var samplerCfg SamplerConfig
		if err := json.Unmarshal(record.Sampler, &samplerCfg); err != nil {
			return nil, fmt.Errorf("failed to decode sampler of campaign %q: %w", name, err)
		}
		sampler, err := samplerCfg.build()
		if err != nil {
			return nil, fmt.Errorf("failed to rebuild sampler of campaign %q: %w", name, err)
		}
		c.sampler = sampler
	}

	var runRecords []RunRecord
	if err := db.Where("campaign_id = ?", record.Id).Order("seq").Find(&runRecords).Error; err != nil {
		return nil, fmt.Errorf("failed to load runs of campaign %q: %w", name, err)
	}
	for _, rr := range runRecords {
		var point params.Point
		if err := json.Unmarshal(rr.Params, &point); err != nil {
			return nil, fmt.Errorf("failed to decode params of %s: %w", rr.RunId, err)
		}
		c.runs = append(c.runs, run{id: rr.RunId, seq: rr.Seq, point: point, status: rr.Status})
	}

	slog.Info("opened campaign", "name", name, "runs", len(c.runs))
	return c, nil
}

func databaseURL(cfg Config, workDir string) string {
	if cfg.DatabaseURL != "" {
		return cfg.DatabaseURL
	}
	return filepath.Join(workDir, "campaign.db")
}

// AddApp registers the app the campaign will drive.
func (c *Campaign) AddApp(app App) error {
	if err := app.validate(); err != nil {
		return err
	}

	raw, err := json.Marshal(&app)
	if err != nil {
		return fmt.Errorf("failed to encode app: %w", err)
	}
	if err := c.db.Model(&CampaignRecord{}).Where("id = ?", c.id).Update("app", datatypes.JSON(raw)).Error; err != nil {
		return fmt.Errorf("failed to store app: %w", err)
	}

	c.app = &app
	return nil
}

// SetSampler associates the sampler with the campaign.
func (c *Campaign) SetSampler(s sampling.Sampler) error {
	cfg, err := samplerConfig(s)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode sampler: %w", err)
	}
	if err := c.db.Model(&CampaignRecord{}).Where("id = ?", c.id).Update("sampler", datatypes.JSON(raw)).Error; err != nil {
		return fmt.Errorf("failed to store sampler: %w", err)
	}

	c.sampler = s
	return nil
}

// DrawSamples enumerates the sampler's design and creates one run per point.
// Sampled values are validated against the app's parameter space and missing
// parameters filled from defaults.
func (c *Campaign) DrawSamples() error {
	if c.app == nil {
		return ErrNoApp
	}
	if c.sampler == nil {
		return ErrNoSampler
	}
	if len(c.runs) > 0 {
		return fmt.Errorf("campaign %q has already drawn its samples", c.Name)
	}

	points := c.sampler.Points()
	records := make([]RunRecord, 0, len(points))
	for i, sampled := range points {
		point, err := c.app.Params.Complete(sampled)
		if err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}

		raw, err := json.Marshal(point)
		if err != nil {
			return fmt.Errorf("failed to encode params of sample %d: %w", i, err)
		}

		id := fmt.Sprintf("run_%d", i+1)
		c.runs = append(c.runs, run{id: id, seq: i + 1, point: point, status: RunNew})
		records = append(records, RunRecord{
			CampaignId: c.id,
			RunId:      id,
			Seq:        i + 1,
			Status:     RunNew,
			Params:     datatypes.JSON(raw),
		})
	}

	if err := c.db.Create(&records).Error; err != nil {
		return fmt.Errorf("failed to store runs: %w", err)
	}

	slog.Info("drew samples", "campaign", c.Name, "runs", len(records))
	return nil
}

// PopulateRunsDir creates each run's directory and encodes its input files.
func (c *Campaign) PopulateRunsDir() error {
	if c.app == nil {
		return ErrNoApp
	}
	if len(c.runs) == 0 {
		return ErrNoRuns
	}

	for i := range c.runs {
		r := &c.runs[i]
		dir := c.RunDir(r.id)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create run dir %s: %w", dir, err)
		}
		if err := c.app.Encoder.Encode(r.point, dir); err != nil {
			return fmt.Errorf("failed to encode %s: %w", r.id, err)
		}
		if err := c.setRunStatus(r, RunEncoded); err != nil {
			return err
		}
	}

	return nil
}

// RunDir is the directory of a single run.
func (c *Campaign) RunDir(runID string) string {
	return filepath.Join(c.WorkDir, "runs", runID)
}

// RunDirs lists every run directory in design order.
func (c *Campaign) RunDirs() []string {
	dirs := make([]string, len(c.runs))
	for i, r := range c.runs {
		dirs[i] = c.RunDir(r.id)
	}
	return dirs
}

// ApplyForEachRunDir builds a pool applying the action to every run dir with
// the given batch size. The pool is not yet started.
func (c *Campaign) ApplyForEachRunDir(action actions.Action, batchSize int) (*actions.Pool, error) {
	if len(c.runs) == 0 {
		return nil, ErrNoRuns
	}
	return actions.NewPool(action, c.RunDirs(), batchSize), nil
}

// Collate decodes the outputs of every run into a data frame and records
// them. Runs whose outputs cannot be decoded are marked failed.
func (c *Campaign) Collate() (*analysis.DataFrame, error) {
	if c.app == nil {
		return nil, ErrNoApp
	}
	if len(c.runs) == 0 {
		return nil, ErrNoRuns
	}

	decoder := c.app.decoder()
	df := &analysis.DataFrame{}
	var failed []string

	for i := range c.runs {
		r := &c.runs[i]
		outputs, err := decoder.Decode(c.RunDir(r.id))
		if err != nil {
			slog.Error("failed to collate run", "run", r.id, "error", err)
			if err := c.setRunStatus(r, RunFailed); err != nil {
				return nil, err
			}
			failed = append(failed, r.id)
			continue
		}

		raw, err := json.Marshal(outputs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode outputs of %s: %w", r.id, err)
		}
		if err := c.db.Model(&RunRecord{}).
			Where("campaign_id = ? AND run_id = ?", c.id, r.id).
			Updates(map[string]any{"status": RunCollated, "outputs": datatypes.JSON(raw)}).Error; err != nil {
			return nil, fmt.Errorf("failed to store outputs of %s: %w", r.id, err)
		}
		r.status = RunCollated

		df.Rows = append(df.Rows, analysis.Row{RunID: r.id, Inputs: r.point, Outputs: outputs})
	}

	if len(failed) > 0 {
		return df, fmt.Errorf("failed to collate %d of %d runs (first: %s)", len(failed), len(c.runs), failed[0])
	}
	return df, nil
}

// Apply runs an analysis element over the collated results and keeps them as
// the campaign's last analysis.
func (c *Campaign) Apply(element analysis.Element) (*analysis.Results, error) {
	df, err := c.Collate()
	if err != nil {
		return nil, err
	}

	results, err := element.Analyse(df)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", element.Name(), err)
	}
	c.last = results
	return results, nil
}

// LastAnalysis returns the results of the most recent Apply, or nil.
func (c *Campaign) LastAnalysis() *analysis.Results { return c.last }

// Sampler returns the campaign's sampler.
func (c *Campaign) Sampler() sampling.Sampler { return c.sampler }

func (c *Campaign) setRunStatus(r *run, status string) error {
	if err := c.db.Model(&RunRecord{}).
		Where("campaign_id = ? AND run_id = ?", c.id, r.id).
		Update("status", status).Error; err != nil {
		return fmt.Errorf("failed to update status of %s: %w", r.id, err)
	}
	r.status = status
	return nil
}

// RunStatuses returns run id to status, for inspection.
func (c *Campaign) RunStatuses() map[string]string {
	statuses := make(map[string]string, len(c.runs))
	for _, r := range c.runs {
		statuses[r.id] = r.status
	}
	return statuses
}

// Execute is a convenience that runs the full pool lifecycle: start, poll
// until done, and surface the first failure.
func (c *Campaign) Execute(ctx context.Context, action actions.Action, batchSize int) error {
	pool, err := c.ApplyForEachRunDir(action, batchSize)
	if err != nil {
		return err
	}
	if err := pool.Start(ctx); err != nil {
		return err
	}
	return pool.Wait(ctx)
}
