package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"uqflow/internal/actions"
	"uqflow/internal/analysis"
	"uqflow/internal/campaign"
	"uqflow/internal/config"
	"uqflow/internal/encode"
	"uqflow/internal/params"
	"uqflow/internal/prominence"
	"uqflow/internal/sampling"
)

// coffee runs the cooling coffee cup tutorial against a PROMINENCE server:
// a polynomial chaos sweep over the cooling rate and the environment
// temperature, with run inputs shipped inline and outputs read back from the
// captured job stdout.

const (
	campaignName = "coffee_pce"
	templateFile = "examples/coffee/cooling.template"
	jobConfig    = "examples/coffee/coffee.json"
)

func coolingApp() campaign.App {
	return campaign.App{
		Name: "cooling",
		Params: params.Space{
			"kappa":     {Type: params.TypeFloat, Min: 0.0, Max: 0.1, Default: 0.025},
			"t_env":     {Type: params.TypeFloat, Min: 0.0, Max: 40.0, Default: 15.0},
			"temp_init": {Type: params.TypeFloat, Min: 0.0, Max: 150.0, Default: 95.0},
			"out_file":  {Type: params.TypeString, Default: "output.csv"},
		},
		Encoder: &encode.GenericEncoder{
			TemplateFname:  templateFile,
			Delimiter:      "$",
			TargetFilename: "cooling_in.json",
		},
		CSVDecoder: &encode.SimpleCSV{
			TargetFilename: "output.csv",
			OutputColumns:  []string{"te"},
		},
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	tokens := prominence.DefaultTokenProvider()
	if cfg.ProminenceToken != "" {
		tokens = prominence.StaticToken(cfg.ProminenceToken)
	}
	client := prominence.NewClient(cfg.ProminenceURL, tokens)

	camp, err := campaign.New(campaignName, campaign.Config{WorkDir: cfg.WorkDir, DatabaseURL: cfg.DatabaseURL})
	if err != nil {
		log.Fatalf("Failed to create campaign: %v", err)
	}

	if err := camp.AddApp(coolingApp()); err != nil {
		log.Fatalf("Failed to add app: %v", err)
	}

	vary := map[string]sampling.Distribution{
		"kappa": sampling.Uniform{Low: 0.025, High: 0.075},
		"t_env": sampling.Uniform{Low: 15.0, High: 25.0},
	}
	sampler, err := sampling.NewPCESampler(vary, 3)
	if err != nil {
		log.Fatalf("Failed to create sampler: %v", err)
	}
	if err := camp.SetSampler(sampler); err != nil {
		log.Fatalf("Failed to set sampler: %v", err)
	}

	if err := camp.DrawSamples(); err != nil {
		log.Fatalf("Failed to draw samples: %v", err)
	}
	if err := camp.PopulateRunsDir(); err != nil {
		log.Fatalf("Failed to populate run directories: %v", err)
	}
	slog.Info("campaign prepared", "name", campaignName, "runs", len(camp.RunDirs()))

	action, err := actions.NewExecuteProminence(client, jobConfig, []string{"cooling_in.json"}, "output.csv")
	if err != nil {
		log.Fatalf("Failed to create action: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := camp.ApplyForEachRunDir(action, cfg.BatchSize)
	if err != nil {
		log.Fatalf("Failed to create pool: %v", err)
	}
	pool.SetPollInterval(cfg.PollInterval)

	if err := pool.Start(ctx); err != nil {
		log.Fatalf("Failed to start jobs: %v", err)
	}

	for {
		progress := pool.Progress()
		slog.Info("progress", "ready", progress.Ready, "active", progress.Active, "finished", progress.Finished, "failed", progress.Failed)
		if progress.Done() {
			break
		}
		time.Sleep(cfg.PollInterval)
	}

	if err := pool.Wait(ctx); err != nil {
		log.Fatalf("Job execution failed: %v", err)
	}

	element, err := analysis.NewPCE(sampler, []string{"te"})
	if err != nil {
		log.Fatalf("Failed to create analysis: %v", err)
	}

	results, err := camp.Apply(element)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	statePath := filepath.Join(camp.WorkDir, "campaign_state.json")
	if err := camp.SaveState(statePath); err != nil {
		log.Fatalf("Failed to save campaign state: %v", err)
	}
	slog.Info("campaign state saved", "path", statePath)

	fmt.Println(results.Describe())
}
