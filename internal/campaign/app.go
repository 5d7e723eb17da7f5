package campaign

import (
	"fmt"

	"uqflow/internal/encode"
	"uqflow/internal/params"
	"uqflow/internal/sampling"
)

// App describes the simulated application a campaign drives: its parameter
// space, how run inputs are rendered, and how run outputs are read back.
// Exactly one decoder must be set. The struct is stored as JSON in the
// campaign database, so it can be rebuilt on reopen.
type App struct {
	Name   string       `json:"name"`
	Params params.Space `json:"params"`

	Encoder *encode.GenericEncoder `json:"encoder"`

	CSVDecoder  *encode.SimpleCSV   `json:"csv_decoder,omitempty"`
	JSONDecoder *encode.JSONDecoder `json:"json_decoder,omitempty"`
}

func (a *App) validate() error {
	if a.Name == "" {
		return fmt.Errorf("app requires a name")
	}
	if err := a.Params.Validate(); err != nil {
		return fmt.Errorf("app %s: %w", a.Name, err)
	}
	if a.Encoder == nil {
		return fmt.Errorf("app %s requires an encoder", a.Name)
	}
	if (a.CSVDecoder == nil) == (a.JSONDecoder == nil) {
		return fmt.Errorf("app %s requires exactly one decoder", a.Name)
	}
	return nil
}

func (a *App) decoder() encode.Decoder {
	if a.CSVDecoder != nil {
		return a.CSVDecoder
	}
	return a.JSONDecoder
}

// SamplerConfig is the persisted form of a campaign's sampler. Distributions
// are stored as vary expressions, e.g. "Uniform(0.025, 0.075)".
type SamplerConfig struct {
	Type  string            `json:"type"`
	Vary  map[string]string `json:"vary"`
	Order int               `json:"order,omitempty"`
	N     int               `json:"n,omitempty"`
	Seed  uint64            `json:"seed,omitempty"`
}

const (
	samplerPCE      = "pce"
	samplerRandom   = "random"
	samplerSaltelli = "saltelli"
)

func samplerConfig(s sampling.Sampler) (SamplerConfig, error) {
	switch sampler := s.(type) {
	case *sampling.PCESampler:
		return SamplerConfig{Type: samplerPCE, Vary: varyExprs(sampler.Vary()), Order: sampler.Order}, nil
	case *sampling.RandomSampler:
		return SamplerConfig{Type: samplerRandom, Vary: varyExprs(sampler.Vary()), N: sampler.N(), Seed: sampler.Seed()}, nil
	case *sampling.SaltelliSampler:
		return SamplerConfig{Type: samplerSaltelli, Vary: varyExprs(sampler.Vary()), N: sampler.N(), Seed: sampler.Seed()}, nil
	default:
		return SamplerConfig{}, fmt.Errorf("sampler type %T cannot be persisted", s)
	}
}

func (cfg SamplerConfig) build() (sampling.Sampler, error) {
	vary, err := sampling.ParseVary(cfg.Vary)
	if err != nil {
		return nil, err
	}

	switch cfg.Type {
	case samplerPCE:
		return sampling.NewPCESampler(vary, cfg.Order)
	case samplerRandom:
		return sampling.NewRandomSampler(vary, cfg.N, cfg.Seed)
	case samplerSaltelli:
		return sampling.NewSaltelliSampler(vary, cfg.N, cfg.Seed)
	default:
		return nil, fmt.Errorf("unknown sampler type %q", cfg.Type)
	}
}

func varyExprs(vary map[string]sampling.Distribution) map[string]string {
	exprs := make(map[string]string, len(vary))
	for name, dist := range vary {
		exprs[name] = dist.String()
	}
	return exprs
}
