package detectors

import (
	"fmt"

	"github.com/bryanwahyu/mediatrust/internal/config"
	domain "github.com/bryanwahyu/mediatrust/internal/domain/analyses"
	"github.com/bryanwahyu/mediatrust/internal/infra/ai/openai"
)

// Set holds the detector behind each role.
type Set map[domain.Role]domain.Detector

// Build picks the concrete detector for every role from configuration.
func Build(cfg config.DetectorsConfig, ai config.OpenAIConfig) (Set, error) {
	set := Set{}
	roles := []struct {
		role domain.Role
		cfg  config.DetectorConfig
	}{
		{domain.RoleFace, cfg.Face},
		{domain.RoleAudio, cfg.Audio},
		{domain.RoleMetadata, cfg.Metadata},
	}
	for _, r := range roles {
		d, err := build(r.role, r.cfg, ai)
		if err != nil {
			return nil, fmt.Errorf("detector %s: %w", r.role, err)
		}
		set[r.role] = d
	}
	return set, nil
}

func build(role domain.Role, c config.DetectorConfig, ai config.OpenAIConfig) (domain.Detector, error) {
	name := string(role) + "-" + c.Kind
	switch c.Kind {
	case "random":
		lo, hi := c.Range()
		return NewRandom(name, lo, hi, c.Seed).WithLatency(c.Latency), nil
	case "fixed":
		return &Fixed{ID: name, Value: c.Value, Delay: c.Latency}, nil
	case "heuristic":
		if role != domain.RoleMetadata {
			return nil, fmt.Errorf("heuristic detector only inspects metadata")
		}
		return Heuristic{}, nil
	case "llm":
		if role != domain.RoleMetadata {
			return nil, fmt.Errorf("llm detector only inspects metadata")
		}
		if ai.APIKey == "" {
			return nil, fmt.Errorf("llm detector needs an OpenAI API key")
		}
		return openai.NewDetector(ai.APIKey, ai.Model, ai.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown kind %q", c.Kind)
	}
}
