package providers

import (
	"os"
	"os/exec"

	"github.com/rocky2431/ultra-builder-pro/internal/config"
)

// NewChannelsFromEnv returns the configured channels in fallback order:
// the CLI client when it is on PATH, then Anthropic when ANTHROPIC_API_KEY is
// set, then an OpenAI-compatible endpoint when OPENAI_API_KEY is set.
func NewChannelsFromEnv(cfg config.SummarizeConfig) []Channel {
	var channels []Channel

	if cfg.CLICommand != "" {
		if path, err := exec.LookPath(cfg.CLICommand); err == nil {
			channels = append(channels, NewCLI(path, cfg.CLIModel))
		}
	}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		channels = append(channels, NewAnthropic(key, cfg.AnthropicModel, cfg.MaxTokens, os.Getenv("ANTHROPIC_BASE_URL")))
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		channels = append(channels, NewOpenAI(key, cfg.OpenAIModel, cfg.MaxTokens, cfg.OpenAIBaseURL))
	}

	return channels
}
