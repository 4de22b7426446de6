package agentcli

import (
	"pkt.systems/chimerax/core"
	"pkt.systems/chimerax/schema"
)

// buildArgs assembles the exec argument list for one engine invocation.
// The prompt is always delivered on stdin so shell quoting never applies.
func buildArgs(engine schema.EngineID, cfg Config, req core.RunRequest) []string {
	switch engine {
	case schema.EngineCodex:
		return buildCodexArgs(cfg, req)
	case schema.EngineGemini:
		return buildGeminiArgs(cfg, req)
	default:
		return buildClaudeArgs(cfg, req)
	}
}

func buildClaudeArgs(cfg Config, req core.RunRequest) []string {
	args := []string{"-p", "--output-format", "stream-json", "--verbose"}
	if req.Model != "" {
		args = append(args, "--model", string(req.Model))
	}
	if req.ResumeSessionID != "" {
		args = append(args, "--resume", string(req.ResumeSessionID))
	}
	args = append(args, cfg.ExtraArgs...)
	return args
}

func buildCodexArgs(cfg Config, req core.RunRequest) []string {
	args := []string{"exec", "--json"}
	if req.Model != "" {
		args = append(args, "--model", string(req.Model))
	}
	args = append(args, cfg.ExtraArgs...)
	if req.ResumeSessionID != "" {
		args = append(args, "resume", string(req.ResumeSessionID))
	}
	args = append(args, "-")
	return args
}

func buildGeminiArgs(cfg Config, req core.RunRequest) []string {
	args := []string{"--output-format", "stream-json"}
	if req.Model != "" {
		args = append(args, "--model", string(req.Model))
	}
	if req.ResumeSessionID != "" {
		args = append(args, "--resume", string(req.ResumeSessionID))
	}
	args = append(args, cfg.ExtraArgs...)
	return args
}
