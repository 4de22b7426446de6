package main

import (
	"testing"

	"pkt.systems/chimerax/internal/appconfig"
	"pkt.systems/chimerax/schema"
)

func TestFlattenEnvSortsKeys(t *testing.T) {
	got := flattenEnv(map[string]string{
		"ZED":  "3",
		"ABLE": "1",
		"MIKE": "2",
	})
	want := []string{"ABLE=1", "MIKE=2", "ZED=3"}
	if len(got) != len(want) {
		t.Fatalf("flattenEnv length = %d, want %d", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("flattenEnv[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if flattenEnv(nil) != nil {
		t.Fatalf("expected nil for empty env")
	}
}

func TestEngineOverridesCarriesBinaries(t *testing.T) {
	overrides := engineOverrides(appconfig.EnginesConfig{
		Claude: appconfig.EngineConfig{Binary: "/usr/local/bin/claude", Args: []string{"--dangerously-skip-permissions"}},
		Codex:  appconfig.EngineConfig{Binary: "codex"},
		Gemini: appconfig.EngineConfig{Binary: "gemini", Env: map[string]string{"GEMINI_SANDBOX": "false"}},
	})
	if overrides[schema.EngineClaude].BinaryPath != "/usr/local/bin/claude" {
		t.Fatalf("unexpected claude binary: %q", overrides[schema.EngineClaude].BinaryPath)
	}
	if len(overrides[schema.EngineClaude].ExtraArgs) != 1 {
		t.Fatalf("expected claude extra args to carry over")
	}
	if len(overrides[schema.EngineGemini].Env) != 1 || overrides[schema.EngineGemini].Env[0] != "GEMINI_SANDBOX=false" {
		t.Fatalf("unexpected gemini env: %v", overrides[schema.EngineGemini].Env)
	}
}

func TestToModelIDs(t *testing.T) {
	if toModelIDs(nil) != nil {
		t.Fatalf("expected nil for empty list")
	}
	got := toModelIDs([]string{"sonnet", "opus"})
	if len(got) != 2 || got[0] != schema.ModelID("sonnet") || got[1] != schema.ModelID("opus") {
		t.Fatalf("unexpected model ids: %v", got)
	}
}
