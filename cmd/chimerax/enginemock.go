package main

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newEngineMockCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "engine-mock [-p] [--output-format stream-json] [--verbose] [--model <id>] [--resume <id>] [--seed <n>] [--scenario <name>] [--delay-ms <n>] [--linger-ms <n>] [prompt|-]",
		Short:         "Mock claude stream-json output for testing",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngineMock(args, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func runEngineMock(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) error {
	cfg, err := parseMockArgs(args)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return err
	}

	prompt, err := resolveMockPrompt(cfg.prompt, stdin)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return err
	}
	cfg.prompt = prompt

	if !cfg.seedSet {
		cfg.seed = hashSeed(cfg.prompt, cfg.resumeID, cfg.model, cfg.scenario)
	}

	sessionID := cfg.resumeID
	if sessionID == "" {
		sessionID = mockSessionID(cfg.seed)
	}

	writer := bufio.NewWriter(stdout)
	defer func() { _ = writer.Flush() }()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM)
	signalSeen := make(chan os.Signal, 1)
	go func() {
		sig := <-sigCh
		signalSeen <- sig
	}()

	if cfg.outputFormat != "stream-json" {
		_, _ = fmt.Fprintln(writer, mockAgentMessage(cfg.seed, cfg.prompt))
		return nil
	}

	if err := writeMockEvent(writer, map[string]any{
		"type":       "system",
		"subtype":    "init",
		"session_id": sessionID,
	}); err != nil {
		return err
	}

	scenarios := buildScenarios()
	activeScenario, err := pickScenario(cfg, scenarios)
	if err != nil {
		return err
	}

	failed, err := activeScenario.run(cfg, sessionID, writer)
	if err != nil {
		return err
	}

	select {
	case sig := <-signalSeen:
		return emitSignalResult(writer, sessionID, sig)
	default:
	}

	if !failed {
		if err := writeMockEvent(writer, map[string]any{
			"type":       "result",
			"subtype":    "success",
			"is_error":   false,
			"result":     mockAgentMessage(cfg.seed, cfg.prompt),
			"session_id": sessionID,
			"usage": map[string]any{
				"input_tokens":            int(len(cfg.prompt)) + 12,
				"cache_read_input_tokens": int(len(cfg.prompt)) / 3,
				"output_tokens":           int(20 + cfg.seed%50),
			},
		}); err != nil {
			return err
		}
	}

	if cfg.linger > 0 {
		timer := time.NewTimer(cfg.linger)
		select {
		case sig := <-signalSeen:
			timer.Stop()
			return emitSignalResult(writer, sessionID, sig)
		case <-timer.C:
		}
	}
	return nil
}

type mockConfig struct {
	outputFormat string
	model        string
	resumeID     string
	prompt       string
	seed         uint64
	seedSet      bool
	scenario     string
	delay        time.Duration
	linger       time.Duration
}

type mockScenario struct {
	name string
	run  func(cfg mockConfig, sessionID string, w *bufio.Writer) (failed bool, err error)
}

func parseMockArgs(args []string) (mockConfig, error) {
	cfg := mockConfig{
		delay: 30 * time.Millisecond,
	}
	for len(args) > 0 {
		if args[0] == "-" {
			cfg.prompt = "-"
			return cfg, nil
		}
		if !strings.HasPrefix(args[0], "-") {
			cfg.prompt = strings.Join(args, " ")
			return cfg, nil
		}
		switch args[0] {
		case "-p", "--print", "--verbose":
			args = args[1:]
		case "--output-format":
			if len(args) < 2 {
				return mockConfig{}, errors.New("--output-format requires a value")
			}
			cfg.outputFormat = args[1]
			args = args[2:]
		case "--model":
			if len(args) < 2 {
				return mockConfig{}, errors.New("--model requires a value")
			}
			cfg.model = args[1]
			args = args[2:]
		case "--resume":
			if len(args) < 2 {
				return mockConfig{}, errors.New("--resume requires a value")
			}
			cfg.resumeID = args[1]
			args = args[2:]
		case "--seed":
			if len(args) < 2 {
				return mockConfig{}, errors.New("--seed requires a value")
			}
			val, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return mockConfig{}, fmt.Errorf("invalid --seed: %w", err)
			}
			cfg.seed = val
			cfg.seedSet = true
			args = args[2:]
		case "--scenario":
			if len(args) < 2 {
				return mockConfig{}, errors.New("--scenario requires a value")
			}
			cfg.scenario = args[1]
			args = args[2:]
		case "--delay-ms":
			if len(args) < 2 {
				return mockConfig{}, errors.New("--delay-ms requires a value")
			}
			val, err := strconv.Atoi(args[1])
			if err != nil || val < 0 {
				return mockConfig{}, errors.New("invalid --delay-ms")
			}
			cfg.delay = time.Duration(val) * time.Millisecond
			args = args[2:]
		case "--linger-ms":
			if len(args) < 2 {
				return mockConfig{}, errors.New("--linger-ms requires a value")
			}
			val, err := strconv.Atoi(args[1])
			if err != nil || val < 0 {
				return mockConfig{}, errors.New("invalid --linger-ms")
			}
			cfg.linger = time.Duration(val) * time.Millisecond
			args = args[2:]
		default:
			return mockConfig{}, fmt.Errorf("unsupported flag: %s", args[0])
		}
	}
	return cfg, nil
}

func resolveMockPrompt(arg string, stdin io.Reader) (string, error) {
	if arg == "-" {
		return readStdinPrompt(stdin)
	}
	if strings.TrimSpace(arg) != "" {
		return arg, nil
	}
	if isTerminalReader(stdin) {
		return "", errors.New("no prompt provided")
	}
	return readStdinPrompt(stdin)
}

func readStdinPrompt(stdin io.Reader) (string, error) {
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt from stdin: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", errors.New("no prompt provided via stdin")
	}
	return prompt, nil
}

func isTerminalReader(stdin io.Reader) bool {
	file, ok := stdin.(*os.File)
	if !ok {
		return false
	}
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func hashSeed(prompt, resumeID, model, scenario string) uint64 {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(prompt))
	_, _ = hasher.Write([]byte(resumeID))
	_, _ = hasher.Write([]byte(model))
	_, _ = hasher.Write([]byte(scenario))
	return hasher.Sum64()
}

func mockSessionID(seed uint64) string {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], seed)
	binary.LittleEndian.PutUint64(buf[8:16], seed^0x9e3779b97f4a7c15)
	return "mock-" + hex.EncodeToString(buf[:])
}

func buildScenarios() []mockScenario {
	return []mockScenario{
		{name: "summary", run: scenarioSummary},
		{name: "command", run: scenarioCommand},
		{name: "toolcall", run: scenarioToolCall},
		{name: "failure", run: scenarioFailure},
	}
}

func pickScenario(cfg mockConfig, scenarios []mockScenario) (mockScenario, error) {
	if cfg.scenario != "" {
		for _, s := range scenarios {
			if s.name == cfg.scenario {
				return s, nil
			}
		}
		return mockScenario{}, fmt.Errorf("unknown scenario: %s", cfg.scenario)
	}
	idx := int(cfg.seed % uint64(len(scenarios)))
	return scenarios[idx], nil
}

func scenarioSummary(cfg mockConfig, sessionID string, w *bufio.Writer) (bool, error) {
	err := writeAssistant(w, sessionID, []map[string]any{
		{"type": "text", "text": mockAgentMessage(cfg.seed, cfg.prompt)},
	}, cfg.delay)
	return false, err
}

func scenarioCommand(cfg mockConfig, sessionID string, w *bufio.Writer) (bool, error) {
	if err := writeAssistant(w, sessionID, []map[string]any{
		{
			"type":  "tool_use",
			"id":    "toolu_mock_0",
			"name":  "Bash",
			"input": map[string]any{"command": "ls"},
		},
	}, cfg.delay); err != nil {
		return false, err
	}
	if err := writeMockEvent(w, map[string]any{
		"type":       "user",
		"session_id": sessionID,
		"message": map[string]any{
			"content": []map[string]any{
				{
					"type":        "tool_result",
					"tool_use_id": "toolu_mock_0",
					"content":     "README.md\nmain.go\n",
				},
			},
		},
	}); err != nil {
		return false, err
	}
	if cfg.delay > 0 {
		time.Sleep(cfg.delay)
	}
	err := writeAssistant(w, sessionID, []map[string]any{
		{"type": "text", "text": "Command finished. Here is a brief summary of the output."},
	}, cfg.delay)
	return false, err
}

func scenarioToolCall(cfg mockConfig, sessionID string, w *bufio.Writer) (bool, error) {
	if err := writeAssistant(w, sessionID, []map[string]any{
		{
			"type":  "tool_use",
			"id":    "toolu_mock_0",
			"name":  "Read",
			"input": map[string]any{"file_path": "README.md"},
		},
	}, cfg.delay); err != nil {
		return false, err
	}
	err := writeAssistant(w, sessionID, []map[string]any{
		{"type": "text", "text": "Read the file and summarized its contents."},
	}, cfg.delay)
	return false, err
}

func scenarioFailure(cfg mockConfig, sessionID string, w *bufio.Writer) (bool, error) {
	if err := writeMockEvent(w, map[string]any{
		"type":       "result",
		"subtype":    "error_during_execution",
		"is_error":   true,
		"result":     "mock failure: simulated turn error",
		"session_id": sessionID,
	}); err != nil {
		return false, err
	}
	return true, nil
}

func writeAssistant(w *bufio.Writer, sessionID string, content []map[string]any, delay time.Duration) error {
	if err := writeMockEvent(w, map[string]any{
		"type":       "assistant",
		"session_id": sessionID,
		"message": map[string]any{
			"content": content,
		},
	}); err != nil {
		return err
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	return nil
}

func writeMockEvent(w *bufio.Writer, event map[string]any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.WriteString("\n"); err != nil {
		return err
	}
	return w.Flush()
}

func emitSignalResult(w *bufio.Writer, sessionID string, sig os.Signal) error {
	return writeMockEvent(w, map[string]any{
		"type":       "result",
		"subtype":    "error_during_execution",
		"is_error":   true,
		"result":     fmt.Sprintf("mock received %s", sig),
		"session_id": sessionID,
	})
}

func mockAgentMessage(seed uint64, prompt string) string {
	templates := []string{
		"Mock response: handled request \"%s\".",
		"Mock response: completed task for \"%s\".",
		"Mock response: produced summary for \"%s\".",
		"Mock response: generated output for \"%s\".",
	}
	idx := int(seed % uint64(len(templates)))
	return fmt.Sprintf(templates[idx], prompt)
}
