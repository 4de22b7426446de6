package project

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"pkt.systems/pslog"
)

// GitInfo summarizes the git state of a project directory.
type GitInfo struct {
	Branch      string
	Remotes     []string
	StatusLines []string
}

// CollectGitInfo gathers branch, remote, and status information for the
// directory. Failures degrade to placeholder values, never errors.
func CollectGitInfo(ctx context.Context, dir string) GitInfo {
	log := pslog.Ctx(ctx)
	info := GitInfo{
		Branch:      "(unknown)",
		Remotes:     []string{"(unavailable)"},
		StatusLines: []string{"(unavailable)"},
	}
	if strings.TrimSpace(dir) == "" {
		return info
	}

	if lines, err := gitLines(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD"); err == nil && len(lines) > 0 {
		branch := strings.TrimSpace(lines[0])
		if branch == "" {
			branch = "(unknown)"
		} else if branch == "HEAD" {
			branch = "(detached)"
		}
		info.Branch = branch
	} else if err != nil {
		log.Debug("git branch lookup failed", "dir", dir, "err", err)
	}

	if lines, err := gitLines(ctx, dir, "remote", "-v"); err == nil {
		parsed := parseRemotes(lines)
		if len(parsed) == 0 {
			info.Remotes = []string{"(none)"}
		} else {
			info.Remotes = parsed
		}
	} else {
		log.Debug("git remote lookup failed", "dir", dir, "err", err)
	}

	if lines, err := gitLines(ctx, dir, "status", "--short"); err == nil {
		lines = dropEmpty(lines)
		if len(lines) == 0 {
			info.StatusLines = []string{"(working tree clean)"}
		} else {
			info.StatusLines = lines
		}
	} else {
		log.Debug("git status lookup failed", "dir", dir, "err", err)
	}

	return info
}

func gitLines(ctx context.Context, dir string, args ...string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	raw := strings.Split(strings.ReplaceAll(string(out), "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		lines = append(lines, strings.TrimRight(line, " \t"))
	}
	return lines, nil
}

func parseRemotes(lines []string) []string {
	type remoteInfo struct {
		fetch string
		push  string
	}
	remotes := make(map[string]*remoteInfo)
	order := make([]string, 0, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		name := fields[0]
		url := fields[1]
		kind := strings.Trim(fields[2], "()")
		info := remotes[name]
		if info == nil {
			info = &remoteInfo{}
			remotes[name] = info
			order = append(order, name)
		}
		switch kind {
		case "fetch":
			info.fetch = url
		case "push":
			info.push = url
		}
	}
	if len(remotes) == 0 {
		return nil
	}
	name := order[0]
	if _, ok := remotes["origin"]; ok {
		name = "origin"
	}
	info := remotes[name]
	if info == nil {
		return nil
	}
	fetch := info.fetch
	push := info.push
	if fetch == "" {
		fetch = push
	}
	if push == "" {
		push = fetch
	}
	if fetch == "" && push == "" {
		return nil
	}
	if fetch == push {
		return []string{fetch}
	}
	out := []string{}
	if push != "" {
		out = append(out, fmt.Sprintf("%s (push)", push))
	}
	if fetch != "" {
		out = append(out, fmt.Sprintf("%s (fetch)", fetch))
	}
	return out
}

func dropEmpty(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
