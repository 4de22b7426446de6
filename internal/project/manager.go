package project

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"pkt.systems/chimerax/schema"
	"pkt.systems/pslog"
)

// Manager handles project discovery and creation under a fixed root.
type Manager struct {
	root string
	log  pslog.Logger
}

// NewManager ensures the root exists and returns a Manager.
func NewManager(root string) (*Manager, error) {
	return NewManagerWithLogger(root, nil)
}

// NewManagerWithLogger ensures the root exists and returns a Manager with logging.
func NewManagerWithLogger(root string, logger pslog.Logger) (*Manager, error) {
	if strings.TrimSpace(root) == "" {
		return nil, schema.ErrInvalidProject
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("project_root", root)
	}
	return &Manager{root: root, log: logger}, nil
}

// Root returns the project root.
func (m *Manager) Root() string {
	return m.root
}

// Resolve accepts a project name or a path under the root and verifies the
// directory exists. Paths escaping the root are rejected.
func (m *Manager) Resolve(ref string) (schema.ProjectRef, error) {
	path, err := m.pathFor(ref)
	if err != nil {
		if m.log != nil {
			m.log.Warn("project manager resolve failed", "err", err, "ref", ref)
		}
		return schema.ProjectRef{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if m.log != nil {
				m.log.Warn("project manager resolve failed", "err", schema.ErrProjectNotFound, "ref", ref)
			}
			return schema.ProjectRef{}, schema.ErrProjectNotFound
		}
		if m.log != nil {
			m.log.Warn("project manager resolve failed", "err", err, "ref", ref)
		}
		return schema.ProjectRef{}, err
	}
	if !info.IsDir() {
		if m.log != nil {
			m.log.Warn("project manager resolve failed", "err", schema.ErrProjectNotFound, "ref", ref)
		}
		return schema.ProjectRef{}, schema.ErrProjectNotFound
	}
	if m.log != nil {
		m.log.Debug("project manager resolve ok", "path", path)
	}
	return schema.ProjectRef{Name: filepath.Base(path), Path: path}, nil
}

// Create creates a project directory and runs git init.
func (m *Manager) Create(name string) (schema.ProjectRef, error) {
	if m.log != nil {
		m.log.Info("project manager create start", "project", name)
	}
	normalized, err := normalizeName(name)
	if err != nil {
		if m.log != nil {
			m.log.Warn("project manager create failed", "err", err)
		}
		return schema.ProjectRef{}, err
	}
	path := filepath.Join(m.root, normalized)
	if _, err := os.Stat(path); err == nil {
		if m.log != nil {
			m.log.Warn("project manager create failed", "err", schema.ErrProjectExists)
		}
		return schema.ProjectRef{}, schema.ErrProjectExists
	} else if !errors.Is(err, os.ErrNotExist) {
		if m.log != nil {
			m.log.Warn("project manager create failed", "err", err)
		}
		return schema.ProjectRef{}, err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		if m.log != nil {
			m.log.Warn("project manager create failed", "err", err)
		}
		return schema.ProjectRef{}, err
	}
	if err := runGit(m.log, path, "init"); err != nil {
		return schema.ProjectRef{}, err
	}
	if m.log != nil {
		m.log.Info("project manager create ok", "path", path)
	}
	return schema.ProjectRef{Name: normalized, Path: path}, nil
}

// List lists project directories under the root.
func (m *Manager) List() ([]schema.ProjectRef, error) {
	if m.log != nil {
		m.log.Trace("project manager list start")
	}
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		if m.log != nil {
			m.log.Warn("project manager list failed", "err", err)
		}
		return nil, err
	}
	projects := make([]schema.ProjectRef, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		projects = append(projects, schema.ProjectRef{Name: name, Path: filepath.Join(m.root, name)})
	}
	if m.log != nil {
		m.log.Debug("project manager list ok", "count", len(projects))
	}
	return projects, nil
}

// pathFor maps a name or absolute path onto a directory under the root.
func (m *Manager) pathFor(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return "", schema.ErrInvalidProject
	}
	if filepath.IsAbs(trimmed) {
		clean := filepath.Clean(trimmed)
		rel, err := filepath.Rel(m.root, clean)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", schema.ErrInvalidProject
		}
		return clean, nil
	}
	normalized, err := normalizeName(trimmed)
	if err != nil {
		return "", err
	}
	return filepath.Join(m.root, normalized), nil
}

func normalizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", schema.ErrInvalidProject
	}
	if strings.Contains(trimmed, string(filepath.Separator)) {
		return "", schema.ErrInvalidProject
	}
	clean := filepath.Clean(trimmed)
	if clean == "." || clean == ".." || strings.Contains(clean, string(filepath.Separator)) {
		return "", schema.ErrInvalidProject
	}
	return clean, nil
}

func runGit(log pslog.Logger, dir string, args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		if log != nil {
			log.Warn("project manager git failed", "err", err, "command", strings.Join(args, " "), "output", strings.TrimSpace(string(out)))
		}
		return fmt.Errorf("git %s failed: %w (%s)", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	if log != nil {
		log.Trace("project manager git ok", "command", strings.Join(args, " "))
	}
	return nil
}
