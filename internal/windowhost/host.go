package windowhost

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"pkt.systems/chimerax/core"
	"pkt.systems/chimerax/schema"
	"pkt.systems/pslog"
)

// Host allocates and disposes detached top-level windows for the local
// process. Labels are opaque and never reused. A per-user cap bounds how
// many windows can be open at once; an open beyond the cap fails and the
// caller keeps the originating tab.
type Host struct {
	mu      sync.Mutex
	limit   int
	log     pslog.Logger
	windows map[schema.UserID]map[schema.WindowLabel]schema.WindowSnapshot
}

// New constructs a Host with the given per-user window cap.
func New(limit int, logger pslog.Logger) *Host {
	if limit <= 0 {
		limit = schema.DefaultMaxWindows
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Host{
		limit:   limit,
		log:     logger,
		windows: make(map[schema.UserID]map[schema.WindowLabel]schema.WindowSnapshot),
	}
}

// OpenWindow allocates a window for the request.
func (h *Host) OpenWindow(ctx context.Context, req core.OpenWindowRequest) (schema.WindowSnapshot, error) {
	if req.UserID == "" {
		return schema.WindowSnapshot{}, schema.ErrInvalidUser
	}
	label, err := newWindowLabel()
	if err != nil {
		return schema.WindowSnapshot{}, err
	}
	snapshot := schema.WindowSnapshot{
		Label:     label,
		Title:     req.Title,
		Project:   req.Project,
		Engine:    req.Engine,
		SessionID: req.SessionID,
	}
	h.mu.Lock()
	userWindows := h.windows[req.UserID]
	if len(userWindows) >= h.limit {
		h.mu.Unlock()
		return schema.WindowSnapshot{}, fmt.Errorf("window limit reached (%d)", h.limit)
	}
	if userWindows == nil {
		userWindows = make(map[schema.WindowLabel]schema.WindowSnapshot)
		h.windows[req.UserID] = userWindows
	}
	userWindows[label] = snapshot
	count := len(userWindows)
	h.mu.Unlock()
	h.log.With("user", req.UserID).Debug("window opened", "label", label, "windows", count)
	return snapshot, nil
}

// CloseWindow disposes a window previously opened by this host.
func (h *Host) CloseWindow(ctx context.Context, req core.CloseWindowRequest) (schema.WindowSnapshot, error) {
	if req.UserID == "" {
		return schema.WindowSnapshot{}, schema.ErrInvalidUser
	}
	h.mu.Lock()
	userWindows := h.windows[req.UserID]
	snapshot, ok := userWindows[req.Label]
	if ok {
		delete(userWindows, req.Label)
		if len(userWindows) == 0 {
			delete(h.windows, req.UserID)
		}
	}
	h.mu.Unlock()
	if !ok {
		return schema.WindowSnapshot{}, schema.ErrWindowNotFound
	}
	h.log.With("user", req.UserID).Debug("window closed", "label", req.Label)
	return snapshot, nil
}

// List returns the open windows for a user.
func (h *Host) List(userID schema.UserID) []schema.WindowSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	userWindows := h.windows[userID]
	out := make([]schema.WindowSnapshot, 0, len(userWindows))
	for _, snapshot := range userWindows {
		out = append(out, snapshot)
	}
	return out
}

func newWindowLabel() (schema.WindowLabel, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return schema.WindowLabel("win-" + hex.EncodeToString(buf[:])), nil
}
