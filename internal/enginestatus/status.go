package enginestatus

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"

	"pkt.systems/chimerax/schema"
	"pkt.systems/pslog"
)

// Status describes the availability of one engine CLI.
type Status struct {
	Engine    schema.EngineID
	Installed bool
	Path      string
	Version   string
	CheckedAt time.Time
}

// DefaultTTL bounds how long a check result is reused.
const DefaultTTL = 5 * time.Minute

// Checker probes engine CLIs and caches the result. Concurrent checks for
// the same engine serialize on a per-engine lock; checks for different
// engines never block each other.
type Checker struct {
	cache Cache
	ttl   time.Duration

	mu    sync.Mutex
	locks map[schema.EngineID]*sync.Mutex
}

// NewChecker constructs a Checker. A nil cache gets an in-process one.
func NewChecker(cache Cache, ttl time.Duration) *Checker {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Checker{
		cache: cache,
		ttl:   ttl,
		locks: make(map[schema.EngineID]*sync.Mutex),
	}
}

// Check returns the status for an engine, probing the CLI on cache miss.
func (c *Checker) Check(ctx context.Context, engine schema.EngineID) (Status, error) {
	normalized, err := schema.NormalizeEngineID(string(engine))
	if err != nil {
		return Status{}, err
	}
	lock := c.engineLock(normalized)
	lock.Lock()
	defer lock.Unlock()
	if status, ok := c.cache.Get(string(normalized)); ok {
		return status, nil
	}
	status := c.probe(ctx, normalized)
	c.cache.Set(string(normalized), status, c.ttl)
	return status, nil
}

// Invalidate drops the cached status so the next check probes again.
func (c *Checker) Invalidate(engine schema.EngineID) {
	c.cache.Invalidate(string(engine))
}

func (c *Checker) engineLock(engine schema.EngineID) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock := c.locks[engine]
	if lock == nil {
		lock = &sync.Mutex{}
		c.locks[engine] = lock
	}
	return lock
}

func (c *Checker) probe(ctx context.Context, engine schema.EngineID) Status {
	log := pslog.Ctx(ctx)
	status := Status{Engine: engine, CheckedAt: time.Now()}
	path, err := lookPath(string(engine))
	if err != nil {
		log.Debug("engine not found", "engine", engine, "err", err)
		return status
	}
	status.Installed = true
	status.Path = path
	version, err := readVersion(ctx, path)
	if err != nil {
		log.Warn("engine version probe failed", "engine", engine, "err", err)
		return status
	}
	status.Version = version
	log.Debug("engine probed", "engine", engine, "path", path, "version", version)
	return status
}

// lookPath and readVersion are seams for tests.
var lookPath = exec.LookPath

var readVersion = func(ctx context.Context, binary string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, binary, "--version").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
