package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/craftops/craftwatch/internal/events"
	"github.com/craftops/craftwatch/internal/logging"
	"github.com/craftops/craftwatch/internal/probe"
	"github.com/craftops/craftwatch/internal/rcon"
	"github.com/craftops/craftwatch/internal/startup"
)

// Options configure a supervisor. LaunchCommand and WorkDir are
// required; zero durations fall back to defaults.
type Options struct {
	WorkDir       string
	LaunchCommand string
	LogFile       string   // server output file, relative paths resolve under WorkDir
	RequiredFiles []string // launch prerequisites, relative paths resolve under WorkDir

	// ProcessMarkers identify the server in the process table. Empty
	// means the launch command's first token.
	ProcessMarkers []string

	Rcon     *rcon.Manager
	Endpoint func() (rcon.Endpoint, error)
	Prober   probe.Prober
	Bus      *events.Bus
	Monitor  *startup.Monitor

	Finder  Finder  // test seam, default process-table finder
	Sampler Sampler // test seam, default blocking gopsutil sampler

	StatusCacheTTL   time.Duration // default 5s
	YoungThreshold   time.Duration // probe-failure grace age, default 5m
	SettleDelay      time.Duration // post-launch appearance window, default 5s
	SettlePoll       time.Duration // appearance poll interval, default 250ms
	StopTimeout      time.Duration // per escalation stage, default 30s
	StopPause        time.Duration // pause between shutdown commands, default 1s
	ProbeTimeout     time.Duration // status probe deadline, default 5s
	SampleInterval   time.Duration // blocking CPU window, default 3s
	DiscoverInterval time.Duration // rediscovery cadence, default 5s
}

func (o Options) withDefaults() Options {
	if len(o.ProcessMarkers) == 0 {
		if args, err := splitCommand(o.LaunchCommand); err == nil && len(args) > 0 {
			o.ProcessMarkers = []string{args[0]}
		}
	}
	if o.LogFile == "" {
		o.LogFile = "logs/latest.log"
	}
	if o.StatusCacheTTL <= 0 {
		o.StatusCacheTTL = 5 * time.Second
	}
	if o.YoungThreshold <= 0 {
		o.YoungThreshold = 5 * time.Minute
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = 5 * time.Second
	}
	if o.SettlePoll <= 0 {
		o.SettlePoll = 250 * time.Millisecond
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = 30 * time.Second
	}
	if o.StopPause <= 0 {
		o.StopPause = time.Second
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 5 * time.Second
	}
	if o.SampleInterval <= 0 {
		o.SampleInterval = 3 * time.Second
	}
	if o.DiscoverInterval <= 0 {
		o.DiscoverInterval = 5 * time.Second
	}
	return o
}

// processHandle is the shared record for a tracked process. Guarded by
// the supervisor mutex; the sampler writes, the status path reads.
type processHandle struct {
	pid        int32
	startTime  time.Time
	cpuPercent float64
	memoryMB   float64
	lastSample time.Time
}

// Supervisor owns the server process lifecycle. All shared state lives
// on the instance behind its mutex; the lock is never held across
// process or network I/O.
type Supervisor struct {
	opts    Options
	finder  Finder
	sampler Sampler
	logger  *slog.Logger

	mu          sync.Mutex
	handle      *processHandle
	statusCache *StatusSnapshot
	cacheAt     time.Time
	state       State
}

// New creates a supervisor.
func New(opts Options) *Supervisor {
	opts = opts.withDefaults()
	s := &Supervisor{
		opts:   opts,
		finder: opts.Finder,
		logger: logging.GetLogger("supervisor"),
		state:  StateStopped,
	}
	if s.finder == nil {
		s.finder = NewProcessFinder()
	}
	s.sampler = opts.Sampler
	if s.sampler == nil {
		s.sampler = NewSampler(opts.SampleInterval)
	}
	return s
}

// Start launches the server detached from the supervisor's own session
// and waits for the process to appear. Returns the observed pid.
func (s *Supervisor) Start() (int32, error) {
	if info, found := s.finder.Find(s.opts.ProcessMarkers); found {
		return 0, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, info.PID)
	}

	for _, file := range s.opts.RequiredFiles {
		path := s.resolve(file)
		if _, err := os.Stat(path); err != nil {
			return 0, &MissingArtifactError{Path: path}
		}
	}

	args, err := splitCommand(s.opts.LaunchCommand)
	if err != nil || len(args) == 0 {
		return 0, fmt.Errorf("invalid launch command %q: %v", s.opts.LaunchCommand, err)
	}

	logPath := s.resolve(s.opts.LogFile)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return 0, fmt.Errorf("create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open server log: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = s.opts.WorkDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	// New session so supervisor restarts and signals never reach the
	// server.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("launch server: %w", err)
	}
	s.logger.Info("Server launcher started", "pid", cmd.Process.Pid, "command", s.opts.LaunchCommand)

	// Reap the direct child so it never lingers as a zombie.
	go func() { _ = cmd.Wait() }()

	info, found := s.waitForAppearance()
	if !found {
		if detail := s.sniffLogTail(logPath); detail != "" {
			return 0, fmt.Errorf("%w: %s", ErrProcessNotObserved, detail)
		}
		return 0, ErrProcessNotObserved
	}

	s.mu.Lock()
	s.handle = &processHandle{pid: info.PID, startTime: info.StartTime}
	s.statusCache = nil
	s.state = StateStarting
	s.mu.Unlock()

	if s.opts.Monitor != nil {
		s.opts.Monitor.StopMonitoring()
		s.opts.Monitor.StartMonitoring()
	}
	s.publishState(StateStarting, int(info.PID), "server launched")

	return info.PID, nil
}

// Stop shuts the server down, preferring the graceful RCON sequence and
// escalating to OS signals. Returns a human-readable outcome.
func (s *Supervisor) Stop() (string, error) {
	info, found := s.finder.Find(s.opts.ProcessMarkers)
	if !found {
		return "", ErrNotRunning
	}

	s.mu.Lock()
	s.state = StateStopping
	s.statusCache = nil
	s.mu.Unlock()
	s.publishState(StateStopping, int(info.PID), "stopping server")

	message := "server stopped gracefully via RCON"
	if !s.stopGracefully(info.PID) {
		message = s.stopWithSignals(info.PID)
	}

	if s.opts.Monitor != nil {
		s.opts.Monitor.StopMonitoring()
	}
	if s.opts.Rcon != nil {
		s.opts.Rcon.DisconnectAll()
	}

	s.mu.Lock()
	s.handle = nil
	s.statusCache = nil
	s.state = StateStopped
	s.mu.Unlock()
	s.publishState(StateStopped, 0, message)

	return message, nil
}

// Restart composes Stop and Start with a settle delay in between. A
// stop against an already stopped server is not an error here.
func (s *Supervisor) Restart() (string, error) {
	if _, err := s.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		return "", fmt.Errorf("restart: %w", err)
	}

	time.Sleep(s.opts.SettleDelay)

	pid, err := s.Start()
	if err != nil {
		return "", fmt.Errorf("restart: %w", err)
	}
	return fmt.Sprintf("server restarted (pid %d)", pid), nil
}

// Status returns a snapshot, served from cache within the TTL. Callers
// inside the window receive the identical pointer, so repeated polling
// costs one probe per TTL at most.
func (s *Supervisor) Status() *StatusSnapshot {
	s.mu.Lock()
	if s.statusCache != nil && time.Since(s.cacheAt) < s.opts.StatusCacheTTL {
		cached := s.statusCache
		s.mu.Unlock()
		return cached
	}
	s.mu.Unlock()

	snapshot := s.observe()

	s.mu.Lock()
	s.statusCache = snapshot
	s.cacheAt = time.Now()
	s.mu.Unlock()

	return snapshot
}

// observe builds a fresh snapshot: process discovery, cached resource
// samples and one bounded readiness probe.
func (s *Supervisor) observe() *StatusSnapshot {
	snapshot := &StatusSnapshot{ObservedAt: time.Now()}

	info, found := s.finder.Find(s.opts.ProcessMarkers)
	if !found {
		s.mu.Lock()
		s.handle = nil
		stopping := s.state == StateStopping
		s.mu.Unlock()

		snapshot.State = StateStopped
		if stopping {
			snapshot.State = StateStopping
		}
		return snapshot
	}

	snapshot.Running = true
	snapshot.PID = info.PID
	if !info.StartTime.IsZero() {
		snapshot.UptimeSeconds = int64(time.Since(info.StartTime).Seconds())
	}

	s.mu.Lock()
	if s.handle == nil || s.handle.pid != info.PID {
		s.handle = &processHandle{pid: info.PID, startTime: info.StartTime}
	}
	snapshot.CPUPercent = s.handle.cpuPercent
	snapshot.MemoryMB = s.handle.memoryMB
	s.mu.Unlock()

	age := time.Since(info.StartTime)

	if s.opts.Prober != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.ProbeTimeout)
		status, err := s.opts.Prober.Probe(ctx)
		cancel()

		if err == nil && status != nil && status.Online {
			snapshot.State = StateRunning
			snapshot.Players = status.Players
			snapshot.MaxPlayers = status.MaxPlayers
			snapshot.PlayerNames = status.PlayerNames
			return snapshot
		}
	}

	// The probe failed while the OS process exists. A young process is
	// still booting; a mature one is more likely suffering connectivity
	// trouble than dead, so it reports running but degraded.
	if info.StartTime.IsZero() || age < s.opts.YoungThreshold {
		snapshot.State = StateStarting
	} else {
		snapshot.State = StateRunning
		snapshot.Degraded = true
	}
	return snapshot
}

// ExecuteCommand runs one console command against the configured RCON
// endpoint.
func (s *Supervisor) ExecuteCommand(command string) rcon.Result {
	if s.opts.Rcon == nil || s.opts.Endpoint == nil {
		return rcon.Result{Outcome: rcon.OutcomeFailed, Err: fmt.Errorf("rcon is not configured")}
	}
	endpoint, err := s.opts.Endpoint()
	if err != nil {
		return rcon.Result{Outcome: rcon.OutcomeFailed, Err: fmt.Errorf("resolve rcon endpoint: %w", err)}
	}
	return s.opts.Rcon.ExecuteCommand(endpoint, command)
}

// stopGracefully drives the save-and-stop console sequence and waits
// for the process to exit. Returns false when any command fails or the
// exit wait times out, handing over to signal escalation.
func (s *Supervisor) stopGracefully(pid int32) bool {
	if s.opts.Rcon == nil || s.opts.Endpoint == nil {
		return false
	}
	endpoint, err := s.opts.Endpoint()
	if err != nil {
		s.logger.Warn("No RCON endpoint for graceful stop", "error", err)
		return false
	}

	// Disable autosave, flush the world, then stop. The pauses give the
	// server time to finish each disk operation.
	sequence := []string{"save-off", "save-all flush", "stop"}
	for i, command := range sequence {
		if i > 0 {
			time.Sleep(s.opts.StopPause)
		}
		result := s.opts.Rcon.ExecuteCommand(endpoint, command)
		if !result.Succeeded() {
			s.logger.Warn("Graceful stop command failed", "command", command, "error", result.Err)
			return false
		}
	}

	if !s.waitForExit(pid, s.opts.StopTimeout) {
		s.logger.Warn("Server ignored the stop command", "pid", pid, "timeout", s.opts.StopTimeout)
		return false
	}

	s.logger.Info("Server stopped gracefully", "pid", pid)
	return true
}

// stopWithSignals escalates SIGTERM then SIGKILL, each stage bounded by
// the stop timeout.
func (s *Supervisor) stopWithSignals(pid int32) string {
	s.logger.Info("Sending SIGTERM", "pid", pid)
	_ = syscall.Kill(int(pid), syscall.SIGTERM)
	if s.waitForExit(pid, s.opts.StopTimeout) {
		return "server terminated with SIGTERM"
	}

	s.logger.Warn("Server ignored SIGTERM, force killing", "pid", pid)
	_ = syscall.Kill(int(pid), syscall.SIGKILL)
	s.waitForExit(pid, s.opts.StopTimeout)
	return "server force-killed"
}

// waitForExit polls process liveness until it disappears or the timeout
// elapses.
func (s *Supervisor) waitForExit(pid int32, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !s.finder.Alive(pid) {
			return true
		}
		time.Sleep(s.opts.SettlePoll)
	}
	return !s.finder.Alive(pid)
}

// waitForAppearance polls for the launched process during the settle
// window.
func (s *Supervisor) waitForAppearance() (ProcessInfo, bool) {
	deadline := time.Now().Add(s.opts.SettleDelay)
	for {
		if info, found := s.finder.Find(s.opts.ProcessMarkers); found {
			return info, true
		}
		if time.Now().After(deadline) {
			return ProcessInfo{}, false
		}
		time.Sleep(s.opts.SettlePoll)
	}
}

// launchFailureMarkers are log fragments that identify common startup
// failures, checked when the process never appears.
var launchFailureMarkers = []string{
	"Unable to access jarfile",
	"Could not reserve enough space",
	"Address already in use",
	"FAILED TO BIND TO PORT",
	"Exception",
	"Error:",
}

// sniffLogTail inspects the end of the server log for a recognizable
// failure line.
func (s *Supervisor) sniffLogTail(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	const tailBytes = 4096
	stat, err := f.Stat()
	if err != nil {
		return ""
	}
	offset := stat.Size() - tailBytes
	if offset < 0 {
		offset = 0
	}

	buf := make([]byte, stat.Size()-offset)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return ""
	}

	for _, line := range strings.Split(string(buf), "\n") {
		for _, marker := range launchFailureMarkers {
			if strings.Contains(line, marker) {
				return strings.TrimSpace(line)
			}
		}
	}
	return ""
}

// publishState emits a lifecycle event when a bus is configured.
func (s *Supervisor) publishState(state State, pid int, message string) {
	if s.opts.Bus == nil {
		return
	}
	s.opts.Bus.Publish(events.ServerStateEvent{
		State:     string(state),
		PID:       pid,
		Message:   message,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// resolve expands a path relative to the working directory.
func (s *Supervisor) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.opts.WorkDir, path)
}

// splitCommand breaks a launch command string into argv, honoring
// quotes and backslash escapes.
func splitCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)

	runes := []rune(strings.TrimSpace(command))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			switch {
			case !inQuote:
				inQuote = true
				quoteChar = r
			case r == quoteChar:
				inQuote = false
				quoteChar = 0
			default:
				current.WriteRune(r)
			}
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		case r == '\\' && i+1 < len(runes):
			i++
			current.WriteRune(runes[i])
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		args = append(args, current.String())
	}
	if inQuote {
		return nil, fmt.Errorf("unclosed quote in command")
	}
	return args, nil
}
