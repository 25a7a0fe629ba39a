package supervisor

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Sampler measures resource usage of one process. The default
// implementation performs a blocking multi-second CPU measurement, so
// it must only ever run on the dedicated sampler loop, never on the
// status read path.
type Sampler interface {
	Sample(ctx context.Context, pid int32) (cpuPercent, memoryMB float64, err error)
}

// psSampler measures through the OS process table.
type psSampler struct {
	interval time.Duration
}

// NewSampler returns the process-table backed sampler. interval is the
// blocking CPU measurement window.
func NewSampler(interval time.Duration) Sampler {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &psSampler{interval: interval}
}

func (s *psSampler) Sample(ctx context.Context, pid int32) (float64, float64, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return 0, 0, err
	}

	cpu, err := p.PercentWithContext(ctx, s.interval)
	if err != nil {
		return 0, 0, err
	}

	var memoryMB float64
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		memoryMB = float64(mem.RSS) / (1024 * 1024)
	}

	return cpu, memoryMB, nil
}

// RunSampler is the background sampling loop. While a PID is cached it
// records CPU and memory into the shared snapshot state; when the PID
// dies it clears the cache and falls back to rediscovery by command
// line markers. Blocks until ctx is cancelled.
func (s *Supervisor) RunSampler(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pid, ok := s.cachedPID()
		if !ok {
			if info, found := s.finder.Find(s.opts.ProcessMarkers); found {
				s.adoptProcess(info)
				continue
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.opts.DiscoverInterval):
			}
			continue
		}

		if !s.finder.Alive(pid) {
			s.logger.Info("Supervised process is gone", "pid", pid)
			s.clearProcess()
			continue
		}

		cpu, mem, err := s.sampler.Sample(ctx, pid)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Debug("Resource sample failed", "pid", pid, "error", err)
			s.clearProcess()
			continue
		}
		s.recordSample(cpu, mem)
	}
}

// cachedPID returns the tracked pid, if any.
func (s *Supervisor) cachedPID() (int32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return 0, false
	}
	return s.handle.pid, true
}

// adoptProcess starts tracking an externally discovered process.
func (s *Supervisor) adoptProcess(info ProcessInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		return
	}
	s.logger.Info("Discovered running server process", "pid", info.PID)
	s.handle = &processHandle{pid: info.PID, startTime: info.StartTime}
	s.statusCache = nil
}

// clearProcess drops the tracked pid and invalidates the status cache.
func (s *Supervisor) clearProcess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = nil
	s.statusCache = nil
}

// recordSample stores the latest measurement under the mutex.
func (s *Supervisor) recordSample(cpu, mem float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return
	}
	s.handle.cpuPercent = cpu
	s.handle.memoryMB = mem
	s.handle.lastSample = time.Now()
}
