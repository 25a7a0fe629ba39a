package supervisor

import (
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessInfo describes one discovered server process.
type ProcessInfo struct {
	PID       int32
	StartTime time.Time
}

// Finder locates the supervised process. The default implementation
// scans the process table; tests substitute their own.
type Finder interface {
	// Find returns the first process whose command line contains every
	// marker.
	Find(markers []string) (ProcessInfo, bool)
	// Alive reports whether the pid still exists.
	Alive(pid int32) bool
}

// psFinder discovers processes through the OS process table.
type psFinder struct{}

// NewProcessFinder returns the process-table backed finder.
func NewProcessFinder() Finder {
	return psFinder{}
}

func (psFinder) Find(markers []string) (ProcessInfo, bool) {
	if len(markers) == 0 {
		return ProcessInfo{}, false
	}

	procs, err := process.Processes()
	if err != nil {
		return ProcessInfo{}, false
	}

	for _, p := range procs {
		cmdline, err := p.Cmdline()
		if err != nil || cmdline == "" {
			continue
		}
		if !matchesAll(cmdline, markers) {
			continue
		}

		info := ProcessInfo{PID: p.Pid}
		if created, err := p.CreateTime(); err == nil {
			info.StartTime = time.UnixMilli(created)
		}
		return info, true
	}
	return ProcessInfo{}, false
}

func (psFinder) Alive(pid int32) bool {
	ok, err := process.PidExists(pid)
	return err == nil && ok
}

func matchesAll(cmdline string, markers []string) bool {
	for _, m := range markers {
		if !strings.Contains(cmdline, m) {
			return false
		}
	}
	return true
}
