package logstream

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
)

// truncationSlack is how far the file size must shrink before a
// size-based rotation is declared. Small dips from in-place rewrites of
// the last line stay below it.
const truncationSlack = 1024

// follower holds the open-file state of one watch loop.
type follower struct {
	path    string
	file    *os.File
	offset  int64
	inode   uint64
	size    int64
	pending string // trailing partial line carried between reads
	lost    bool   // the file was unreadable on the previous attempt
}

// runFollower is the per-watch reading loop. It is woken by fsnotify
// when available and falls back to polling, and checks for rotation on
// its own cadence. Exits when the watch is stopped.
func (s *Streamer) runFollower(w *watch) {
	defer close(w.done)

	f := &follower{path: w.path}
	f.open(false)
	defer f.close()

	var watchEvents chan fsnotify.Event
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		// Watch the directory: rotation replaces the file, and a watch
		// on the old inode would go silent.
		if err := watcher.Add(filepath.Dir(w.path)); err == nil {
			watchEvents = watcher.Events
		}
	}
	if watchEvents == nil {
		s.logger.Debug("fsnotify unavailable, polling only", "path", w.path)
	}

	rotation := time.NewTicker(s.opts.RotationInterval)
	defer rotation.Stop()
	poll := time.NewTicker(s.opts.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-w.stop:
			return
		case ev := <-watchEvents:
			if ev.Name == w.path && ev.Op.Has(fsnotify.Write) {
				f.readNew(w)
			}
		case <-poll.C:
			f.readNew(w)
		case <-rotation.C:
			f.checkRotation(w)
		}
	}
}

// open (re)opens the file. fromStart reads from the beginning, as after
// a rotation; otherwise the follower starts at the current end so
// subscribers only see new content.
func (f *follower) open(fromStart bool) bool {
	f.close()

	file, err := os.Open(f.path)
	if err != nil {
		return false
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return false
	}

	f.file = file
	f.size = stat.Size()
	f.offset = 0
	if !fromStart {
		f.offset = stat.Size()
	}
	f.pending = ""
	if sys, ok := stat.Sys().(*syscall.Stat_t); ok {
		f.inode = sys.Ino
	}
	return true
}

func (f *follower) close() {
	if f.file != nil {
		_ = f.file.Close()
		f.file = nil
	}
}

// readNew drains content appended since the last read and broadcasts
// complete lines. A follower that lost its file keeps trying to reopen
// and announces recovery.
func (f *follower) readNew(w *watch) {
	if f.file == nil {
		// A lost file was usually replaced. Reading the replacement
		// from the start keeps lines written before the reopen.
		if !f.open(f.lost) {
			f.lost = true
			return
		}
		if f.lost {
			f.lost = false
			w.broadcast(Event{Type: EventReconnected, Timestamp: time.Now()})
		}
	}

	buf, err := io.ReadAll(io.NewSectionReader(f.file, f.offset, 1<<20))
	if err != nil {
		w.broadcast(Event{
			Type:      EventError,
			Message:   "log read failed: " + err.Error(),
			Timestamp: time.Now(),
		})
		f.close()
		f.lost = true
		return
	}
	if len(buf) == 0 {
		return
	}
	f.offset += int64(len(buf))
	f.size = f.offset

	content := f.pending + string(buf)
	lines := strings.Split(content, "\n")
	f.pending = lines[len(lines)-1]
	now := time.Now()
	for _, line := range lines[:len(lines)-1] {
		w.broadcast(Event{Type: EventLine, Line: line, Timestamp: now})
	}
}

// checkRotation compares the path's current inode and size against the
// follower's view. A new inode or a size drop beyond the slack means
// the file was rotated or truncated: reopen from the start and tell
// subscribers.
func (f *follower) checkRotation(w *watch) {
	stat, err := os.Stat(f.path)
	if err != nil {
		if f.file != nil {
			f.close()
			f.lost = true
			w.broadcast(Event{
				Type:      EventError,
				Message:   "log file disappeared",
				Timestamp: time.Now(),
			})
		}
		return
	}

	var inode uint64
	if sys, ok := stat.Sys().(*syscall.Stat_t); ok {
		inode = sys.Ino
	}

	rotated := f.file != nil &&
		((inode != 0 && inode != f.inode) || stat.Size() < f.size-truncationSlack)
	if !rotated {
		return
	}

	if f.open(true) {
		w.broadcast(Event{
			Type:      EventRotation,
			Message:   "log file rotated, following the new file",
			Timestamp: time.Now(),
		})
		f.readNew(w)
	} else {
		f.lost = true
	}
}
