// Package updater self-updates the craftwatch binary with backup and
// rollback support.
package updater

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/creativeprojects/go-selfupdate"

	"github.com/craftops/craftwatch/internal/version"
)

const (
	backupFilename     = "craftwatch.backup"
	backupInfoFilename = "backup.json"
)

type backupInfo struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	ExecPath  string    `json:"exec_path"`
}

// backupManager keeps one copy of the previous binary under
// ~/.cache/craftwatch/backup/.
type backupManager struct {
	mu        sync.RWMutex
	backupDir string
	info      *backupInfo
	logger    *slog.Logger
}

func newBackupManager(logger *slog.Logger) (*backupManager, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	backupDir := filepath.Join(home, ".cache", "craftwatch", "backup")
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	mgr := &backupManager{backupDir: backupDir, logger: logger}
	mgr.loadBackupInfo()
	return mgr, nil
}

func (m *backupManager) loadBackupInfo() {
	data, err := os.ReadFile(filepath.Join(m.backupDir, backupInfoFilename))
	if err != nil {
		return
	}

	var info backupInfo
	if err := json.Unmarshal(data, &info); err != nil {
		m.logger.Warn("Unreadable backup metadata", "error", err)
		return
	}
	if _, err := os.Stat(filepath.Join(m.backupDir, backupFilename)); err != nil {
		m.logger.Warn("Backup metadata present but binary missing")
		return
	}

	m.mu.Lock()
	m.info = &info
	m.mu.Unlock()
	m.logger.Info("Found existing backup", "version", info.Version)
}

func (m *backupManager) createBackup() error {
	execPath, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	backupPath := filepath.Join(m.backupDir, backupFilename)
	if err := copyFile(execPath, backupPath); err != nil {
		return fmt.Errorf("copy executable to backup: %w", err)
	}

	info := backupInfo{Version: version.Version, CreatedAt: time.Now(), ExecPath: execPath}
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode backup metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.backupDir, backupInfoFilename), data, 0o644); err != nil {
		return fmt.Errorf("write backup metadata: %w", err)
	}

	m.mu.Lock()
	m.info = &info
	m.mu.Unlock()

	m.logger.Info("Backup created", "version", info.Version, "path", backupPath)
	return nil
}

func (m *backupManager) restore() error {
	m.mu.RLock()
	info := m.info
	m.mu.RUnlock()

	if info == nil {
		return fmt.Errorf("no backup available")
	}
	if err := copyFile(filepath.Join(m.backupDir, backupFilename), info.ExecPath); err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}

	m.logger.Info("Backup restored", "version", info.Version)
	return nil
}

func (m *backupManager) hasBackup() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.info != nil
}

func (m *backupManager) backupVersion() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.info == nil {
		return ""
	}
	return m.info.Version
}

func copyFile(from, to string) error {
	src, err := os.Open(from)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(to, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
