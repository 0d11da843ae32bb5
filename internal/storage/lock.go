package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// lockSuffix is appended to the database file name
const lockSuffix = ".scheduler-lock"

// RunLock is the lock file format that claims the reminder scheduler for one process.
// Two schedulers ticking the same database would fire every reminder twice.
type RunLock struct {
	Holder    string    `json:"holder"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
	Version   string    `json:"version"`
}

// LockPath returns the lock file path for a database path. Each database file
// gets its own lock, so databases sharing a directory do not contend.
func LockPath(dbPath string) string {
	return filepath.Clean(dbPath) + lockSuffix
}

// AcquireRunLock creates the scheduler lock file next to the database.
// A lock left behind by a dead process on this host is overwritten.
// Returns the lock file path for cleanup on shutdown.
func AcquireRunLock(dbPath, version string) (lockPath string, err error) {
	if strings.TrimSpace(dbPath) == "" {
		return "", fmt.Errorf("database path is required")
	}
	lockPath = LockPath(dbPath)

	if data, err := os.ReadFile(lockPath); err == nil {
		var existing RunLock
		if json.Unmarshal(data, &existing) == nil && isProcessAlive(existing.PID, existing.Hostname) {
			return "", fmt.Errorf("another scheduler is already running (PID %d on %s, started %s)",
				existing.PID, existing.Hostname, existing.StartedAt.Format(time.RFC3339))
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to get hostname: %w", err)
	}

	lock := RunLock{
		Holder:    "vitality-scheduler",
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
		Version:   version,
	}
	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal lock: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create lock directory: %w", err)
	}
	if err := os.WriteFile(lockPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to create run lock: %w", err)
	}
	return lockPath, nil
}

// ReleaseRunLock removes the lock file. Safe to call with an empty path.
func ReleaseRunLock(lockPath string) error {
	if lockPath == "" {
		return nil
	}
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove run lock: %w", err)
	}
	return nil
}

// isProcessAlive reports whether pid exists on hostname.
// Remote hosts cannot be checked and are assumed alive.
func isProcessAlive(pid int, hostname string) bool {
	currentHost, err := os.Hostname()
	if err != nil {
		return true
	}
	if !strings.EqualFold(hostname, currentHost) {
		return true
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 probes without delivering anything
	err = process.Signal(syscall.Signal(0))
	if err == nil || err == syscall.EPERM {
		return true
	}
	return false
}
