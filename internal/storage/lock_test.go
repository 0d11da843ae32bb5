package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLockLifecycle(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", "vitality.db")

	lockPath, err := AcquireRunLock(dbPath, "test")
	require.NoError(t, err)
	assert.Equal(t, LockPath(dbPath), lockPath)

	data, err := os.ReadFile(lockPath)
	require.NoError(t, err)
	var lock RunLock
	require.NoError(t, json.Unmarshal(data, &lock))
	assert.Equal(t, os.Getpid(), lock.PID)

	// Our own process is alive, so a second acquire fails
	_, err = AcquireRunLock(dbPath, "test")
	assert.Error(t, err)

	require.NoError(t, ReleaseRunLock(lockPath))
	require.NoError(t, ReleaseRunLock(lockPath))
	require.NoError(t, ReleaseRunLock(""))

	_, err = AcquireRunLock(dbPath, "test")
	require.NoError(t, err)
}

func TestRunLockOverwritesStaleLock(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "vitality.db")
	hostname, err := os.Hostname()
	require.NoError(t, err)

	// PIDs this large are never allocated
	stale, err := json.Marshal(RunLock{Holder: "vitality-scheduler", PID: 1 << 30, Hostname: hostname})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(LockPath(dbPath), stale, 0644))

	_, err = AcquireRunLock(dbPath, "test")
	assert.NoError(t, err)
}

func TestRunLockIsPerDatabase(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "alice.db")
	second := filepath.Join(dir, "bob.db")
	assert.Equal(t, first+".scheduler-lock", LockPath(first))
	assert.NotEqual(t, LockPath(first), LockPath(second))

	lockA, err := AcquireRunLock(first, "test")
	require.NoError(t, err)
	defer func() { _ = ReleaseRunLock(lockA) }()

	lockB, err := AcquireRunLock(second, "test")
	require.NoError(t, err, "a scheduler on another database in the same directory must not be blocked")
	require.NoError(t, ReleaseRunLock(lockB))
}

func TestAcquireRunLockRequiresPath(t *testing.T) {
	_, err := AcquireRunLock("", "test")
	assert.Error(t, err)
}

func TestNewStorageMemory(t *testing.T) {
	store, err := NewStorage(context.Background(), &Config{Path: ":memory:"})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Positive(t, version)
}
