package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/vitality/internal/types"
)

// runCLI executes the command tree once and returns what it printed
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	var buf bytes.Buffer
	stdout = &buf
	defer func() { stdout = os.Stdout }()

	rootCmd.SetArgs(args)
	err := execute()
	return buf.String(), err
}

func TestReminderDeliveredToInbox(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")
	start := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	out, err := runCLI(t, "--db", db, "subject", "add", "alice", "alice@example.com", "--name", "Alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered alice <alice@example.com>")

	out, err = runCLI(t, "--db", db, "remind", "create", "alice", "daily", "medication", "Take", "your", "vitamins",
		"--start", start.Format(time.RFC3339))
	require.NoError(t, err)
	assert.Contains(t, out, "Created reminder")

	// Nothing is due yet
	out, err = runCLI(t, "--db", db, "tick", "--at", start.Add(-time.Minute).Format(time.RFC3339))
	require.NoError(t, err)
	assert.Contains(t, out, "0 notification(s)")

	out, err = runCLI(t, "--db", db, "tick", "--at", start.Add(time.Minute).Format(time.RFC3339))
	require.NoError(t, err)
	assert.Contains(t, out, "1 notification(s): 1 delivered, 0 failed")

	out, err = runCLI(t, "--db", db, "inbox", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Reminder: medication")
	assert.Contains(t, out, "Take your vitamins")

	out, err = runCLI(t, "--db", db, "attempts")
	require.NoError(t, err)
	assert.Contains(t, out, "reminder:medication")

	out, err = runCLI(t, "--db", db, "remind", "list", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "scheduled")
	assert.Contains(t, out, "medication: Take your vitamins")
}

func TestFailingCommandClosesStore(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")
	_, err := runCLI(t, "--db", db, "subject", "add", "bob", "bob@example.com")
	require.NoError(t, err)

	_, err = runCLI(t, "--db", db, "trend", "bob", "weight")
	assert.True(t, types.IsValidation(err))
	assert.Nil(t, store, "store must be closed after a failed command")

	_, err = runCLI(t, "--db", db, "trend", "ghost", "count")
	assert.True(t, types.IsNotFound(err))
	assert.Nil(t, store)

	out, err := runCLI(t, "--db", db, "subject", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "bob")
}
