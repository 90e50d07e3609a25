package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExpandWeeklyText(t *testing.T) {
	out, err := runCommand(t, "expand",
		"--start", "2024-03-04T10:00",
		"--tz", "America/New_York",
		"--days", "mon,wednesday",
		"--count", "4",
	)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Mon 2024-03-04 10:00 EST")
	assert.Contains(t, lines[0], "2024-03-04T15:00:00Z")
	assert.Contains(t, lines[2], "Mon 2024-03-11 10:00 EDT")
	assert.Contains(t, lines[2], "2024-03-11T14:00:00Z")
}

func TestExpandJSON(t *testing.T) {
	out, err := runCommand(t, "--format", "json", "expand",
		"--start", "2024-01-31T18:00",
		"--tz", "UTC",
		"--frequency", "monthly",
		"--count", "3",
	)
	require.NoError(t, err)

	var occurrences []ExpandedOccurrence
	require.NoError(t, json.Unmarshal([]byte(out), &occurrences))
	require.Len(t, occurrences, 3)
	assert.Equal(t, time.Date(2024, 2, 29, 18, 0, 0, 0, time.UTC), occurrences[1].UTC)
	assert.Equal(t, 2, occurrences[2].Index)
}

func TestExpandRejectsInvalidInput(t *testing.T) {
	_, err := runCommand(t, "expand", "--start", "2024-03-10T02:30", "--tz", "America/New_York")
	require.Error(t, err)

	_, err = runCommand(t, "expand", "--start", "2024-03-04T10:00", "--tz", "Mars/Olympus")
	require.Error(t, err)

	_, err = runCommand(t, "expand", "--start", "2024-03-04T10:00", "--tz", "UTC", "--days", "funday")
	require.Error(t, err)

	_, err = runCommand(t, "--format", "yaml", "expand", "--start", "2024-03-04T10:00", "--tz", "UTC")
	require.Error(t, err)
}
