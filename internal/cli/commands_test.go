package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/require"

	"example.com/fittracker/internal/config"
	"example.com/fittracker/internal/export"
	"example.com/fittracker/internal/storage/kv"
)

var testNow = time.Date(2024, time.January, 3, 9, 0, 0, 0, time.UTC)

type harness struct {
	store *kv.Memory
	env   map[string]string
}

func newHarness() *harness {
	return &harness{store: kv.NewMemory(), env: map[string]string{}}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(
		WithLookuper(envconfig.MapLookuper(h.env)),
		WithClock(func() time.Time { return testNow }),
		WithStoreOpener(func(context.Context, config.Config) (kv.Store, func() error, error) {
			return h.store, nil, nil
		}),
	)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h.run(t, args...)
	require.NoError(t, err)
	return out
}

func TestCommandsRequireSession(t *testing.T) {
	h := newHarness()
	for _, args := range [][]string{{"list"}, {"stats"}, {"goals"}, {"export"}, {"add", "--type", "Yoga"}} {
		_, err := h.run(t, args...)
		require.ErrorContains(t, err, "no active session", args[0])
	}
}

func TestSessionSurvivesBetweenInvocations(t *testing.T) {
	h := newHarness()
	out := h.mustRun(t, "login", "--email", "ana@example.com")
	require.Contains(t, out, "Logged in as ana@example.com (0 workouts)")

	h.mustRun(t, "add", "--type", "running", "--duration", "30", "--calories", "300", "--date", "2024-01-02")
	h.mustRun(t, "add", "--type", "Yoga", "--duration", "45", "--calories", "150")

	out = h.mustRun(t, "login", "--email", "ana@example.com")
	require.Contains(t, out, "(2 workouts)")

	out = h.mustRun(t, "logout")
	require.Contains(t, out, "Logged out")
	_, err := h.run(t, "list")
	require.Error(t, err)
}

func TestAddRejectsInvalidInput(t *testing.T) {
	h := newHarness()
	h.mustRun(t, "login", "--email", "ana@example.com")

	_, err := h.run(t, "add", "--type", "Curling", "--duration", "30", "--calories", "100")
	require.ErrorContains(t, err, "unknown type")

	_, err = h.run(t, "add", "--type", "Yoga", "--duration", "0", "--calories", "100")
	require.Error(t, err)

	_, err = h.run(t, "add", "--type", "Yoga", "--duration", "10", "--calories", "100", "--date", "03/01/2024")
	require.ErrorContains(t, err, "YYYY-MM-DD")
}

func TestListFilters(t *testing.T) {
	h := newHarness()
	h.mustRun(t, "login", "--email", "ana@example.com")
	h.mustRun(t, "add", "--type", "Running", "--duration", "30", "--calories", "300", "--date", "2024-01-01")
	h.mustRun(t, "add", "--type", "Cycling", "--duration", "60", "--calories", "500", "--date", "2024-01-02")
	h.mustRun(t, "add", "--type", "Running", "--duration", "20", "--calories", "200", "--date", "2024-01-03")

	out := h.mustRun(t, "list")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	require.True(t, strings.HasPrefix(lines[1], "2024-01-03"))
	require.True(t, strings.HasPrefix(lines[3], "2024-01-01"))

	out = h.mustRun(t, "list", "--search", "RUN", "--from", "2024-01-02", "--to", "2024-01-03")
	lines = strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[1], "Running")

	out = h.mustRun(t, "list", "--type", "Boxing")
	require.Contains(t, out, "No workouts match the filters")

	_, err := h.run(t, "list", "--from", "2024-01-03", "--to", "2024-01-01")
	require.Error(t, err)

	_, err = h.run(t, "list", "--to", "2024-01-01")
	require.ErrorContains(t, err, "--to requires --from")
}

func TestGoalsAndStats(t *testing.T) {
	h := newHarness()
	h.mustRun(t, "login", "--email", "ana@example.com")
	h.mustRun(t, "add", "--type", "Running", "--duration", "30", "--calories", "300", "--date", "2024-01-02")

	out := h.mustRun(t, "goals")
	require.Regexp(t, `Workouts\s+1\s+5\s+20%\s+in_progress`, out)
	require.Regexp(t, `Duration \(min\)\s+30\s+300\s+10%`, out)
	require.Regexp(t, `Calories\s+300\s+2000\s+15%`, out)

	out = h.mustRun(t, "stats")
	require.Contains(t, out, "All time: 1 workouts, 30 min, 300 kcal")
	require.Contains(t, out, "Week of 2024-01-01: 1 workouts, 30 min, 300 kcal")
	require.Contains(t, out, "January 2024: 1 workouts, 30 min, 300 kcal")

	out = h.mustRun(t, "stats", "--date", "2023-12-20")
	require.Contains(t, out, "Week of 2023-12-18: 0 workouts")
}

func TestExportWritesCSV(t *testing.T) {
	h := newHarness()
	h.mustRun(t, "login", "--email", "ana@example.com")
	h.mustRun(t, "add", "--type", "Running", "--duration", "30", "--calories", "300", "--date", "2024-01-02")

	dir := t.TempDir()
	out := h.mustRun(t, "export", "--out", dir)
	require.Contains(t, out, "Wrote 1 workouts")

	body, err := os.ReadFile(filepath.Join(dir, export.FileName(testNow)))
	require.NoError(t, err)
	require.Equal(t, export.Header+"\n2024-01-02,Running,30,300", string(body))
}

func TestDefaultConfigKeepsSessionOnDisk(t *testing.T) {
	env := envconfig.MapLookuper(map[string]string{
		"STORAGE_FILE": filepath.Join(t.TempDir(), "fittracker-data.json"),
	})
	run := func(args ...string) (string, error) {
		root := NewRootCmd(WithLookuper(env), WithClock(func() time.Time { return testNow }))
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetErr(&out)
		root.SetArgs(args)
		err := root.ExecuteContext(context.Background())
		return out.String(), err
	}

	_, err := run("login", "--email", "a@b.co")
	require.NoError(t, err)
	_, err = run("add", "--type", "Running", "--duration", "30", "--calories", "300")
	require.NoError(t, err)

	out, err := run("list")
	require.NoError(t, err)
	require.Contains(t, out, "2024-01-03")
	require.Contains(t, out, "Running")
}

func TestExportFileNamedByUTCDay(t *testing.T) {
	h := newHarness()
	h.env["TIMEZONE"] = "Pacific/Honolulu"
	h.mustRun(t, "login", "--email", "ana@example.com")

	dir := t.TempDir()
	h.mustRun(t, "export", "--out", dir)

	_, err := os.Stat(filepath.Join(dir, "workout-data-2024-01-03.csv"))
	require.NoError(t, err)
}
