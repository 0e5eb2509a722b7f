package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/alem-hub/levelup/internal/domain/shared"
	"github.com/alem-hub/levelup/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t     *testing.T
	db    string
	clock *timeutil.FixedClock
	env   map[string]string
}

func newHarness(t *testing.T) *harness {
	return &harness{
		t:     t,
		db:    filepath.Join(t.TempDir(), "levelup.db"),
		clock: timeutil.NewFixedClock(time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)),
		env:   map[string]string{"AUDIT_POINTS": "true"},
	}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	root := NewRootCommand(Options{Environ: h.env, Clock: h.clock, Log: io.Discard})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--db", h.db}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, out)
	return out
}

func TestCLI_Migrate(t *testing.T) {
	h := newHarness(t)
	// opening the sqlite store already migrated it
	assert.Equal(t, "applied 0 migration(s)\n", h.mustRun("migrate"))
}

func TestCLI_LevelsAndPoints(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, "no levels\n", h.mustRun("level", "list"))
	h.mustRun("level", "add", "1", "0")
	h.mustRun("level", "add", "2", "100")
	assert.Equal(t, "1\t0\n2\t100\n", h.mustRun("level", "list"))

	_, err := h.run("level", "add", "2", "50")
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	assert.Equal(t, "credited 60, total 60, level 1\n", h.mustRun("points", "add", "alice", "60"))
	out := h.mustRun("points", "add", "alice", "50", "--reason", "quiz")
	assert.Contains(t, out, "credited 50, total 110, level 2")
	assert.Contains(t, out, "level up 1 -> 2")

	assert.Equal(t, "deducted 10, total 100\n", h.mustRun("points", "deduct", "alice", "10"))
	assert.Equal(t, "points=100 level=2\n", h.mustRun("points", "get", "alice"))
	assert.Equal(t, "total 5, level 2\n", h.mustRun("points", "set", "alice", "5"))

	audit := h.mustRun("points", "audit", "alice")
	assert.Contains(t, audit, "quiz")

	_, err = h.run("points", "get", "bob")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = h.run("points", "add", "alice", "lots")
	assert.EqualError(t, err, `amount must be an integer, got "lots"`)
}

func TestCLI_Streaks(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, "started: 1 day(s)\n", h.mustRun("streak", "record", "alice", "run"))
	assert.Equal(t, "unchanged: 1 day(s)\n", h.mustRun("streak", "record", "alice", "run"))

	h.clock.AdvanceDays(1)
	assert.Equal(t, "increased: 2 day(s)\n", h.mustRun("streak", "record", "alice", "run"))

	assert.Equal(t, "frozen until 2026-05-07\n", h.mustRun("streak", "freeze", "alice", "run", "--days", "2"))

	// two days later is still covered by the freeze
	h.clock.AdvanceDays(2)
	assert.Equal(t, "increased: 3 day(s) (freeze used)\n", h.mustRun("streak", "record", "alice", "run"))

	h.clock.AdvanceDays(3)
	assert.Equal(t, "broken: 1 day(s) (archived run of 3)\n", h.mustRun("streak", "record", "alice", "run"))

	assert.Equal(t, "3\t2026-05-04\t2026-05-07\n", h.mustRun("streak", "history", "alice", "run"))
	assert.Equal(t,
		"count=1 started=2026-05-10 last=2026-05-10 frozen_until=- active_today=true\n",
		h.mustRun("streak", "show", "alice", "run"))

	_, err := h.run("streak", "show", "alice", "swim")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCLI_BadConfig(t *testing.T) {
	h := newHarness(t)
	h.env["POINTS_DEDUCT_POLICY"] = "sometimes"

	_, err := h.run("points", "get", "alice")
	assert.ErrorContains(t, err, "unknown deduct policy")
}
