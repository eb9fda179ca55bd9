package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seeds/internal/seeder"
	"github.com/roach88/seeds/internal/testutil"
)

var simpleScripts = map[string]string{
	"20240101000000_create_users.sql": "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT);",
	"20240102000000_seed_users.sql":   "INSERT INTO users (name) VALUES ('ada');",
}

var reversibleScripts = map[string]string{
	"20240101000000_create_users.up.sql":   "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT);",
	"20240101000000_create_users.down.sql": "DROP TABLE users;",
	"20240102000000_seed_users.up.sql":     "INSERT INTO users (name) VALUES ('ada');",
	"20240102000000_seed_users.down.sql":   "DELETE FROM users;",
}

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func fixedOptions() RootOptions {
	return RootOptions{
		Now:    testutil.NewDeterministicClock(fixedNow, 0).Now,
		RunIDs: seeder.NewFixedGenerator("run-1"),
	}
}

// --- add ---

func TestAdd_Simple(t *testing.T) {
	p := newProject(t, nil)

	res := execute(t, fixedOptions(), p.args("add", "create users")...)
	require.NoError(t, res.err)
	newGolden(t).Assert(t, "add_simple", []byte(normalize(res.stdout, p.source)))

	body, err := os.ReadFile(filepath.Join(p.source, "20240102030405_create_users.sql"))
	require.NoError(t, err)
	assert.Equal(t, "-- Add seeds script here\n", string(body))
}

func TestAdd_Reversible(t *testing.T) {
	p := newProject(t, nil)

	res := execute(t, fixedOptions(), p.args("add", "-r", "create users")...)
	require.NoError(t, res.err)
	newGolden(t).Assert(t, "add_reversible", []byte(normalize(res.stdout, p.source)))

	up, err := os.ReadFile(filepath.Join(p.source, "20240102030405_create_users.up.sql"))
	require.NoError(t, err)
	assert.Equal(t, "-- Add up seeds script here\n", string(up))
	down, err := os.ReadFile(filepath.Join(p.source, "20240102030405_create_users.down.sql"))
	require.NoError(t, err)
	assert.Equal(t, "-- Add down seeds script here\n", string(down))
}

func TestAdd_CreatesSourceDirectory(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	source := filepath.Join(t.TempDir(), "db", "seeds")

	res := execute(t, fixedOptions(), "--source", source, "add", "first")
	require.NoError(t, res.err)
	assert.FileExists(t, filepath.Join(source, "20240102030405_first.sql"))
}

func TestAdd_RefusesMixingKinds(t *testing.T) {
	p := newProject(t, simpleScripts)

	res := execute(t, fixedOptions(), p.args("add", "-r", "more users")...)
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, res.exitCode())
	assert.Contains(t, res.stdout, "Error [RESOLUTION]")
	assert.Contains(t, res.stdout, "cannot mix reversible seeds with simple seeds")
	assert.NoFileExists(t, filepath.Join(p.source, "20240102030405_more_users.up.sql"))
}

func TestAdd_RefusesOverwrite(t *testing.T) {
	p := newProject(t, map[string]string{"20240102030405_create_users.sql": "SELECT 1;"})

	res := execute(t, fixedOptions(), p.args("add", "create users")...)
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, res.exitCode())
	assert.Contains(t, res.stdout, "Error [WRITE]")
}

func TestAdd_RejectsDescriptionThatChangesKind(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"simple ending in .up", []string{"add", "x.up"}},
		{"simple ending in .down", []string{"add", "x.down"}},
		{"path separator", []string{"add", "../escape"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProject(t, nil)

			res := execute(t, fixedOptions(), p.args(tt.args...)...)
			require.Error(t, res.err)
			assert.Equal(t, ExitCommandError, res.exitCode())
			assert.Contains(t, res.stdout, "Error [SOURCE]")

			entries, err := os.ReadDir(p.source)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestAdd_ReversibleAcceptsDottedDescription(t *testing.T) {
	p := newProject(t, nil)

	res := execute(t, fixedOptions(), p.args("add", "-r", "x.up")...)
	require.NoError(t, res.err)
	assert.FileExists(t, filepath.Join(p.source, "20240102030405_x.up.up.sql"))
	assert.FileExists(t, filepath.Join(p.source, "20240102030405_x.up.down.sql"))

	res = execute(t, fixedOptions(), p.args("run", "--dry-run")...)
	require.NoError(t, res.err)
}

func TestAdd_JSON(t *testing.T) {
	p := newProject(t, nil)

	res := execute(t, fixedOptions(), p.args("--format", "json", "add", "-r", "create users")...)
	require.NoError(t, res.err)

	var resp struct {
		Status string    `json:"status"`
		Data   AddResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(20240102030405), resp.Data.Version)
	assert.Equal(t, []string{
		filepath.Join(p.source, "20240102030405_create_users.up.sql"),
		filepath.Join(p.source, "20240102030405_create_users.down.sql"),
	}, resp.Data.Files)
}

// --- run ---

var appliedLine = regexp.MustCompile(`^Applied (\d+)/migrate ([a-z ]+) \(.+\)$`)

func appliedVersions(t *testing.T, out string) []string {
	t.Helper()
	var versions []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		m := appliedLine.FindStringSubmatch(line)
		require.NotNil(t, m, "unexpected line %q", line)
		versions = append(versions, m[1])
	}
	return versions
}

func TestRun_AppliesPendingScripts(t *testing.T) {
	p := newProject(t, simpleScripts)

	res := execute(t, fixedOptions(), p.args("run")...)
	require.NoError(t, res.err)
	assert.Equal(t, []string{"20240101000000", "20240102000000"}, appliedVersions(t, res.stdout))

	res = execute(t, fixedOptions(), p.args("run")...)
	require.NoError(t, res.err)
	assert.Empty(t, res.stdout, "nothing left to apply")
}

func TestRun_DryRun(t *testing.T) {
	p := newProject(t, simpleScripts)

	res := execute(t, fixedOptions(), p.args("run", "--dry-run")...)
	require.NoError(t, res.err)
	newGolden(t).Assert(t, "run_dry_run", []byte(res.stdout))

	// Nothing was applied.
	res = execute(t, fixedOptions(), p.args("run")...)
	require.NoError(t, res.err)
	assert.Len(t, appliedVersions(t, res.stdout), 2)
}

func TestRun_FailedScriptLeavesDatabaseDirty(t *testing.T) {
	p := newProject(t, map[string]string{
		"20240101000000_create_users.sql": "CREATE TABLE users (id INTEGER PRIMARY KEY);",
		"20240102000000_broken.sql":       "INSERT INTO nowhere VALUES (1);",
		"20240103000000_later.sql":        "SELECT 1;",
	})

	res := execute(t, fixedOptions(), p.args("run")...)
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, res.exitCode())
	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 2)
	assert.Regexp(t, `^Applied 20240101000000/migrate create users \(`, lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Error [BACKEND]: "), lines[1])

	res = execute(t, fixedOptions(), p.args("run")...)
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, res.exitCode())
	assert.Equal(t,
		"Error [DIRTY_DATABASE]: seeds 20240102000000 is partially applied; fix and remove row from the tracking table\n",
		res.stdout)
}

func TestRun_ChecksumMismatch(t *testing.T) {
	p := newProject(t, simpleScripts)
	require.NoError(t, execute(t, fixedOptions(), p.args("run")...).err)

	testutil.WriteScripts(t, p.source, map[string]string{
		"20240101000000_create_users.sql": "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, email TEXT);",
	})

	res := execute(t, fixedOptions(), p.args("run")...)
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, res.exitCode())
	assert.Equal(t,
		"Error [CHECKSUM_MISMATCH]: seeds 20240101000000 was previously applied but has been modified\n",
		res.stdout)
}

func TestRun_MissingVersion(t *testing.T) {
	p := newProject(t, simpleScripts)
	require.NoError(t, execute(t, fixedOptions(), p.args("run")...).err)

	require.NoError(t, os.Remove(filepath.Join(p.source, "20240101000000_create_users.sql")))
	testutil.WriteScripts(t, p.source, map[string]string{"20240103000000_more.sql": "SELECT 1;"})

	res := execute(t, fixedOptions(), p.args("run")...)
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, res.exitCode())
	assert.Contains(t, res.stdout, "Error [MISSING_VERSION]: seeds 20240101000000 was previously applied")

	res = execute(t, fixedOptions(), p.args("run", "--ignore-missing")...)
	require.NoError(t, res.err)
	assert.Equal(t, []string{"20240103000000"}, appliedVersions(t, res.stdout))
}

func TestRun_JSON(t *testing.T) {
	p := newProject(t, simpleScripts)

	res := execute(t, fixedOptions(), p.args("--format", "json", "run")...)
	require.NoError(t, res.err)

	var resp struct {
		Status string        `json:"status"`
		RunID  string        `json:"run_id"`
		Data   seeder.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, "run-1", resp.Data.RunID)
	assert.Equal(t, "run", resp.Data.Operation)
	require.Len(t, resp.Data.Steps, 2)
	assert.Equal(t, seeder.ActionApplied, resp.Data.Steps[0].Action)
	assert.Equal(t, "migrate", resp.Data.Steps[0].Label)
}

func TestRun_JSONErrorIncludesReport(t *testing.T) {
	p := newProject(t, map[string]string{
		"20240101000000_ok.sql":     "SELECT 1;",
		"20240102000000_broken.sql": "SELEC 1;",
	})

	res := execute(t, fixedOptions(), p.args("--format", "json", "run")...)
	require.Error(t, res.err)

	var resp struct {
		Status string `json:"status"`
		RunID  string `json:"run_id"`
		Error  struct {
			Code    string        `json:"code"`
			Details seeder.Report `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, "BACKEND", resp.Error.Code)
	require.Len(t, resp.Error.Details.Steps, 1)
	assert.Equal(t, int64(20240101000000), resp.Error.Details.Steps[0].Version)
}

func TestRun_NoDatabaseURL(t *testing.T) {
	p := newProject(t, simpleScripts)

	res := execute(t, fixedOptions(), "--source", p.source, "run")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, res.exitCode())
	assert.Contains(t, res.stdout, "Error [CONNECT]")
	assert.Contains(t, res.stdout, "DATABASE_URL")
}

func TestRun_DatabaseURLFromEnvironment(t *testing.T) {
	p := newProject(t, simpleScripts)
	t.Setenv("DATABASE_URL", p.dbURL)

	res := execute(t, fixedOptions(), "--source", p.source, "run")
	require.NoError(t, res.err)
	assert.Len(t, appliedVersions(t, res.stdout), 2)
}

func TestRun_MalformedScriptNames(t *testing.T) {
	p := newProject(t, map[string]string{
		"20240101000000_ok.sql": "SELECT 1;",
		"oops.sql":              "SELECT 1;",
	})

	res := execute(t, fixedOptions(), p.args("run")...)
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, res.exitCode())
	assert.Contains(t, res.stdout, "Error [RESOLUTION]")
	assert.Contains(t, res.stdout, "oops.sql")
}

func TestRun_ConfigFile(t *testing.T) {
	p := newProject(t, simpleScripts)
	metrics := filepath.Join(t.TempDir(), "seeds.prom")
	cfgPath := filepath.Join(t.TempDir(), "seeds.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(
		"source: "+p.source+"\n"+
			"database_url: "+p.dbURL+"\n"+
			"table: seed_history\n"+
			"metrics_file: "+metrics+"\n"), 0o644))

	res := execute(t, fixedOptions(), "--config", cfgPath, "run")
	require.NoError(t, res.err)
	assert.Len(t, appliedVersions(t, res.stdout), 2)

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^seeds_scripts_total\{[^}]*kind="simple"[^}]*\} 2$`, string(prom))
}

func TestRun_BadConfig(t *testing.T) {
	p := newProject(t, simpleScripts)
	cfgPath := filepath.Join(t.TempDir(), "seeds.cue")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`checksum: "md5"`), 0o644))

	res := execute(t, fixedOptions(), p.args("--config", cfgPath, "run")...)
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, res.exitCode())
	assert.Contains(t, res.stdout, "Error [CONFIG]")
}

// --- revert ---

func TestRevert_OneVersionAtATime(t *testing.T) {
	p := newProject(t, reversibleScripts)
	require.NoError(t, execute(t, fixedOptions(), p.args("run")...).err)

	res := execute(t, fixedOptions(), p.args("revert", "--dry-run")...)
	require.NoError(t, res.err)
	newGolden(t).Assert(t, "revert_dry_run", []byte(res.stdout))

	res = execute(t, fixedOptions(), p.args("revert")...)
	require.NoError(t, res.err)
	assert.Regexp(t, `^Reverted 20240102000000/revert seed users \(.+\)\n$`, res.stdout)

	res = execute(t, fixedOptions(), p.args("revert")...)
	require.NoError(t, res.err)
	assert.Regexp(t, `^Reverted 20240101000000/revert create users \(.+\)\n$`, res.stdout)

	res = execute(t, fixedOptions(), p.args("revert")...)
	require.NoError(t, res.err)
	newGolden(t).Assert(t, "revert_nothing", []byte(res.stdout))
}

// --- info ---

func TestInfo(t *testing.T) {
	p := newProject(t, map[string]string{
		"20240101000000_create_users.sql": simpleScripts["20240101000000_create_users.sql"],
	})
	require.NoError(t, execute(t, fixedOptions(), p.args("run")...).err)
	testutil.WriteScripts(t, p.source, map[string]string{
		"20240102000000_seed_users.sql": simpleScripts["20240102000000_seed_users.sql"],
	})

	opts := fixedOptions()
	opts.Now = func() time.Time { return time.Now().Add(3 * time.Hour) }
	res := execute(t, opts, p.args("info")...)
	require.NoError(t, res.err)
	newGolden(t).Assert(t, "info", []byte(normalize(res.stdout, p.source)))
}

func TestInfo_States(t *testing.T) {
	p := newProject(t, reversibleScripts)
	require.NoError(t, execute(t, fixedOptions(), p.args("run")...).err)
	testutil.WriteScripts(t, p.source, map[string]string{
		"20240102000000_seed_users.up.sql": "INSERT INTO users (name) VALUES ('grace');",
	})

	res := execute(t, fixedOptions(), p.args("--format", "json", "info")...)
	require.NoError(t, res.err)

	var resp struct {
		Data InfoResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, p.source, resp.Data.Source)
	require.Len(t, resp.Data.Entries, 2)
	assert.Equal(t, seeder.StateInstalled, resp.Data.Entries[0].State)
	assert.True(t, resp.Data.Entries[0].Reversible)
	assert.Equal(t, seeder.StateModified, resp.Data.Entries[1].State)
}
