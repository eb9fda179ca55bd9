package cli

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/seeds/internal/testutil"
)

// result captures one CLI invocation.
type result struct {
	stdout string
	stderr string
	err    error
}

func (r result) exitCode() int {
	return GetExitCode(r.err)
}

// execute runs the root command with args. A fresh RootOptions is built
// from base so flags never leak between invocations.
func execute(t *testing.T, base RootOptions, args ...string) result {
	t.Helper()
	opts := base
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}

	cmd := newRootCommand(&opts)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// project is a scripts directory plus a SQLite database.
type project struct {
	source string
	dbURL  string
}

func newProject(t *testing.T, files map[string]string) project {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	return project{
		source: testutil.WriteScripts(t, filepath.Join(t.TempDir(), "seeds"), files),
		dbURL:  testutil.SQLiteURL(t),
	}
}

// args prefixes the project's source and database flags.
func (p project) args(args ...string) []string {
	return append([]string{"--source", p.source, "--database-url", p.dbURL}, args...)
}

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

var tookPattern = regexp.MustCompile(`, took [^)]*`)

// normalize strips run-dependent details from text output.
func normalize(out, source string) string {
	out = strings.ReplaceAll(out, source, "<source>")
	return tookPattern.ReplaceAllString(out, "")
}
