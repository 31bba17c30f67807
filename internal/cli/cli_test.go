package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dorpcheck/internal/config"
	"github.com/roach88/dorpcheck/internal/testutil"
)

func TestMain(m *testing.M) {
	testutil.MaybeRunFakeInterpreter()
	os.Exit(m.Run())
}

// execute runs the CLI in a clean environment and returns the exit code and
// both output streams.
func execute(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = Execute(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

// isolate runs the test from an empty working directory with no
// DORPCHECK_ settings in the environment.
func isolate(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		config.EnvProgram, config.EnvArgs, config.EnvDir, config.EnvExtension,
		config.EnvTimeout, config.EnvConcurrency, config.EnvDatabase, config.EnvWorkDir,
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	t.Chdir(t.TempDir())
}

// fixtureDir writes fixtures (name -> content) into a fresh directory.
func fixtureDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		testutil.WriteFixture(t, dir, name, content)
	}
	return dir
}

// jsonSummary is the decoded --format json output of the run command.
type jsonSummary struct {
	Status string      `json:"status"`
	Data   summaryView `json:"data"`
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "dorpcheck", cmd.Use)

	for _, name := range []string{"run", "history", "version"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	dir := runCmd.Flags().Lookup("dir")
	require.NotNil(t, dir)
	assert.Equal(t, "test", dir.DefValue)

	ext := runCmd.Flags().Lookup("ext")
	require.NotNil(t, ext)
	assert.Equal(t, ".dorp", ext.DefValue)

	for _, name := range []string{"program", "arg", "timeout", "concurrency", "attribute", "db", "filter", "workdir", "env"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), "flag --%s", name)
	}
}

func TestRun_AllPass(t *testing.T) {
	isolate(t)
	program := testutil.FakeInterpreter(t)
	dir := fixtureDir(t, map[string]string{
		"a.dorp": "1+1\n# 2\n",
		"b.dorp": "bad syntax\n# error: parse\n",
	})

	code, stdout, stderr := execute(t, "run", "--program", program, dir)

	assert.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, "..\n", stdout)
	assert.Empty(t, stderr)
}

func TestRun_FailuresExitOne(t *testing.T) {
	isolate(t)
	program := testutil.FakeInterpreter(t)
	dir := fixtureDir(t, map[string]string{
		"a.dorp": "1+1\n# 2\n",
		"b.dorp": "print 3\n# 4\n",
	})

	code, stdout, stderr := execute(t, "run", "--program", program, "--concurrency", "1", dir)

	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, ".!\n3\n\n", stdout)
	assert.Equal(t, "Error: 1 of 2 fixtures failed\n", stderr)
}

func TestRun_EmptySuite(t *testing.T) {
	isolate(t)
	program := testutil.FakeInterpreter(t)

	code, stdout, _ := execute(t, "run", "--program", program, t.TempDir())

	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "\n", stdout)
}

func TestRun_DefaultDir(t *testing.T) {
	isolate(t)
	program := testutil.FakeInterpreter(t)
	testutil.WriteFixture(t, "test", "a.dorp", "print hi\n# hi\n")

	code, stdout, _ := execute(t, "run", "--program", program)

	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, ".\n", stdout)
}

func TestRun_MissingDirIsCommandError(t *testing.T) {
	isolate(t)
	program := testutil.FakeInterpreter(t)

	code, stdout, stderr := execute(t, "run", "--program", program, filepath.Join(t.TempDir(), "missing"))

	assert.Equal(t, ExitCommandError, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "fixture discovery failed")
}

func TestRun_MissingProgram(t *testing.T) {
	isolate(t)

	code, _, stderr := execute(t, "run", t.TempDir())

	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "invalid configuration")
	assert.Contains(t, stderr, "program is required")
}

func TestRun_InvalidFormat(t *testing.T) {
	isolate(t)

	code, _, stderr := execute(t, "--format", "xml", "run")

	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, `invalid format "xml"`)
}

func TestRun_UnknownFlag(t *testing.T) {
	isolate(t)

	code, _, stderr := execute(t, "run", "--bogus")

	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "unknown flag")
}

func TestRun_InvalidFilter(t *testing.T) {
	isolate(t)
	program := testutil.FakeInterpreter(t)

	code, _, stderr := execute(t, "run", "--program", program, "--filter", "[", t.TempDir())

	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "invalid filter")
}

func TestRun_Filter(t *testing.T) {
	isolate(t)
	program := testutil.FakeInterpreter(t)
	dir := fixtureDir(t, map[string]string{
		"arith_add.dorp": "1+1\n# 2\n",
		"print.dorp":     "print 3\n# 4\n",
	})

	code, stdout, _ := execute(t, "run", "--program", program, "--filter", "arith*", dir)

	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, ".\n", stdout)
}

func TestRun_ArgsPrecedeFixturePath(t *testing.T) {
	isolate(t)
	program := testutil.FakeInterpreter(t)
	dir := fixtureDir(t, map[string]string{"a.dorp": "print ok\n# ok\n"})

	// The fake interpreter reads its last argument, so extra leading
	// arguments must not displace the fixture path.
	code, stdout, _ := execute(t, "run", "--program", program, "--arg", "--strict", "--arg", "x", dir)

	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, ".\n", stdout)
}

func TestRun_WorkDirAndEnv(t *testing.T) {
	isolate(t)
	program := testutil.FakeInterpreter(t)
	workDir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	dir := fixtureDir(t, map[string]string{
		"env.dorp": "pwd\n# " + workDir + "\ngetenv DORP_MODE\n# strict\n",
	})

	code, stdout, _ := execute(t, "run", "--program", program,
		"--workdir", workDir, "--env", "DORP_MODE=strict", "--attribute", dir)
	assert.Equal(t, ExitSuccess, code, stdout)
	assert.Equal(t, ".\n", stdout)

	// Without the flags the interpreter sees neither setting.
	code, stdout, _ = execute(t, "run", "--program", program, dir)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "!\n")
}

func TestRun_InvalidEnvEntry(t *testing.T) {
	isolate(t)
	program := testutil.FakeInterpreter(t)
	dir := fixtureDir(t, map[string]string{"a.dorp": "print ok\n# ok\n"})

	code, _, stderr := execute(t, "run", "--program", program, "--env", "DORP_MODE", dir)

	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "must have the form KEY=value")
}

func TestRun_Timeout(t *testing.T) {
	isolate(t)
	program := testutil.FakeInterpreter(t)
	dir := fixtureDir(t, map[string]string{"slow.dorp": "sleep 10s\n"})

	code, stdout, _ := execute(t, "run", "--program", program, "--timeout", "200ms", "--attribute", dir)

	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "!\n")
	assert.Contains(t, stdout, "error:    run slow.dorp: timed out after 200ms\n")
}

func TestRun_Attribute(t *testing.T) {
	isolate(t)
	program := testutil.FakeInterpreter(t)
	dir := fixtureDir(t, map[string]string{"b.dorp": "print 3\n# 4\n"})

	code, stdout, _ := execute(t, "run", "--program", program, "--attribute", dir)

	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "FAIL: b.dorp\n")
	assert.Contains(t, stdout, `expected: "4\n"`)
	assert.Contains(t, stdout, `actual:   "3\n"`)
}

func TestRun_JSONFormat(t *testing.T) {
	isolate(t)
	program := testutil.FakeInterpreter(t)
	dir := fixtureDir(t, map[string]string{
		"a.dorp": "1+1\n# 2\n",
		"b.dorp": "print 3\n# 4\n",
	})

	code, stdout, stderr := execute(t, "--format", "json", "run", "--program", program, "--concurrency", "1", dir)

	assert.Equal(t, ExitFailure, code)

	var resp jsonSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), "stdout must be one JSON document: %q", stdout)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Data.RunID)
	assert.Equal(t, program, resp.Data.Program)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Results, 2)
	assert.Equal(t, "a.dorp", resp.Data.Results[0].Fixture)
	assert.True(t, resp.Data.Results[0].Pass)
	assert.Equal(t, "4\n", resp.Data.Results[1].Expected)
	assert.Equal(t, "3\n", resp.Data.Results[1].Actual)

	var errResp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stderr), &errResp))
	assert.Equal(t, "error", errResp.Status)
	assert.Equal(t, "FIXTURES_FAILED", errResp.Error.Code)
}

func TestRun_ConfigFile(t *testing.T) {
	isolate(t)
	program := testutil.FakeInterpreter(t)
	dir := fixtureDir(t, map[string]string{"a.lox": "print hi\n# hi\n"})

	cfgPath := filepath.Join(t.TempDir(), "dorpcheck.yaml")
	cfg := "program: " + program + "\ndir: " + dir + "\nextension: .lox\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	code, stdout, stderr := execute(t, "--config", cfgPath, "run")

	assert.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, ".\n", stdout)
}

func TestRun_ConfigFileDiscoveredInWorkingDir(t *testing.T) {
	isolate(t)
	program := testutil.FakeInterpreter(t)
	dir := fixtureDir(t, map[string]string{"a.dorp": "print hi\n# hi\n"})

	cfg := "program: \"" + program + "\"\ndir: \"" + dir + "\"\n"
	require.NoError(t, os.WriteFile("dorpcheck.cue", []byte(cfg), 0644))

	code, stdout, stderr := execute(t, "run")

	assert.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, ".\n", stdout)
}

func TestRun_BadConfigFile(t *testing.T) {
	isolate(t)
	cfgPath := filepath.Join(t.TempDir(), "dorpcheck.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("programme: node\n"), 0644))

	code, _, stderr := execute(t, "--config", cfgPath, "run")

	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "failed to load configuration")
}

func TestRun_FlagsOverrideEnvironment(t *testing.T) {
	isolate(t)
	program := testutil.FakeInterpreter(t)
	good := fixtureDir(t, map[string]string{"a.dorp": "print hi\n# hi\n"})
	t.Setenv(config.EnvProgram, program)
	t.Setenv(config.EnvDir, filepath.Join(t.TempDir(), "missing"))

	code, _, _ := execute(t, "run")
	assert.Equal(t, ExitCommandError, code, "environment dir is used")

	code, stdout, _ := execute(t, "run", "--dir", good)
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, ".\n", stdout)
}

func TestRunAndHistory(t *testing.T) {
	isolate(t)
	program := testutil.FakeInterpreter(t)
	dbPath := filepath.Join(t.TempDir(), "history.db")
	dir := fixtureDir(t, map[string]string{
		"a.dorp": "1+1\n# 2\n",
		"b.dorp": "print 3\n# 4\n",
	})

	code, stdout, _ := execute(t, "--format", "json", "run", "--program", program, "--concurrency", "1", "--db", dbPath, dir)
	require.Equal(t, ExitFailure, code)
	var resp jsonSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	runID := resp.Data.RunID

	t.Run("list", func(t *testing.T) {
		code, stdout, stderr := execute(t, "history", "--db", dbPath)
		require.Equal(t, ExitSuccess, code, stderr)
		assert.Contains(t, stdout, runID)
		assert.Contains(t, stdout, "1/2 passed")
	})

	t.Run("run", func(t *testing.T) {
		code, stdout, stderr := execute(t, "history", "--db", dbPath, "--run", runID)
		require.Equal(t, ExitSuccess, code, stderr)
		assert.Contains(t, stdout, "  PASS a.dorp\n")
		assert.Contains(t, stdout, "  FAIL b.dorp\n")
		assert.Contains(t, stdout, `    expected: "4\n"`)
		assert.Contains(t, stdout, `    actual:   "3\n"`)
	})

	t.Run("fixture", func(t *testing.T) {
		code, stdout, stderr := execute(t, "history", "--db", dbPath, "--fixture", "b.dorp")
		require.Equal(t, ExitSuccess, code, stderr)
		assert.Equal(t, runID+"  FAIL\n", stdout)
	})

	t.Run("json", func(t *testing.T) {
		code, stdout, stderr := execute(t, "--format", "json", "history", "--db", dbPath)
		require.Equal(t, ExitSuccess, code, stderr)
		var list struct {
			Status string `json:"status"`
			Data   []struct {
				ID     string `json:"id"`
				Passed int    `json:"passed"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdout), &list))
		require.Len(t, list.Data, 1)
		assert.Equal(t, runID, list.Data[0].ID)
		assert.Equal(t, 1, list.Data[0].Passed)
	})

	t.Run("unknown run", func(t *testing.T) {
		code, _, stderr := execute(t, "history", "--db", dbPath, "--run", "nope")
		assert.Equal(t, ExitCommandError, code)
		assert.Contains(t, stderr, "unknown run")
	})

	t.Run("database from environment", func(t *testing.T) {
		t.Setenv(config.EnvDatabase, dbPath)
		code, stdout, _ := execute(t, "history")
		require.Equal(t, ExitSuccess, code)
		assert.Contains(t, stdout, runID)
	})
}

func TestHistory_NoDatabase(t *testing.T) {
	isolate(t)

	code, _, stderr := execute(t, "history")

	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "no database")
}

func TestHistory_MissingDatabase(t *testing.T) {
	isolate(t)
	dbPath := filepath.Join(t.TempDir(), "missing.db")

	code, _, stderr := execute(t, "history", "--db", dbPath)

	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "database not found")
	_, err := os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err), "history must not create the database")
}

func TestHistory_Empty(t *testing.T) {
	isolate(t)
	program := testutil.FakeInterpreter(t)
	dbPath := filepath.Join(t.TempDir(), "history.db")

	// An empty suite still records a run.
	code, _, _ := execute(t, "run", "--program", program, "--db", dbPath, t.TempDir())
	require.Equal(t, ExitSuccess, code)

	code, stdout, _ := execute(t, "history", "--db", dbPath, "--fixture", "a.dorp")
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "No recorded results for a.dorp.\n", stdout)
}

func TestVersion(t *testing.T) {
	old := Version
	Version = "1.2.3"
	t.Cleanup(func() { Version = old })

	code, stdout, _ := execute(t, "version")
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "dorpcheck 1.2.3\n", stdout)

	code, stdout, _ = execute(t, "--format", "json", "version")
	assert.Equal(t, ExitSuccess, code)
	assert.JSONEq(t, `{"status":"ok","data":{"version":"1.2.3"}}`, stdout)
}

func TestRun_InjectedRunIDAndClock(t *testing.T) {
	isolate(t)
	program := testutil.FakeInterpreter(t)
	dir := fixtureDir(t, map[string]string{"a.dorp": "print hi\n# hi\n"})

	opts := &RunOptions{
		RootOptions:    &RootOptions{Format: "json"},
		RunIDGenerator: testutil.NewFixedRunIDGenerator("run-fixed"),
		Clock:          testutil.NewDeterministicClock().Now,
	}
	cmd := newRunCommand(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--program", program, dir})

	require.NoError(t, cmd.Execute())

	var resp jsonSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "run-fixed", resp.Data.RunID)
	assert.True(t, resp.Data.StartedAt.Equal(testutil.DefaultBase))
	assert.True(t, resp.Data.FinishedAt.Equal(testutil.DefaultBase.Add(time.Second)))
}
