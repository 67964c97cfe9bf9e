package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/portal-setup/internal/model"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// execute runs the CLI with args and returns the exit code, stdout and
// stderr.
func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	code := Run(context.Background(), cmd, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// emptyPath hides every executable so no package manager, git or node
// is found.
func emptyPath(t *testing.T) {
	t.Helper()
	t.Setenv("PATH", t.TempDir())
}

func TestSetup_MissingMarker(t *testing.T) {
	dir := t.TempDir()

	code, stdout, stderr := execute(t, "--dir", dir)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "❌ package.json not found!")
	assert.Empty(t, stderr, "the console line is not repeated on stderr")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSetup_MissingMarkerJSON(t *testing.T) {
	code, stdout, stderr := execute(t, "--dir", t.TempDir(), "--json")
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)

	var payload map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(stderr), &payload))
	assert.Equal(t, "package.json not found", payload["error"]["message"])
}

func TestSetup_JSONReport(t *testing.T) {
	emptyPath(t)
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"name": "portal"}`)

	code, stdout, stderr := execute(t, "--dir", dir, "--json")
	require.Equal(t, 0, code, stderr)

	var report model.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Len(t, report.Directories, 13)
	assert.Equal(t, []string{".env.example", ".gitignore"}, report.Files)
	assert.Equal(t, "portal", report.ProjectName)
	require.NotNil(t, report.Install)
	assert.Equal(t, model.StepFailed, report.Install.Status, "npm is not on PATH")
	assert.NotEmpty(t, report.NextSteps)
}

func TestSetup_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{}`)
	writeFile(t, dir, "portal-setup.yaml", "bogus: 1\n")

	code, _, stderr := execute(t, "--dir", dir)
	assert.Equal(t, int(model.ExitConfigInvalid), code)
	assert.Contains(t, stderr, "invalid configuration")

	_, err := os.Stat(filepath.Join(dir, "config"))
	assert.True(t, os.IsNotExist(err), "nothing is scaffolded with a broken config")
}

func TestSetup_NegativeTimeout(t *testing.T) {
	code, _, stderr := execute(t, "--dir", t.TempDir(), "--timeout=-1s")
	assert.Equal(t, int(model.ExitConfigInvalid), code)
	assert.Contains(t, stderr, "--timeout")
}

func TestEnv(t *testing.T) {
	dir := t.TempDir()

	code, stdout, stderr := execute(t, "env", "--dir", dir, "--port", "8080")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "📝 Created .env from built-in")
	assert.Contains(t, stdout, "Set: JWT_SECRET, PORT")

	data, err := os.ReadFile(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "PORT=8080\n")

	code, _, stderr = execute(t, "env", "--dir", dir)
	assert.Equal(t, int(model.ExitEnvFileExists), code)
	assert.Contains(t, stderr, "--force")

	code, _, _ = execute(t, "env", "--dir", dir, "--force")
	assert.Equal(t, 0, code)
}

func TestEnv_InvalidFlags(t *testing.T) {
	code, _, _ := execute(t, "env", "--dir", t.TempDir(), "--port", "70000")
	assert.Equal(t, int(model.ExitConfigInvalid), code)

	code, _, stderr := execute(t, "env", "--dir", t.TempDir(), "--mongodb-uri", "postgres://x")
	assert.Equal(t, int(model.ExitConfigInvalid), code)
	assert.Contains(t, stderr, "mongodb://")
}

func TestConfigCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "portal-setup.yaml", "packageManager: yarn\n")

	code, stdout, stderr := execute(t, "config", "--dir", dir)
	require.Equal(t, 0, code, stderr)
	assert.True(t, strings.HasPrefix(stdout, "# "+filepath.Join(dir, "portal-setup.yaml")))
	assert.Contains(t, stdout, "packageManager: yarn")
	assert.Contains(t, stdout, "installTimeout: 5m0s")

	code, stdout, _ = execute(t, "config", "--dir", dir, "--json")
	require.Equal(t, 0, code)
	var payload struct {
		Config map[string]interface{} `json:"config"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &payload))
	assert.Equal(t, "5m0s", payload.Config["installTimeout"])
}

func stubDocker(t *testing.T, err error) {
	t.Helper()
	orig := pingDocker
	pingDocker = func(ctx context.Context) error { return err }
	t.Cleanup(func() { pingDocker = orig })
}

func TestDoctor_MissingMarker(t *testing.T) {
	stubDocker(t, nil)

	code, stdout, stderr := execute(t, "doctor", "--dir", t.TempDir())
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "❌ package.json:")
	assert.Empty(t, stderr)
}

func TestDoctor_Warnings(t *testing.T) {
	emptyPath(t)
	stubDocker(t, errors.New("connection refused"))
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"name": "portal"}`)

	code, stdout, _ := execute(t, "doctor", "--dir", dir, "--json")
	require.Equal(t, 0, code, "warnings never fail doctor")

	var payload struct {
		OK     bool    `json:"ok"`
		Checks []Check `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &payload))
	assert.True(t, payload.OK)

	byName := map[string]Check{}
	for _, c := range payload.Checks {
		byName[c.Name] = c
	}
	assert.Equal(t, CheckOK, byName["package.json"].Status)
	assert.Equal(t, CheckWarn, byName["package manager"].Status)
	assert.Equal(t, CheckWarn, byName["node"].Status)
	assert.Equal(t, CheckWarn, byName["docker"].Status)
	assert.Contains(t, byName["docker"].Detail, "connection refused")
	assert.Equal(t, CheckWarn, byName["git"].Status)
	assert.Equal(t, CheckWarn, byName[".env"].Status)
	assert.Equal(t, CheckWarn, byName["manifest"].Status)
}

func TestProjectName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"name": "@uni/Lab_Exam.Portal"}`)
	assert.Equal(t, "uni-lab-exam-portal", projectName(dir))

	parent := t.TempDir()
	noManifest := filepath.Join(parent, "My Portal")
	require.NoError(t, os.Mkdir(noManifest, 0o755))
	assert.Equal(t, "my-portal", projectName(noManifest))
}

func TestFormatDatabaseTable(t *testing.T) {
	assert.Equal(t, []string{"No MongoDB containers found."}, FormatDatabaseTable(nil))

	lines := FormatDatabaseTable([]model.DatabaseInstance{{
		Project:       "lab-exam-portal",
		ContainerName: "lab-exam-portal-mongo",
		Status:        model.DatabaseRunning,
		HostPort:      27017,
		DBName:        "lab_exam_portal",
	}})
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "PROJECT"))
	assert.Contains(t, lines[1], "running")
	assert.True(t, strings.HasSuffix(lines[1], "mongodb://localhost:27017/lab_exam_portal"))
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	jsonOutput = false
	printError(&buf, "failed to list Docker containers", errors.New("boom"))
	assert.Equal(t, "Error: failed to list Docker containers: boom\n", buf.String())

	buf.Reset()
	jsonOutput = true
	t.Cleanup(func() { jsonOutput = false })
	printError(&buf, "no free port", nil)

	var payload map[string]map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &payload))
	assert.Equal(t, "no free port", payload["error"]["message"])
	_, hasDetail := payload["error"]["detail"]
	assert.False(t, hasDetail)
}
