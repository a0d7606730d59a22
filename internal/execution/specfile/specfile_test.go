package specfile_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lambda-feedback/sysproc/internal/execution/specfile"
	"github.com/lambda-feedback/sysproc/internal/execution/stdio"
	"github.com/lambda-feedback/sysproc/internal/execution/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Yaml(t *testing.T) {
	var stdout bytes.Buffer

	cmd, err := specfile.Parse([]byte(`
program: python3
args: ["-u", "job.py"]
dir: work
stdout: capture
stderr: logs/job.log
timeout: 1m30s
`), "/srv", specfile.Sinks{Stdout: &stdout})
	require.NoError(t, err)

	assert.Equal(t, "python3", cmd.Spec.Path)
	assert.Equal(t, []string{"python3", "-u", "job.py"}, cmd.Spec.Args)
	assert.Equal(t, "/srv/work", cmd.Spec.Dir)
	assert.Nil(t, cmd.Spec.Env)
	assert.Equal(t, 90*time.Second, cmd.Timeout)

	assert.Equal(t, stdio.KindInherit, cmd.Spec.Stdio.Stdin.Kind)
	assert.Equal(t, stdio.KindPipe, cmd.Spec.Stdio.Stdout.Kind)
	assert.Same(t, &stdout, cmd.Spec.Stdio.Stdout.Sink)
	assert.Equal(t, stdio.KindFile, cmd.Spec.Stdio.Stderr.Kind)
	assert.Equal(t, "/srv/logs/job.log", cmd.Spec.Stdio.Stderr.Path)
}

func TestParse_Json(t *testing.T) {
	cmd, err := specfile.Parse([]byte(`{
		"program": "/bin/echo",
		"args": ["hi"],
		"stdin": "discard",
		"stdout": "/tmp/out"
	}`), "/srv", specfile.Sinks{})
	require.NoError(t, err)

	assert.Equal(t, []string{"/bin/echo", "hi"}, cmd.Spec.Args)
	assert.Equal(t, stdio.KindDiscard, cmd.Spec.Stdio.Stdin.Kind)
	assert.Equal(t, "/tmp/out", cmd.Spec.Stdio.Stdout.Path)
	assert.Zero(t, cmd.Timeout)
}

func TestParse_ZeroTimeoutDisablesLimit(t *testing.T) {
	cmd, err := specfile.Parse([]byte("program: ls\ntimeout: 0s\n"), "/srv", specfile.Sinks{})
	require.NoError(t, err)

	assert.Equal(t, supervisor.NoTimeout, cmd.Timeout)
}

func TestParse_Env(t *testing.T) {
	t.Setenv("SYSPROC_SPECFILE_TEST", "parent")

	cmd, err := specfile.Parse([]byte(`
program: env
env:
  MODE: batch
`), "/", specfile.Sinks{})
	require.NoError(t, err)

	assert.Contains(t, cmd.Spec.Env, "MODE=batch")
	assert.Contains(t, cmd.Spec.Env, "SYSPROC_SPECFILE_TEST=parent")
}

func TestParse_EnvWithoutInheritance(t *testing.T) {
	t.Setenv("SYSPROC_SPECFILE_TEST", "parent")

	cmd, err := specfile.Parse([]byte(`
program: env
inherit_env: false
env:
  MODE: batch
`), "/", specfile.Sinks{})
	require.NoError(t, err)

	assert.Equal(t, []string{"MODE=batch"}, cmd.Spec.Env)
}

func TestParse_CaptureWithoutSink(t *testing.T) {
	_, err := specfile.Parse([]byte(`
program: /bin/true
stderr: capture
`), "/", specfile.Sinks{})
	assert.ErrorIs(t, err, specfile.ErrNoSink)
}

func TestParse_Invalid(t *testing.T) {
	for name, doc := range map[string]string{
		"missing program":   `args: [a]`,
		"empty program":     `program: ""`,
		"unknown field":     "program: ls\nretries: 3",
		"captured stdin":    "program: cat\nstdin: capture",
		"bad timeout":       "program: ls\ntimeout: soon",
		"numeric timeout":   "program: ls\ntimeout: 10",
		"args not a list":   "program: ls\nargs: -l",
		"env not a mapping": "program: ls\nenv: [A=1]",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := specfile.Parse([]byte(doc), "/", specfile.Sinks{})

			var validationErr *specfile.ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	_, err := specfile.Parse([]byte("program: [unclosed"), "/", specfile.Sinks{})
	assert.ErrorContains(t, err, "error decoding command file")
}

func TestLoad_ResolvesRelativeToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.yaml")

	require.NoError(t, os.WriteFile(path, []byte("program: ls\nstdout: out.txt\n"), 0o600))

	cmd, err := specfile.Load(path, specfile.Sinks{})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "out.txt"), cmd.Spec.Stdio.Stdout.Path)
	assert.Equal(t, dir, cmd.Spec.Dir)
}

func TestLoad_RelativeDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.yaml")

	require.NoError(t, os.WriteFile(path, []byte("program: ls\ndir: work\n"), 0o600))

	cmd, err := specfile.Load(path, specfile.Sinks{})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "work"), cmd.Spec.Dir)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := specfile.Load(filepath.Join(t.TempDir(), "missing.yaml"), specfile.Sinks{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
