package stdio_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/lambda-feedback/sysproc/internal/execution/models"
	"github.com/lambda-feedback/sysproc/internal/execution/stdio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_Validate(t *testing.T) {
	var sink bytes.Buffer

	tests := []struct {
		name string
		plan stdio.Plan
		mode stdio.Mode
		err  error
	}{
		{"empty plan discards", stdio.Plan{}, stdio.ModeBlocking, nil},
		{"pipe stdout", stdio.Plan{Stdout: stdio.Pipe(&sink)}, stdio.ModeBlocking, nil},
		{"pipe stderr", stdio.Plan{Stderr: stdio.Pipe(&sink)}, stdio.ModeBlocking, nil},
		{"pipe stdin", stdio.Plan{Stdin: stdio.Pipe(&sink)}, stdio.ModeBlocking, stdio.ErrPipeNotAllowed},
		{"pipe in background", stdio.Plan{Stdout: stdio.Pipe(&sink)}, stdio.ModeBackground, stdio.ErrPipeNotAllowed},
		{"pipe without sink", stdio.Plan{Stdout: stdio.Pipe(nil)}, stdio.ModeBlocking, stdio.ErrNoSink},
		{"file without path", stdio.Plan{Stderr: stdio.File("")}, stdio.ModeBlocking, stdio.ErrNoPath},
		{"file in background", stdio.Plan{Stdout: stdio.File("out")}, stdio.ModeBackground, nil},
		{"inherit", stdio.Plan{Stdin: stdio.Inherit(), Stdout: stdio.Inherit()}, stdio.ModeBackground, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate(tt.mode)
			if tt.err == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestResolve_Discard(t *testing.T) {
	res, err := stdio.Resolve(stdio.Plan{}, stdio.ModeBlocking)
	require.NoError(t, err)
	defer res.Close()

	for _, f := range res.Child {
		assert.Nil(t, f)
	}
	assert.Empty(t, res.Pipes)
}

func TestResolve_Inherit(t *testing.T) {
	res, err := stdio.Resolve(stdio.Plan{
		Stdin:  stdio.Inherit(),
		Stdout: stdio.Inherit(),
		Stderr: stdio.Inherit(),
	}, stdio.ModeBlocking)
	require.NoError(t, err)
	defer res.Close()

	assert.Same(t, os.Stdin, res.Child[stdio.Stdin])
	assert.Same(t, os.Stdout, res.Child[stdio.Stdout])
	assert.Same(t, os.Stderr, res.Child[stdio.Stderr])
}

func TestResolve_FileTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.WriteFile(path, []byte("previous content"), 0o644))

	res, err := stdio.Resolve(stdio.Plan{Stdout: stdio.File(path)}, stdio.ModeBlocking)
	require.NoError(t, err)

	_, err = res.Child[stdio.Stdout].WriteString("new")
	require.NoError(t, err)
	require.NoError(t, res.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestResolve_FileCreatedOwnerOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out")

	res, err := stdio.Resolve(stdio.Plan{Stderr: stdio.File(path)}, stdio.ModeBlocking)
	require.NoError(t, err)
	require.NoError(t, res.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, stdio.FileMode, info.Mode().Perm()&stdio.FileMode)
}

func TestResolve_MissingStdinFile(t *testing.T) {
	_, err := stdio.Resolve(stdio.Plan{
		Stdin: stdio.File(filepath.Join(t.TempDir(), "missing")),
	}, stdio.ModeBlocking)

	var launchErr *models.LaunchError
	require.ErrorAs(t, err, &launchErr)
	assert.Equal(t, "open stdin", launchErr.Op)
}

func TestResolve_Pipe(t *testing.T) {
	var sink bytes.Buffer

	res, err := stdio.Resolve(stdio.Plan{Stdout: stdio.Pipe(&sink)}, stdio.ModeBlocking)
	require.NoError(t, err)
	defer res.Close()

	require.Len(t, res.Pipes, 1)
	var p stdio.PipeEnd = res.Pipes[0]
	assert.Equal(t, stdio.Stdout, p.Stream)
	assert.Same(t, &sink, p.Sink)

	_, err = res.Child[stdio.Stdout].WriteString("through the pipe")
	require.NoError(t, err)
	require.NoError(t, res.CloseChildEnds())

	data, err := io.ReadAll(p.File)
	require.NoError(t, err)
	assert.Equal(t, "through the pipe", string(data))
}

func TestStream_String(t *testing.T) {
	assert.Equal(t, "stdin", stdio.Stdin.String())
	assert.Equal(t, "stdout", stdio.Stdout.String())
	assert.Equal(t, "stderr", stdio.Stderr.String())
}
