package launcher_test

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/lambda-feedback/sysproc/internal/execution/launcher"
	"github.com/lambda-feedback/sysproc/internal/execution/stdio"
	"github.com/lambda-feedback/sysproc/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestHandle_Done_LeavesChildUnreaped(t *testing.T) {
	h, err := launch(t, launcher.Spec{Path: "true"})
	require.NoError(t, err)
	defer h.Reclaim()

	assert.Eventually(t, func() bool {
		done, err := h.Done()
		return err == nil && done
	}, 2*time.Second, 10*time.Millisecond)

	// the zombie still reserves pid and group id
	assert.False(t, h.Exited())
	assert.NoError(t, unix.Kill(h.Pid(), 0))

	status, err := h.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, status.Code)
	assert.True(t, h.Exited())
}

func TestHandle_KillGroup_BeforeReapReachesDescendants(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "pid")

	h, err := launch(t, launcher.Spec{
		Path:  "sh",
		Args:  []string{"sh", "-c", "sleep 30 & echo $!"},
		Stdio: stdio.Plan{Stdout: stdio.File(pidFile)},
	})
	require.NoError(t, err)
	defer h.Reclaim()

	assert.Eventually(t, func() bool {
		done, err := h.Done()
		return err == nil && done
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, h.KillGroup())

	_, err = h.Wait()
	require.NoError(t, err)

	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)

	grandchild, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return !util.IsProcessAlive(grandchild)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandle_KillGroup_NoopAfterReap(t *testing.T) {
	h, err := launch(t, launcher.Spec{Path: "true"})
	require.NoError(t, err)
	defer h.Close()

	_, err = h.Wait()
	require.NoError(t, err)

	// the group id may already belong to someone else
	assert.NoError(t, h.KillGroup())
}
