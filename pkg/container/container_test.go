package container

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withFiles(t *testing.T, dockerEnv, cgroup string) {
	t.Helper()
	oldEnv, oldCgroup := dockerEnvFile, cgroupFile
	t.Cleanup(func() {
		dockerEnvFile, cgroupFile = oldEnv, oldCgroup
	})
	dockerEnvFile, cgroupFile = dockerEnv, cgroup
	t.Setenv("KUBERNETES_SERVICE_HOST", "")
}

func TestIsContainerised(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing")

	t.Run("bare host", func(t *testing.T) {
		withFiles(t, missing, missing)
		assert.False(t, IsContainerised())
	})

	t.Run("dockerenv", func(t *testing.T) {
		marker := filepath.Join(dir, ".dockerenv")
		require.NoError(t, os.WriteFile(marker, nil, 0o600))
		withFiles(t, marker, missing)
		assert.True(t, IsContainerised())
	})

	t.Run("cgroup", func(t *testing.T) {
		cgroup := filepath.Join(dir, "cgroup")
		require.NoError(t, os.WriteFile(cgroup, []byte("0::/kubepods/besteffort/pod1234\n"), 0o600))
		withFiles(t, missing, cgroup)
		assert.True(t, IsContainerised())
	})

	t.Run("kubernetes env", func(t *testing.T) {
		withFiles(t, missing, missing)
		t.Setenv("KUBERNETES_SERVICE_HOST", "10.0.0.1")
		assert.True(t, IsContainerised())
	})
}
