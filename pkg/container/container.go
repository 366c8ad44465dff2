package container

import (
	"os"
	"strings"
)

// DockerHostAlias resolves to the host machine from inside Docker Desktop containers
const DockerHostAlias = "host.docker.internal"

var (
	dockerEnvFile = "/.dockerenv"
	cgroupFile    = "/proc/1/cgroup"
)

// IsContainerised reports whether the process looks like it runs inside a container
func IsContainerised() bool {
	return hasDockerEnvFile() || isInContainerCGroup() || isInKubernetesPod()
}

func hasDockerEnvFile() bool {
	_, err := os.Stat(dockerEnvFile)
	return err == nil
}

func isInContainerCGroup() bool {
	data, err := os.ReadFile(cgroupFile)
	if err != nil {
		return false
	}
	content := string(data)
	return strings.Contains(content, "docker") ||
		strings.Contains(content, "containerd") ||
		strings.Contains(content, "kubepods")
}

func isInKubernetesPod() bool {
	return os.Getenv("KUBERNETES_SERVICE_HOST") != ""
}
