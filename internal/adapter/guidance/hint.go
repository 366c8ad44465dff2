package guidance

import (
	"fmt"

	"github.com/thushan/locallm/internal/core/domain"
	"github.com/thushan/locallm/internal/util"
	"github.com/thushan/locallm/pkg/container"
)

// LoopbackHint explains a refused connection to localhost from inside a
// container, where localhost is the container and not the machine running
// the inference server. It returns "" when the hint doesn't apply.
func LoopbackHint(baseURL string, err error, containerised bool) string {
	if !containerised || !util.IsLoopbackURL(baseURL) {
		return ""
	}
	llmErr, ok := domain.AsLLMError(err)
	if !ok || llmErr.Code != domain.CodeConnectionRefused {
		return ""
	}
	return fmt.Sprintf("Running in a container, %s is the container itself. Try --server %s",
		baseURL, util.ReplaceHost(baseURL, container.DockerHostAlias))
}
