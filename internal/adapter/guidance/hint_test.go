package guidance

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thushan/locallm/internal/core/domain"
)

func TestLoopbackHint(t *testing.T) {
	refused := domain.NewConnectionError(domain.CodeConnectionRefused, "connection refused", errors.New("dial tcp"))
	timeout := domain.NewConnectionError(domain.CodeConnectionTimeout, "timed out", nil)

	testCases := []struct {
		name          string
		baseURL       string
		err           error
		containerised bool
		want          string
	}{
		{"refused in container", "http://localhost:1234", refused, true,
			"Running in a container, http://localhost:1234 is the container itself. Try --server http://host.docker.internal:1234"},
		{"not containerised", "http://localhost:1234", refused, false, ""},
		{"remote host", "http://gpu-box:1234", refused, true, ""},
		{"other error", "http://127.0.0.1:1234", timeout, true, ""},
		{"plain error", "http://127.0.0.1:1234", errors.New("boom"), true, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, LoopbackHint(tc.baseURL, tc.err, tc.containerised))
		})
	}
}
