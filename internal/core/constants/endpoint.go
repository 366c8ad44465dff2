package constants

const (
	DefaultBaseURL = "http://localhost:1234"

	// OpenAI-compatible API paths
	PathV1Models          = "/v1/models"
	PathV1ChatCompletions = "/v1/chat/completions"
	PathV1Completions     = "/v1/completions"
	PathV1Embeddings      = "/v1/embeddings"
)
