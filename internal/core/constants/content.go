package constants

const (
	ContentTypeJSON        = "application/json"
	ContentTypeEventStream = "text/event-stream"

	HeaderContentType   = "Content-Type"
	HeaderAccept        = "Accept"
	HeaderAuthorization = "Authorization"
	HeaderUserAgent     = "User-Agent"
	HeaderRequestID     = "X-Request-ID"

	// SSE framing used by OpenAI-compatible streaming responses
	StreamDataPrefix   = "data: "
	StreamDoneSentinel = "[DONE]"
)
