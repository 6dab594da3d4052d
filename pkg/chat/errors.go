package chat

import "errors"

// Exchange failure classes. Failures before any event has been emitted
// surface as plain request errors; failures after that point are reported
// in-stream.
var (
	ErrRateLimited           = errors.New("rate limit exceeded")
	ErrRetrievalFailed       = errors.New("context retrieval failed")
	ErrGenerationInterrupted = errors.New("generation interrupted")
)
