package domain

import "errors"

var (
	// ErrValidation signals a malformed request (bad mode, filters, signature payload).
	ErrValidation = errors.New("validation failed")
	// ErrNotFound signals a missing catalog record.
	ErrNotFound = errors.New("not found")
	// ErrEmbeddingUnavailable signals that no embedding provider could serve the request.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	// ErrSearchUnavailable signals that every retrieval branch failed.
	ErrSearchUnavailable = errors.New("search unavailable")
	// ErrVectorStore signals a vector store failure.
	ErrVectorStore = errors.New("vector store error")
	// ErrInvalidSignature signals a webhook payload whose HMAC did not verify.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)
