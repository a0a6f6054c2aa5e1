package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a generic sentinel for missing resources. Blob store
	// and repo reads return it; workers treat it as "skip".
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for rejected input at a
	// public entry point.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStoreUnavailable marks blob store transport failures.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrEmbeddingUnavailable marks embedding endpoint transport failures.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrLLMUnavailable marks LLM upstream transport failures.
	ErrLLMUnavailable = errors.New("llm unavailable")

	// ErrDimensionMismatch is returned when an embedding does not have the
	// configured dimension. Fatal for the operation that produced it. It is
	// a kind of invalid argument, so errors.Is(err, ErrInvalidArgument)
	// holds and handlers map it to 400.
	ErrDimensionMismatch = fmt.Errorf("%w: embedding dimension mismatch", ErrInvalidArgument)
	// ErrMalformedArchive is returned when an archive object cannot be
	// parsed or is missing its video id.
	ErrMalformedArchive = errors.New("malformed archive")
	// ErrInvalidChunkSet is returned when a chunk set write is not
	// contiguous from index 0. Programmer error.
	ErrInvalidChunkSet = errors.New("invalid chunk set")
	// ErrTimeout is returned when a bounded operation exceeds its deadline.
	ErrTimeout = errors.New("operation timed out")
)
