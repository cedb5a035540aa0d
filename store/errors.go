package store

import "errors"

var (
	// ErrDocumentNotFound indicates the checkpoint document does not exist.
	ErrDocumentNotFound = errors.New("checkpoint document not found")

	// ErrNilState indicates Persist was called without a run state.
	ErrNilState = errors.New("run state is nil")
)
