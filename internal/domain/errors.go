package domain

import "errors"

var (
	// ErrNotFound reports that the referenced record is absent in storage.
	ErrNotFound = errors.New("record not found")

	// ErrMissingArticleID reports that an operation requiring a durable
	// article identifier was attempted without one. No I/O has happened.
	ErrMissingArticleID = errors.New("article has no durable identifier")
)
