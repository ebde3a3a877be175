package data

import "errors"

// ErrEmptyCacheKey is returned by cache operations called with an empty key.
var ErrEmptyCacheKey = errors.New("key cannot be empty")
