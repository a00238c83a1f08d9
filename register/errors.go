package register

import "errors"

// ErrCacheMismatch reports a cached result that differs from its recomputation.
// It is only raised in cachecheck builds and indicates a cache key that does
// not capture every input of the operation.
var ErrCacheMismatch = errors.New("register: cached result differs from recomputation")
