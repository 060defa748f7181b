package nn

import "errors"

// ErrCacheConsumed is returned when a forward cache is passed to Backward a
// second time.
var ErrCacheConsumed = errors.New("forward cache already consumed by a backward pass")
