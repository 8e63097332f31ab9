package source

import "errors"

// ErrBadShape reports a 2xx response whose body failed shape validation.
// For caching and status purposes it behaves like any other fetch failure;
// it never arms the cooldown.
var ErrBadShape = errors.New("source: payload failed shape validation")
