package serviceerr

import "errors"

var ErrConflict = errors.New("already exists")
var ErrNotFound = errors.New("not found")
var ErrAccessDenied = errors.New("access denied")

// ErrFlowNotRecognised marks a callback request that arrived outside a
// legitimate authorization flow, e.g. by direct navigation. It maps to a
// plain 404 at the HTTP boundary.
var ErrFlowNotRecognised = errors.New("authentication flow not recognised")
