package registry

import "errors"

var (
	ErrPaused             = errors.New("registry paused")
	ErrIdenticalAddresses = errors.New("identical addresses")
	ErrZeroAddress        = errors.New("zero address")
	ErrPairExists         = errors.New("pair exists")
	ErrPairNotFound       = errors.New("pair not found")
	ErrForbidden          = errors.New("forbidden")
)
