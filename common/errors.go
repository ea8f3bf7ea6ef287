package common

import "errors"

var (
	ErrInconsistent = errors.New("inconsistent data")
	ErrInvalidCost  = errors.New("not a valid cost identifier")
)
