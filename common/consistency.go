package common

import "go.uber.org/multierr"

// Checker is implemented by objects able to verify their own invariants.
type Checker interface {
	CheckConsistency() error
}

// CheckAll runs every checker and combines all failures.
func CheckAll(items ...Checker) error {
	var err error
	for _, it := range items {
		err = multierr.Append(err, it.CheckConsistency())
	}
	return err
}
