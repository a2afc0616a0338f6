package domain

import (
	"errors"
	"fmt"
)

var ErrUnknownClass = errors.New("unknown class")

// Classes lists the class partitions offered by the fee ledger.
var Classes = []string{
	"Nursery",
	"LKG",
	"UKG",
	"Class 1",
	"Class 2",
	"Class 3",
	"Class 4",
	"Class 5",
	"Class 6",
}

// ValidateClass accepts a known class name or "" for the unfiltered ledger.
func ValidateClass(class string) error {
	if class == "" {
		return nil
	}
	for _, c := range Classes {
		if c == class {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownClass, class)
}
