package domain

import (
	"fmt"
	"strings"
)

// SizeClass classifies trucks, drivers and job requirements.
// MEDIUM acts as a wildcard that satisfies any requirement.
type SizeClass string

const (
	SizeSmall  SizeClass = "SMALL"
	SizeMedium SizeClass = "MEDIUM"
	SizeLarge  SizeClass = "LARGE"
)

func (c SizeClass) Valid() bool {
	switch c {
	case SizeSmall, SizeMedium, SizeLarge:
		return true
	}
	return false
}

// Satisfies reports whether a truck (or driver) of class c can serve a
// requirement of class required.
func (c SizeClass) Satisfies(required SizeClass) bool {
	return c == required || c == SizeMedium
}

// ParseSizeClass accepts any casing and surrounding whitespace.
func ParseSizeClass(s string) (SizeClass, error) {
	c := SizeClass(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("parse size class: unknown value %q", s)
	}
	return c, nil
}
