package domain

import (
	"errors"
	"strings"
)

var (
	// ErrReadOnly is returned when a mutation is attempted on an engine acquired read-only.
	ErrReadOnly = errors.New("rule table is read-only")
	// ErrStoreClosed marks a rule store that can no longer serve any package.
	ErrStoreClosed = errors.New("rule store is closed")
	// ErrPackageNotFound is returned by package introspection for unknown packages.
	ErrPackageNotFound = errors.New("package not found")
)

// PackageInfo describes an installed application as seen by package introspection.
type PackageInfo struct {
	Name       string
	Label      string
	System     bool
	Components map[string]ComponentType
}

// ItemCount pairs a package with a count of matching components.
type ItemCount struct {
	PackageName  string
	PackageLabel string
	Count        int
}

// ExpandComponentName expands a relative component name (leading dot) against its
// owning package. Absolute names are returned unchanged.
func ExpandComponentName(packageName, component string) string {
	if strings.HasPrefix(component, ".") {
		return packageName + component
	}
	return component
}
