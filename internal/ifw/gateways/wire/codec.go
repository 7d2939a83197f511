package wire

import (
	"io"

	"github.com/haukened/rr-ifw/internal/ifw/domain"
)

// RuleCodec converts a package's rule table to and from the Intent Firewall XML format.
type RuleCodec interface {
	// Encode renders the enforceable part of table and returns the names it emitted.
	// Callers use the returned names to finalize staged blocks.
	Encode(table domain.RuleTable, packageName string) ([]byte, []string)

	// Decode reads a rule document and returns the components owned by packageName.
	// It never fails: malformed input yields whatever was decoded before the fault.
	Decode(r io.Reader, packageName string) map[string]domain.ComponentType
}
