package domain

import (
	"fmt"
	"sort"
	"strings"
)

// RuleState is the lifecycle position of a single rule.
//
//	DEFAULT -> TO_BLOCK -> BLOCKED
//	BLOCKED -> TO_UNBLOCK -> (deleted)   providers only
type RuleState uint8

const (
	RuleDefault   RuleState = iota // untracked
	RuleToBlock                    // staged, not yet enforced
	RuleBlocked                    // enforced on the device
	RuleToUnblock                  // provider staged for re-enable
)

// String returns the stable upper-case name of the state.
func (s RuleState) String() string {
	switch s {
	case RuleDefault:
		return "DEFAULT"
	case RuleToBlock:
		return "TO_BLOCK"
	case RuleBlocked:
		return "BLOCKED"
	case RuleToUnblock:
		return "TO_UNBLOCK"
	default:
		return fmt.Sprintf("RuleState(%d)", s)
	}
}

// IsValid reports whether s is one of the declared states.
func (s RuleState) IsValid() bool {
	switch s {
	case RuleDefault, RuleToBlock, RuleBlocked, RuleToUnblock:
		return true
	default:
		return false
	}
}

// ParseRuleState converts a state name (case-insensitive) into a RuleState.
func ParseRuleState(s string) (RuleState, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEFAULT":
		return RuleDefault, nil
	case "TO_BLOCK":
		return RuleToBlock, nil
	case "BLOCKED":
		return RuleBlocked, nil
	case "TO_UNBLOCK":
		return RuleToUnblock, nil
	default:
		return RuleDefault, fmt.Errorf("unsupported RuleState: %q", s)
	}
}

// RuleEntry is one component rule of a package.
type RuleEntry struct {
	Name  string        // fully-qualified component class name
	Type  ComponentType // component kind
	State RuleState     // lifecycle position
}

// RuleTable maps component name to its rule for a single package.
type RuleTable map[string]RuleEntry

// NewRuleTable returns an empty table.
func NewRuleTable() RuleTable { return make(RuleTable) }

// Set inserts or overwrites the entry for name.
func (t RuleTable) Set(name string, ct ComponentType, st RuleState) {
	t[name] = RuleEntry{Name: name, Type: ct, State: st}
}

// Names returns the component names in lexical order.
func (t RuleTable) Names() []string {
	names := make([]string, 0, len(t))
	for n := range t {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Entries returns every entry ordered by name.
func (t RuleTable) Entries() []RuleEntry {
	out := make([]RuleEntry, 0, len(t))
	for _, n := range t.Names() {
		out = append(out, t[n])
	}
	return out
}

// OfType returns the entries of the given type ordered by name.
func (t RuleTable) OfType(ct ComponentType) []RuleEntry {
	var out []RuleEntry
	for _, n := range t.Names() {
		if e := t[n]; e.Type == ct {
			out = append(out, e)
		}
	}
	return out
}

// Clone returns an independent copy of the table.
func (t RuleTable) Clone() RuleTable {
	out := make(RuleTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
