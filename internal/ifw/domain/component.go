package domain

import (
	"fmt"
	"strings"
)

// ComponentType identifies the kind of application entry point a rule targets.
type ComponentType uint8

const (
	ComponentUnknown  ComponentType = iota // not part of the rule vocabulary
	ComponentActivity                      // activity
	ComponentReceiver                      // broadcast receiver
	ComponentService                       // service
	ComponentProvider                      // content provider
)

// Rule file group tags. Providers have no tag: Intent Firewall cannot block them,
// so they are disabled through the package manager instead.
const (
	TagActivity = "activity"
	TagReceiver = "broadcast"
	TagService  = "service"
)

// String returns the stable upper-case name of the component type.
func (c ComponentType) String() string {
	switch c {
	case ComponentActivity:
		return "ACTIVITY"
	case ComponentReceiver:
		return "RECEIVER"
	case ComponentService:
		return "SERVICE"
	case ComponentProvider:
		return "PROVIDER"
	case ComponentUnknown:
		return "UNKNOWN"
	default:
		return fmt.Sprintf("ComponentType(%d)", c)
	}
}

// IsBlockable reports whether rules of this type count toward a package's blocked set.
func (c ComponentType) IsBlockable() bool {
	switch c {
	case ComponentActivity, ComponentReceiver, ComponentService, ComponentProvider:
		return true
	default:
		return false
	}
}

// Tag returns the rule file group tag for the type, or "" when the type has none.
func (c ComponentType) Tag() string {
	switch c {
	case ComponentActivity:
		return TagActivity
	case ComponentReceiver:
		return TagReceiver
	case ComponentService:
		return TagService
	default:
		return ""
	}
}

// ComponentTypeFromTag maps a rule file group tag to its component type.
// Anything outside the fixed vocabulary is ComponentUnknown.
func ComponentTypeFromTag(tag string) ComponentType {
	switch tag {
	case TagActivity:
		return ComponentActivity
	case TagReceiver:
		return ComponentReceiver
	case TagService:
		return ComponentService
	default:
		return ComponentUnknown
	}
}

// ParseComponentType converts a type name into a ComponentType.
// Accepts the String() names and the manifest spellings ("activity", "receiver",
// "service", "provider"), case-insensitive.
func ParseComponentType(s string) (ComponentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "activity", "activities":
		return ComponentActivity, nil
	case "receiver", "receivers", "broadcast":
		return ComponentReceiver, nil
	case "service", "services":
		return ComponentService, nil
	case "provider", "providers":
		return ComponentProvider, nil
	case "unknown":
		return ComponentUnknown, nil
	default:
		return ComponentUnknown, fmt.Errorf("unsupported ComponentType: %q", s)
	}
}
