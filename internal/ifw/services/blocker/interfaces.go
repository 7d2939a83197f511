package blocker

import (
	"io"

	"github.com/haukened/rr-ifw/internal/ifw/domain"
)

// CommandRunner executes one privileged command synchronously.
type CommandRunner interface {
	Run(command string) domain.CommandResult
}

// CommandSet formats the privileged commands the engine issues.
type CommandSet interface {
	EnableComponent(pkg, component string) string
	DisableComponent(pkg, component string) string
	ForceStop(pkg string) string
	PublishRules(staging, systemDir, pkg string) string
	RemoveRules(systemDir, pkg string) string
	Exists(p string) string
	CopyOut(src, dst string) string
	List(glob string) string
	Cat(p string) string
}

// RuleCodec converts rule tables to and from rule file documents.
type RuleCodec interface {
	Encode(table domain.RuleTable, packageName string) ([]byte, []string)
	Decode(r io.Reader, packageName string) map[string]domain.ComponentType
}

// RuleStore is the durable home of every package's rule table.
type RuleStore interface {
	Load(pkg string) (domain.RuleTable, error)
	Save(pkg string, table domain.RuleTable) error
	Packages() ([]string, error)
}

// ApplyObserver is notified after every apply pass.
type ApplyObserver interface {
	ObserveApply(enforce bool)
}
