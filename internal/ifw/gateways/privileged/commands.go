package privileged

import (
	"fmt"
	"path"
	"strings"
)

// modernSDK is the first platform level where the `cmd` binder shell replaces pm/am.
const modernSDK = 28

// Commands formats the shell commands the rule engine issues through the privileged
// channel. Paths are single-quoted; package and component names are passed as-is.
type Commands struct {
	pm string
	am string
}

// NewCommands selects the package/activity manager front-ends for the platform level.
func NewCommands(sdkLevel int) Commands {
	if sdkLevel >= modernSDK {
		return Commands{pm: "cmd package", am: "cmd activity"}
	}
	return Commands{pm: "pm", am: "am"}
}

// EnableComponent restores a component to its manifest default. default-state is
// used instead of enable so components disabled in the manifest stay disabled.
func (c Commands) EnableComponent(pkg, component string) string {
	return fmt.Sprintf("%s default-state %s/%s", c.pm, pkg, component)
}

// DisableComponent disables a single component.
func (c Commands) DisableComponent(pkg, component string) string {
	return fmt.Sprintf("%s disable %s/%s", c.pm, pkg, component)
}

// ForceStop stops every process of pkg so rule changes take effect on next launch.
func (c Commands) ForceStop(pkg string) string {
	return fmt.Sprintf("%s force-stop %s", c.am, pkg)
}

// PublishRules copies a staged rule file into systemDir as <pkg>.xml, relaxes its
// mode to world-readable and force-stops the package. The copy lands on a temporary
// name first and is renamed into place, so the enforcement file is never partial.
func (c Commands) PublishRules(staging, systemDir, pkg string) string {
	final := RulesFile(systemDir, pkg)
	tmp := final + ".tmp"
	return fmt.Sprintf("cp %s %s && chmod 0666 %s && mv -f %s %s && %s",
		Quote(staging), Quote(tmp), Quote(tmp), Quote(tmp), Quote(final), c.ForceStop(pkg))
}

// RemoveRules deletes <pkg>.xml from systemDir when present and force-stops the package.
func (c Commands) RemoveRules(systemDir, pkg string) string {
	final := RulesFile(systemDir, pkg)
	return fmt.Sprintf("test -e %s && rm -rf %s && %s", Quote(final), Quote(final), c.ForceStop(pkg))
}

// Exists succeeds when p exists.
func (c Commands) Exists(p string) string {
	return "test -e " + Quote(p)
}

// CopyOut copies a protected file to a locally readable destination with mode 0666.
func (c Commands) CopyOut(src, dst string) string {
	return fmt.Sprintf("cp %s %s && chmod 0666 %s", Quote(src), Quote(dst), Quote(dst))
}

// List prints the files matching glob, one per line. The glob is left unquoted so
// the shell expands it.
func (c Commands) List(glob string) string {
	return "ls " + glob
}

// Cat prints the content of p.
func (c Commands) Cat(p string) string {
	return "cat " + Quote(p)
}

// RulesFile returns the rule file path of pkg inside dir.
func RulesFile(dir, pkg string) string {
	return path.Join(dir, pkg+".xml")
}

// Quote wraps s in single quotes for the POSIX shell.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
