package blocker

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/haukened/rr-ifw/internal/ifw/common/log"
	"github.com/haukened/rr-ifw/internal/ifw/domain"
	"github.com/haukened/rr-ifw/internal/ifw/gateways/privileged"
	"github.com/haukened/rr-ifw/internal/ifw/repos/parsers"
)

// EngineOptions carries the collaborators shared by every engine.
type EngineOptions struct {
	SystemDir string // enforcement location, holds <pkg>.xml
	LocalDir  string // staging location, holds <pkg>.xml and legacy <pkg>.txt
	Runner    CommandRunner
	Commands  CommandSet
	Codec     RuleCodec
	Observer  ApplyObserver
	Logger    log.Logger
}

// Engine owns the rule table of a single package. An engine is not safe for
// concurrent use; the Registry hands it to one holder at a time.
type Engine struct {
	pkg     string
	table   domain.RuleTable
	mutable bool
	dirty   bool
	opts    EngineOptions
	logger  log.Logger
}

// NewEngine wraps table for pkg. A nil table starts empty.
func NewEngine(pkg string, table domain.RuleTable, opts EngineOptions) *Engine {
	if table == nil {
		table = domain.NewRuleTable()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Engine{
		pkg:    pkg,
		table:  table,
		opts:   opts,
		logger: log.With(opts.Logger, map[string]any{"package": pkg}),
	}
}

// Package returns the package this engine manages.
func (e *Engine) Package() string { return e.pkg }

// Mutable reports whether mutations are currently allowed.
func (e *Engine) Mutable() bool { return e.mutable }

// StagingPath is the local rule artifact for the package.
func (e *Engine) StagingPath() string {
	return filepath.Join(e.opts.LocalDir, e.pkg+".xml")
}

// legacyProvidersPath is the pre-store provider list for the package.
func (e *Engine) legacyProvidersPath() string {
	return filepath.Join(e.opts.LocalDir, e.pkg+".txt")
}

// Add stages name for blocking. Re-adding overwrites the type and re-stages.
func (e *Engine) Add(name string, ct domain.ComponentType) error {
	if !e.mutable {
		return domain.ErrReadOnly
	}
	e.table.Set(name, ct, domain.RuleToBlock)
	return nil
}

// Remove drops name. Providers are staged for unblock so the next apply can
// re-enable them; every other type is deleted at once.
func (e *Engine) Remove(name string) error {
	if !e.mutable {
		return domain.ErrReadOnly
	}
	ent, ok := e.table[name]
	if !ok {
		return nil
	}
	if ent.Type == domain.ComponentProvider {
		ent.State = domain.RuleToUnblock
		e.table[name] = ent
		return nil
	}
	delete(e.table, name)
	return nil
}

// Has reports whether name has an entry.
func (e *Engine) Has(name string) bool {
	_, ok := e.table[name]
	return ok
}

// Entry returns the entry for name.
func (e *Engine) Entry(name string) (domain.RuleEntry, bool) {
	ent, ok := e.table[name]
	return ent, ok
}

// Entries returns every entry ordered by name.
func (e *Engine) Entries() []domain.RuleEntry { return e.table.Entries() }

// Table returns a copy of the rule table.
func (e *Engine) Table() domain.RuleTable { return e.table.Clone() }

// Count is the number of blockable entries that are blocked or pending block.
func (e *Engine) Count() int {
	n := 0
	for _, ent := range e.table {
		if ent.Type.IsBlockable() && ent.State != domain.RuleToUnblock {
			n++
		}
	}
	return n
}

// IsFullyApplied reports whether no blockable entry is waiting to be enforced.
func (e *Engine) IsFullyApplied() bool {
	for _, ent := range e.table {
		if ent.Type.IsBlockable() && ent.State == domain.RuleToBlock {
			return false
		}
	}
	return true
}

// Apply enforces staged rules (enforce) or reverts the package to its manifest
// defaults (!enforce). Privileged command failures are logged and skipped; only
// local staging I/O is returned as an error.
func (e *Engine) Apply(enforce bool) error {
	if !e.mutable {
		return domain.ErrReadOnly
	}
	var err error
	if enforce {
		err = e.enforce()
	} else {
		err = e.revert()
	}
	if e.opts.Observer != nil {
		e.opts.Observer.ObserveApply(enforce)
	}
	return err
}

func (e *Engine) enforce() error {
	staging := e.StagingPath()
	if e.Count() == 0 {
		if err := removeIfExists(staging); err != nil {
			return err
		}
	} else if err := e.writeStaging(staging); err != nil {
		return err
	}

	exists, err := fileExists(staging)
	if err != nil {
		return err
	}
	if exists {
		e.run("publish_rules", e.opts.Commands.PublishRules(staging, e.opts.SystemDir, e.pkg))
		if err := removeIfExists(staging); err != nil {
			return err
		}
	} else {
		e.removeEnforcement()
	}

	for _, ent := range e.table.OfType(domain.ComponentProvider) {
		switch ent.State {
		case domain.RuleToUnblock:
			e.run("enable_provider", e.opts.Commands.EnableComponent(e.pkg, ent.Name))
			delete(e.table, ent.Name)
		case domain.RuleDefault, domain.RuleToBlock, domain.RuleBlocked:
			e.run("disable_provider", e.opts.Commands.DisableComponent(e.pkg, ent.Name))
			e.table.Set(ent.Name, ent.Type, domain.RuleBlocked)
		}
	}
	e.logger.Info(map[string]any{"rules": e.Count()}, "rules_enforced")
	return nil
}

func (e *Engine) revert() error {
	e.removeEnforcement()
	for _, ent := range e.table.Entries() {
		e.run("enable_component", e.opts.Commands.EnableComponent(e.pkg, ent.Name))
		switch ent.State {
		case domain.RuleToUnblock:
			delete(e.table, ent.Name)
		case domain.RuleDefault, domain.RuleToBlock, domain.RuleBlocked:
			e.table.Set(ent.Name, ent.Type, domain.RuleToBlock)
		}
	}
	e.logger.Info(map[string]any{"rules": len(e.table)}, "rules_reverted")
	return nil
}

// removeEnforcement deletes a stale enforcement file. The removal chain only
// force-stops when a file was present, so a failed chain is followed by an
// explicit force-stop.
func (e *Engine) removeEnforcement() {
	if !e.run("remove_rules", e.opts.Commands.RemoveRules(e.opts.SystemDir, e.pkg)) {
		e.run("force_stop", e.opts.Commands.ForceStop(e.pkg))
	}
}

// writeStaging encodes the table to the staging artifact and finalizes every
// encoded entry as BLOCKED. The artifact is replaced atomically.
func (e *Engine) writeStaging(path string) error {
	data, encoded := e.opts.Codec.Encode(e.table, e.pkg)
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("write staging rules for %s: %w", e.pkg, err)
	}
	for _, name := range encoded {
		ent := e.table[name]
		e.table.Set(name, ent.Type, domain.RuleBlocked)
	}
	return nil
}

// Reconcile refreshes the table from the enforcement location and migrates a
// legacy provider list. It is only meaningful with a working privileged channel.
func (e *Engine) Reconcile() error {
	staging := e.StagingPath()
	system := privileged.RulesFile(e.opts.SystemDir, e.pkg)
	if e.run("probe_rules", e.opts.Commands.Exists(system)) {
		e.run("copy_rules", e.opts.Commands.CopyOut(system, staging))
	}

	if err := e.migrateLegacyProviders(); err != nil {
		return err
	}

	f, err := os.Open(staging)
	if errors.Is(err, fs.ErrNotExist) {
		for name, ent := range e.table {
			ent.State = domain.RuleToBlock
			e.table[name] = ent
		}
		e.logger.Debug(map[string]any{"rules": len(e.table)}, "reconcile_restaged")
		return nil
	}
	if err != nil {
		return fmt.Errorf("open staging rules for %s: %w", e.pkg, err)
	}
	decoded := e.opts.Codec.Decode(f, e.pkg)
	_ = f.Close()
	for name, ct := range decoded {
		e.table.Set(name, ct, domain.RuleBlocked)
	}
	e.logger.Debug(map[string]any{"decoded": len(decoded)}, "reconcile_from_system")
	return removeIfExists(staging)
}

// Absorb stages every blockable component of a rule document owned by the
// package and reports how many were staged. Filters under an unknown group are
// skipped since no apply pass could enforce them.
func (e *Engine) Absorb(r io.Reader) (int, error) {
	if !e.mutable {
		return 0, domain.ErrReadOnly
	}
	n := 0
	for name, ct := range e.opts.Codec.Decode(r, e.pkg) {
		if !ct.IsBlockable() {
			continue
		}
		e.table.Set(name, ct, domain.RuleToBlock)
		n++
	}
	return n, nil
}

// migrateLegacyProviders merges <local>/<pkg>.txt as blocked providers and
// marks the engine dirty. The file stays in place until finishMigration runs
// after the merged table has been stored.
func (e *Engine) migrateLegacyProviders() error {
	path := e.legacyProvidersPath()
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open legacy providers for %s: %w", e.pkg, err)
	}
	names, err := parsers.ParseLineList(f, path, e.logger)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("read legacy providers for %s: %w", e.pkg, err)
	}
	for _, name := range names {
		e.table.Set(name, domain.ComponentProvider, domain.RuleBlocked)
	}
	e.dirty = true
	e.logger.Info(map[string]any{"providers": len(names)}, "legacy_providers_migrated")
	return nil
}

// finishMigration deletes the legacy provider list once a migrated table is
// stored.
func (e *Engine) finishMigration() error {
	if !e.dirty {
		return nil
	}
	if err := removeIfExists(e.legacyProvidersPath()); err != nil {
		return fmt.Errorf("remove legacy providers for %s: %w", e.pkg, err)
	}
	e.dirty = false
	return nil
}

// run issues command and logs failures. It reports the command's success.
func (e *Engine) run(op, command string) bool {
	res := e.opts.Runner.Run(command)
	if !res.Success {
		e.logger.Warn(map[string]any{"op": op, "command": command}, "privileged_command_failed")
	}
	return res.Success
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// writeFileAtomic writes data next to path and renames it into place. The file
// is world-readable so the privileged shell can copy it.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}
