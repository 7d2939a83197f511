// Package inventory loads the installed-package description consulted for
// component introspection. Each YAML, JSON or TOML file in the inventory
// directory describes one package:
//
//	package: com.example.app
//	label: Example
//	system: false
//	components:
//	  activity: [.MainActivity]
//	  service: [com.tracker.sdk.Svc]
//	  receiver: []
//	  provider: []
package inventory

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"

	"github.com/haukened/rr-ifw/internal/ifw/common/log"
	"github.com/haukened/rr-ifw/internal/ifw/domain"
)

// Inventory is an immutable, in-memory view of installed packages.
type Inventory struct {
	packages map[string]domain.PackageInfo
}

// New builds an inventory from already decoded package descriptions.
func New(infos ...domain.PackageInfo) *Inventory {
	inv := &Inventory{packages: make(map[string]domain.PackageInfo, len(infos))}
	for _, pi := range infos {
		inv.packages[pi.Name] = pi
	}
	return inv
}

// LoadDirectory walks dir and loads every supported package file. A missing
// directory yields an empty inventory; any unparsable file is an error.
func LoadDirectory(dir string, logger log.Logger) (*Inventory, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	inv := New()
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		logger.Warn(map[string]any{"dir": dir}, "inventory_dir_missing")
		return inv, nil
	}

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		pi, ok, err := loadPackageFile(path)
		if err != nil {
			return fmt.Errorf("error parsing inventory file %s: %w", path, err)
		}
		if !ok {
			return nil
		}
		if _, dup := inv.packages[pi.Name]; dup {
			logger.Warn(map[string]any{"package": pi.Name, "file": path}, "inventory_duplicate_package")
		}
		inv.packages[pi.Name] = pi
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Debug(map[string]any{"dir": dir, "packages": len(inv.packages)}, "inventory_loaded")
	return inv, nil
}

// loadPackageFile parses one file; ok is false for unsupported extensions.
func loadPackageFile(path string) (domain.PackageInfo, bool, error) {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	case ".toml":
		parser = toml.Parser()
	default:
		return domain.PackageInfo{}, false, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return domain.PackageInfo{}, false, err
	}

	name := strings.TrimSpace(k.String("package"))
	if name == "" {
		return domain.PackageInfo{}, false, fmt.Errorf("missing 'package'")
	}
	pi := domain.PackageInfo{
		Name:       name,
		Label:      k.String("label"),
		System:     k.Bool("system"),
		Components: make(map[string]domain.ComponentType),
	}
	for _, key := range k.MapKeys("components") {
		ct, err := domain.ParseComponentType(key)
		if err != nil {
			return domain.PackageInfo{}, false, err
		}
		for _, c := range k.Strings("components." + key) {
			c = strings.TrimSpace(c)
			if c == "" {
				continue
			}
			pi.Components[domain.ExpandComponentName(name, c)] = ct
		}
	}
	return pi, true, nil
}

// Components returns the declared components of pkg.
func (inv *Inventory) Components(pkg string) (map[string]domain.ComponentType, error) {
	pi, ok := inv.packages[pkg]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPackageNotFound, pkg)
	}
	out := make(map[string]domain.ComponentType, len(pi.Components))
	for k, v := range pi.Components {
		out[k] = v
	}
	return out, nil
}

// Label returns the display label of pkg, which may be empty.
func (inv *Inventory) Label(pkg string) (string, error) {
	pi, ok := inv.packages[pkg]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrPackageNotFound, pkg)
	}
	return pi.Label, nil
}

// Packages returns every installed package ordered by name.
func (inv *Inventory) Packages() []domain.PackageInfo {
	out := make([]domain.PackageInfo, 0, len(inv.packages))
	for _, pi := range inv.packages {
		out = append(out, pi)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PackageNames returns installed package names, optionally including system packages.
func (inv *Inventory) PackageNames(includeSystem bool) []string {
	var out []string
	for _, pi := range inv.Packages() {
		if pi.System && !includeSystem {
			continue
		}
		out = append(out, pi.Name)
	}
	return out
}
