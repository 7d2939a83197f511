package classifier

import (
	"fmt"
	"os"
	"strings"

	"github.com/haukened/rr-ifw/internal/ifw/common/log"
	"github.com/haukened/rr-ifw/internal/ifw/domain"
	"github.com/haukened/rr-ifw/internal/ifw/repos/parsers"
)

// PackageInspector exposes declared components and display labels of installed packages.
type PackageInspector interface {
	Components(pkg string) (map[string]domain.ComponentType, error)
	Label(pkg string) (string, error)
}

// Classifier decides which components are trackers.
type Classifier struct {
	signatures []string
	inspector  PackageInspector
	logger     log.Logger
}

// New returns a Classifier matching against signatures in the given order.
func New(signatures []string, inspector PackageInspector, logger log.Logger) *Classifier {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Classifier{signatures: signatures, inspector: inspector, logger: logger}
}

// LoadSignatures reads a signature list file.
func LoadSignatures(path string, logger log.Logger) ([]string, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open signatures: %w", err)
	}
	defer f.Close()
	return parsers.ParseSignatureList(f, path, logger)
}

// Classify maps a rule file group tag to a component type.
func (c *Classifier) Classify(tag string) domain.ComponentType {
	return domain.ComponentTypeFromTag(tag)
}

// Signatures returns the configured signature list.
func (c *Classifier) Signatures() []string { return c.signatures }

// IsTracker reports whether name matches any configured signature.
func (c *Classifier) IsTracker(name string) bool {
	return matchesAny(name, c.signatures)
}

// matchesAny keeps both the prefix and the substring test. The substring test
// alone already covers the prefix case and flags any name that merely embeds a
// signature, so it over-matches.
func matchesAny(name string, signatures []string) bool {
	for _, sig := range signatures {
		if sig == "" {
			continue
		}
		if strings.HasPrefix(name, sig) || strings.Contains(name, sig) {
			return true
		}
	}
	return false
}

// TrackerComponents returns the declared components of pkg that match the
// configured signatures.
func (c *Classifier) TrackerComponents(pkg string) (map[string]domain.ComponentType, error) {
	return c.FilteredComponents(pkg, c.signatures)
}

// FilteredComponents returns the declared components of pkg that match signatures.
func (c *Classifier) FilteredComponents(pkg string, signatures []string) (map[string]domain.ComponentType, error) {
	comps, err := c.inspector.Components(pkg)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.ComponentType)
	for name, ct := range comps {
		if matchesAny(name, signatures) {
			out[name] = ct
		}
	}
	return out, nil
}

// TrackerCounts reports the number of tracker components per package. A
// package whose metadata cannot be read is reported with a zero count, and a
// missing label falls back to the package name.
func (c *Classifier) TrackerCounts(pkgs []string) []domain.ItemCount {
	out := make([]domain.ItemCount, 0, len(pkgs))
	for _, pkg := range pkgs {
		item := domain.ItemCount{PackageName: pkg, PackageLabel: pkg}
		if label, err := c.inspector.Label(pkg); err == nil && label != "" {
			item.PackageLabel = label
		}
		trackers, err := c.TrackerComponents(pkg)
		if err != nil {
			c.logger.Warn(map[string]any{"package": pkg, "error": err.Error()}, "tracker_count_failed")
		}
		item.Count = len(trackers)
		out = append(out, item)
	}
	return out
}
