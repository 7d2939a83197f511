// Package wire provides encoding and decoding of Intent Firewall rule files.
//
// A rule file has a single <rules> root holding one group per blockable component
// kind. Each group lists <component-filter name="pkg/component"/> leaves:
//
//	<rules>
//	<activity block="true" log="false">
//	  <component-filter name="com.example/com.example.Tracker"/>
//	</activity>
//	</rules>
package wire

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/haukened/rr-ifw/internal/ifw/common/log"
	"github.com/haukened/rr-ifw/internal/ifw/domain"
)

const (
	tagRules  = "rules"
	tagFilter = "component-filter"
	attrName  = "name"
)

// groupOrder is the emission order of rule groups.
var groupOrder = []domain.ComponentType{
	domain.ComponentActivity,
	domain.ComponentService,
	domain.ComponentReceiver,
}

// ifwCodec implements RuleCodec for Intent Firewall XML.
type ifwCodec struct {
	logger log.Logger
}

// NewIFWCodec creates and returns a new Intent Firewall codec using the provided logger.
func NewIFWCodec(logger log.Logger) *ifwCodec {
	return &ifwCodec{
		logger: logger,
	}
}

// Encode groups entries by type, skipping providers and entries staged for unblock.
// Empty groups are omitted; entries within a group are ordered by name.
func (c *ifwCodec) Encode(table domain.RuleTable, packageName string) ([]byte, []string) {
	groups := make(map[domain.ComponentType][]string, len(groupOrder))
	for _, e := range table.Entries() {
		if e.State == domain.RuleToUnblock {
			continue
		}
		switch e.Type {
		case domain.ComponentActivity, domain.ComponentService, domain.ComponentReceiver:
			groups[e.Type] = append(groups[e.Type], e.Name)
		case domain.ComponentProvider, domain.ComponentUnknown:
			// providers are toggled through the package manager; unknown has no group
		}
	}

	var sb strings.Builder
	var encoded []string
	sb.WriteString("<" + tagRules + ">\n")
	for _, ct := range groupOrder {
		names := groups[ct]
		if len(names) == 0 {
			continue
		}
		sb.WriteString("<" + ct.Tag() + ` block="true" log="false">` + "\n")
		for _, name := range names {
			sb.WriteString("  <" + tagFilter + ` name="`)
			writeEscaped(&sb, packageName+"/"+name)
			sb.WriteString(`"/>` + "\n")
			encoded = append(encoded, name)
		}
		sb.WriteString("</" + ct.Tag() + ">\n")
	}
	sb.WriteString("</" + tagRules + ">")

	c.logger.Debug(map[string]any{"package": packageName, "components": len(encoded)}, "encode_rules")
	return []byte(sb.String()), encoded
}

// Decode stream-parses a rule document. The component type is taken from the group
// element enclosing each filter. Relative names are expanded against packageName
// and filters owned by other packages are dropped.
func (c *ifwCodec) Decode(r io.Reader, packageName string) map[string]domain.ComponentType {
	out := make(map[string]domain.ComponentType)
	dec := xml.NewDecoder(r)
	depth := 0
	current := domain.ComponentUnknown
	for {
		tok, err := dec.Token()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.logger.Debug(map[string]any{"package": packageName, "error": err.Error(), "decoded": len(out)}, "decode_rules_aborted")
			}
			return out
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				if t.Name.Local != tagRules {
					c.logger.Debug(map[string]any{"package": packageName, "root": t.Name.Local}, "decode_rules_bad_root")
					return out
				}
				continue
			}
			if depth == 2 {
				current = domain.ComponentTypeFromTag(t.Name.Local)
			}
			if t.Name.Local == tagFilter {
				c.addFilter(out, t, current, packageName)
			}
		case xml.EndElement:
			if depth == 2 {
				current = domain.ComponentUnknown
			}
			depth--
		}
	}
}

// addFilter records one component-filter leaf when it belongs to packageName.
func (c *ifwCodec) addFilter(out map[string]domain.ComponentType, el xml.StartElement, ct domain.ComponentType, packageName string) {
	var full string
	for _, a := range el.Attr {
		if a.Name.Local == attrName {
			full = a.Value
			break
		}
	}
	owner, component, ok := strings.Cut(full, "/")
	if !ok || component == "" {
		c.logger.Debug(map[string]any{"package": packageName, "filter": full}, "decode_rules_skip_filter")
		return
	}
	if owner != packageName {
		return
	}
	out[domain.ExpandComponentName(packageName, component)] = ct
}

// writeEscaped writes s with XML attribute escaping.
func writeEscaped(sb *strings.Builder, s string) {
	_ = xml.EscapeText(sb, []byte(s))
}

var _ RuleCodec = (*ifwCodec)(nil)
