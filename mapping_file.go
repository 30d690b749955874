package binding

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// mappingEntryDoc accepts either a scalar path or an {path|expr, engine} map.
type mappingEntryDoc struct {
	Path   string `yaml:"path"`
	Expr   string `yaml:"expr"`
	Engine string `yaml:"engine"`
}

func (d *mappingEntryDoc) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		d.Path = strings.TrimSpace(node.Value)
		return nil
	}
	type plain mappingEntryDoc
	var decoded plain
	if err := node.Decode(&decoded); err != nil {
		return err
	}
	*d = mappingEntryDoc(decoded)
	return nil
}

// ParseMapping decodes a YAML mapping document. Each top-level key names a
// target field; its value is either a dotted path or a map with `path`, or
// `expr` plus an optional `engine` (expr, cel, js).
func ParseMapping(data []byte) (Mapping, error) {
	var doc map[string]mappingEntryDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("binding: parse mapping: %w", err)
	}
	mapping := make(Mapping, len(doc))
	for field, entry := range doc {
		field = strings.TrimSpace(field)
		if field == "" {
			return nil, fmt.Errorf("binding: parse mapping: empty field name")
		}
		switch {
		case entry.Expr != "" && entry.Path != "":
			return nil, fmt.Errorf("binding: parse mapping: field %q sets both path and expr", field)
		case entry.Expr != "":
			mapping[field] = ExprWith(entry.Engine, entry.Expr)
		case entry.Path != "":
			mapping[field] = Path(entry.Path)
		default:
			return nil, fmt.Errorf("binding: parse mapping: field %q has no path or expr", field)
		}
	}
	return mapping, nil
}

// LoadMapping reads and parses a YAML mapping file.
func LoadMapping(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("binding: load mapping %q: %w", path, err)
	}
	return ParseMapping(data)
}
