package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// shapeFileSuffix marks declarative shape files under the schema directory.
const shapeFileSuffix = ".shape.yaml"

// LoadDir parses every shape file under dir (recursively) into a definition
// set. Files are visited in sorted order; a schema name defined twice is an
// error naming both files.
func LoadDir(dir string) (map[string]Definition, error) {
	pattern := filepath.Join(dir, "**", "*"+shapeFileSuffix)
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	sort.Strings(matches)

	defs := make(map[string]Definition, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		doc, err := Build(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if prev, ok := defs[doc.Name]; ok {
			return nil, fmt.Errorf("%s: schema %q already defined in %s", path, doc.Name, prev.Source)
		}
		defs[doc.Name] = Definition{
			Name:   doc.Name,
			Class:  doc.Class,
			Shape:  doc.Shape,
			Source: path,
		}
	}
	return defs, nil
}

// Load fills the registry from dir, replacing the current definition set.
// Returns the number of schemas loaded.
func Load(reg *Registry, dir string) (int, error) {
	defs, err := LoadDir(dir)
	if err != nil {
		return 0, err
	}
	reg.ReplaceAll(defs)
	return len(defs), nil
}
