package ingest

import (
	"os"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// NameFixer reconciles population names between the telemetry source and
// the range shapefile. Collar exports and manager shapefiles rarely agree
// on spelling or casing, so aliases are applied first, then names are
// title-cased into canonical form.
type NameFixer struct {
	aliases map[string]string
	titler  cases.Caser
}

// nameFixFile is the on-disk YAML shape of the correction table.
type nameFixFile struct {
	Aliases map[string]string `yaml:"aliases"`
}

// NewNameFixer builds a fixer from an alias map. Keys are source names as
// they appear in the telemetry export, values the canonical range names.
func NewNameFixer(aliases map[string]string) *NameFixer {
	return &NameFixer{
		aliases: aliases,
		titler:  cases.Title(language.English),
	}
}

// LoadNameFixer reads the correction table from a YAML file. An empty
// path yields a fixer that only normalizes casing.
func LoadNameFixer(path string) (*NameFixer, error) {
	if path == "" {
		return NewNameFixer(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read name corrections %s", path)
	}
	var f nameFixFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "ingest: parse name corrections %s", path)
	}
	return NewNameFixer(f.Aliases), nil
}

// Fix returns the canonical form of a population name.
func (n *NameFixer) Fix(name string) string {
	if name == "" {
		return ""
	}
	if canonical, ok := n.aliases[name]; ok {
		return canonical
	}
	return n.titler.String(name)
}
