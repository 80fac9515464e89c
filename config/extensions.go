package config

import (
	"fmt"
	"os"

	"github.com/gigapi/draftpipe/model"
	"gopkg.in/yaml.v3"
)

type extensionsFile struct {
	Columns []model.ColumnDefinition `yaml:"columns"`
}

// LoadExtensions reads column definitions from a YAML file of the form
//
//	columns:
//	  - name: num_p1p1
//	    expr: "pick_number == 0 and pack_number == 0 ? 1 : 0"
//	    kind: PICK_SUM
//	    views: [draft]
//
// An empty filename yields no definitions.
func LoadExtensions(filename string) ([]model.ColumnDefinition, error) {
	if filename == "" {
		return nil, nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var f extensionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: failed to parse extensions %s: %v", model.ErrConfiguration, filename, err)
	}
	return f.Columns, nil
}
