package evaluation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// caseFile is the YAML layout of an evaluation suite.
type caseFile struct {
	Cases []Case `yaml:"cases"`
}

// LoadCases reads an evaluation suite from a YAML file. Difficulty defaults
// to 1 and is capped at 3.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cases file: %w", err)
	}

	var f caseFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse cases file %s: %w", path, err)
	}
	if len(f.Cases) == 0 {
		return nil, fmt.Errorf("cases file %s contains no cases", path)
	}

	for i := range f.Cases {
		if f.Cases[i].Question == "" {
			return nil, fmt.Errorf("case %d has no question", i+1)
		}
		if f.Cases[i].Difficulty < 1 {
			f.Cases[i].Difficulty = 1
		}
		if f.Cases[i].Difficulty > 3 {
			f.Cases[i].Difficulty = 3
		}
	}
	return f.Cases, nil
}
