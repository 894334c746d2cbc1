package schema

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xtremefabrix/formrelay/model"
	"gopkg.in/yaml.v3"
)

// Loader scans directories for YAML form definitions, one form per file.
type Loader struct{}

// NewLoader creates a new Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadAll recursively scans directories for *.yaml and *.yml files and parses
// each into a FormSchema.
func (l *Loader) LoadAll(directories []string) ([]model.FormSchema, error) {
	var forms []model.FormSchema

	for _, dir := range directories {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".yaml" && ext != ".yml" {
				return nil
			}

			form, err := l.LoadFile(path)
			if err != nil {
				return fmt.Errorf("loading %s: %w", path, err)
			}
			forms = append(forms, form)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning directory %s: %w", dir, err)
		}
	}

	return forms, nil
}

// LoadFile parses a single YAML form definition and records its checksum and
// source path.
func (l *Loader) LoadFile(path string) (model.FormSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.FormSchema{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var form model.FormSchema
	if err := yaml.Unmarshal(data, &form); err != nil {
		return model.FormSchema{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	form.Checksum = fmt.Sprintf("%x", sha256.Sum256(data))
	form.SourceFile = path

	return form, nil
}

// Merge returns base with every form in overrides appended, or substituted
// in place when the ID already exists.
func Merge(base, overrides []model.FormSchema) []model.FormSchema {
	out := make([]model.FormSchema, 0, len(base)+len(overrides))
	index := make(map[string]int, len(base)+len(overrides))
	for _, f := range base {
		index[f.ID] = len(out)
		out = append(out, f)
	}
	for _, f := range overrides {
		if i, ok := index[f.ID]; ok {
			out[i] = f
			continue
		}
		index[f.ID] = len(out)
		out = append(out, f)
	}
	return out
}
