package extract

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-undead/pkg/logic"
	"github.com/l3aro/go-undead/pkg/model"
)

// VariabilityFile is the YAML layout of a variability model:
//
//	variables:
//	  - name: CONFIG_NET
//	    type: tristate
//	constraints:
//	  - CONFIG_NET || !CONFIG_USB
type VariabilityFile struct {
	Variables []struct {
		Name        string `yaml:"name"`
		Type        string `yaml:"type,omitempty"`
		Description string `yaml:"description,omitempty"`
		Location    string `yaml:"location,omitempty"`
	} `yaml:"variables"`
	Constraints []string `yaml:"constraints"`
}

// BuildFile is the YAML layout of a build model. Entry order is kept.
type BuildFile struct {
	Files []struct {
		Path      string `yaml:"path"`
		Condition string `yaml:"pc"`
	} `yaml:"files"`
}

// CodeFile is the YAML layout of a pre-extracted code model.
type CodeFile struct {
	Files []struct {
		Path   string      `yaml:"path"`
		Blocks []BlockNode `yaml:"blocks"`
	} `yaml:"files"`
}

// BlockNode is one conditional block and its nested blocks.
type BlockNode struct {
	Condition string      `yaml:"condition"`
	Start     int         `yaml:"start"`
	End       int         `yaml:"end"`
	Children  []BlockNode `yaml:"children,omitempty"`
}

func readYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// LoadVariabilityModel reads a variability model from YAML.
func LoadVariabilityModel(path string) (*model.VariabilityModel, error) {
	var f VariabilityFile
	if err := readYAML(path, &f); err != nil {
		return nil, err
	}

	vars := make([]model.Variable, 0, len(f.Variables))
	for _, v := range f.Variables {
		vars = append(vars, model.Variable{
			Name:        v.Name,
			Type:        model.VariableType(v.Type),
			Description: v.Description,
			Location:    v.Location,
		})
	}
	constraints := make([]logic.Formula, 0, len(f.Constraints))
	for i, c := range f.Constraints {
		formula, err := logic.Parse(c)
		if err != nil {
			return nil, fmt.Errorf("%s: constraint %d: %w", path, i, err)
		}
		constraints = append(constraints, formula)
	}

	vm, err := model.NewVariabilityModel(vars, constraints)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return vm, nil
}

// LoadBuildModel reads a build model from YAML.
func LoadBuildModel(path string) (*model.BuildModel, error) {
	var f BuildFile
	if err := readYAML(path, &f); err != nil {
		return nil, err
	}

	entries := make([]model.BuildEntry, 0, len(f.Files))
	for _, e := range f.Files {
		pc, err := logic.Parse(e.Condition)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", path, e.Path, err)
		}
		entries = append(entries, model.BuildEntry{Path: e.Path, Condition: pc})
	}

	bm, err := model.NewBuildModel(entries)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bm, nil
}

// LoadCodeModel reads pre-extracted source files from YAML.
func LoadCodeModel(path string) ([]*model.SourceFile, error) {
	var f CodeFile
	if err := readYAML(path, &f); err != nil {
		return nil, err
	}

	files := make([]*model.SourceFile, 0, len(f.Files))
	for _, entry := range f.Files {
		if entry.Path == "" {
			return nil, fmt.Errorf("%s: code model entry without path", path)
		}
		sf := model.NewSourceFile(entry.Path)
		for _, b := range entry.Blocks {
			if err := addBlock(sf, model.NoParent, b); err != nil {
				return nil, fmt.Errorf("%s: %s: %w", path, entry.Path, err)
			}
		}
		files = append(files, sf)
	}
	return files, nil
}

func addBlock(sf *model.SourceFile, parent int, b BlockNode) error {
	cond, err := logic.Parse(b.Condition)
	if err != nil {
		return fmt.Errorf("line %d: %w", b.Start, err)
	}
	idx := sf.AddElement(parent, cond, b.Start, b.End)
	for _, c := range b.Children {
		if err := addBlock(sf, idx, c); err != nil {
			return err
		}
	}
	return nil
}

// CodeModelYAML renders files in the layout read by LoadCodeModel.
func CodeModelYAML(files []*model.SourceFile) ([]byte, error) {
	var out CodeFile
	for _, f := range files {
		entry := struct {
			Path   string      `yaml:"path"`
			Blocks []BlockNode `yaml:"blocks"`
		}{Path: f.Path}
		for _, r := range f.Roots() {
			entry.Blocks = append(entry.Blocks, blockNode(f, r))
		}
		out.Files = append(out.Files, entry)
	}
	return yaml.Marshal(out)
}

func blockNode(f *model.SourceFile, i int) BlockNode {
	e := f.Element(i)
	n := BlockNode{Condition: e.Condition.String(), Start: e.StartLine, End: e.EndLine}
	for _, c := range e.Children {
		n.Children = append(n.Children, blockNode(f, c))
	}
	return n
}
