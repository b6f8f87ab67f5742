package store

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/go-undead/pkg/logic"
	"github.com/l3aro/go-undead/pkg/model"
)

// On-disk records. Formulas are stored in canonical text form.

type variableRecord struct {
	Name        string `msgpack:"name"`
	Type        string `msgpack:"type"`
	Description string `msgpack:"description,omitempty"`
	Location    string `msgpack:"location,omitempty"`
}

type variabilityRecord struct {
	Variables   []variableRecord `msgpack:"variables"`
	Constraints []string         `msgpack:"constraints"`
}

type buildEntryRecord struct {
	Path      string `msgpack:"path"`
	Condition string `msgpack:"condition"`
}

type buildRecord struct {
	Entries []buildEntryRecord `msgpack:"entries"`
}

type elementRecord struct {
	Condition string `msgpack:"condition"`
	Start     int    `msgpack:"start"`
	End       int    `msgpack:"end"`
	Parent    int    `msgpack:"parent"`
}

type fileRecord struct {
	Path     string          `msgpack:"path"`
	Elements []elementRecord `msgpack:"elements"`
}

func encodeVariabilityModel(vm *model.VariabilityModel) ([]byte, error) {
	rec := variabilityRecord{}
	for _, v := range vm.Variables() {
		rec.Variables = append(rec.Variables, variableRecord{
			Name:        v.Name,
			Type:        string(v.Type),
			Description: v.Description,
			Location:    v.Location,
		})
	}
	for _, c := range vm.Constraints() {
		rec.Constraints = append(rec.Constraints, c.String())
	}
	return msgpack.Marshal(&rec)
}

func decodeVariabilityModel(data []byte) (*model.VariabilityModel, error) {
	var rec variabilityRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode variability model: %w", err)
	}
	vars := make([]model.Variable, len(rec.Variables))
	for i, v := range rec.Variables {
		vars[i] = model.Variable{
			Name:        v.Name,
			Type:        model.VariableType(v.Type),
			Description: v.Description,
			Location:    v.Location,
		}
	}
	constraints := make([]logic.Formula, len(rec.Constraints))
	for i, c := range rec.Constraints {
		f, err := logic.Parse(c)
		if err != nil {
			return nil, fmt.Errorf("decode constraint %d: %w", i, err)
		}
		constraints[i] = f
	}
	return model.NewVariabilityModel(vars, constraints)
}

func encodeBuildModel(bm *model.BuildModel) ([]byte, error) {
	rec := buildRecord{}
	for _, e := range bm.Entries() {
		rec.Entries = append(rec.Entries, buildEntryRecord{Path: e.Path, Condition: e.Condition.String()})
	}
	return msgpack.Marshal(&rec)
}

func decodeBuildModel(data []byte) (*model.BuildModel, error) {
	var rec buildRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode build model: %w", err)
	}
	entries := make([]model.BuildEntry, len(rec.Entries))
	for i, e := range rec.Entries {
		f, err := logic.Parse(e.Condition)
		if err != nil {
			return nil, fmt.Errorf("decode build condition of %s: %w", e.Path, err)
		}
		entries[i] = model.BuildEntry{Path: e.Path, Condition: f}
	}
	return model.NewBuildModel(entries)
}

func encodeSourceFile(f *model.SourceFile) ([]byte, error) {
	rec := fileRecord{Path: f.Path, Elements: make([]elementRecord, f.Len())}
	for i := 0; i < f.Len(); i++ {
		e := f.Element(i)
		rec.Elements[i] = elementRecord{
			Condition: e.Condition.String(),
			Start:     e.StartLine,
			End:       e.EndLine,
			Parent:    e.Parent,
		}
	}
	return msgpack.Marshal(&rec)
}

func decodeSourceFile(data []byte) (*model.SourceFile, error) {
	var rec fileRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode source file: %w", err)
	}
	f := model.NewSourceFile(rec.Path)
	for i, e := range rec.Elements {
		cond, err := logic.Parse(e.Condition)
		if err != nil {
			return nil, fmt.Errorf("decode element %d of %s: %w", i, rec.Path, err)
		}
		if e.Parent < model.NoParent || e.Parent >= i {
			return nil, fmt.Errorf("decode element %d of %s: invalid parent %d", i, rec.Path, e.Parent)
		}
		f.AddElement(e.Parent, cond, e.Start, e.End)
	}
	return f, nil
}

func encodeFlags(s model.FlagSet) ([]byte, error) {
	return msgpack.Marshal(uint8(s))
}

func decodeFlags(data []byte) (model.FlagSet, error) {
	var v uint8
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return 0, fmt.Errorf("decode flags: %w", err)
	}
	return model.FlagSet(v), nil
}
