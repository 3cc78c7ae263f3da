package schema

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Compile parses a CUE value into a validated Catalog.
// Uses the CUE SDK's Go API directly (not a CLI subprocess).
//
// The CUE value must carry a top-level "catalog" struct:
//
//	catalog: {
//		version: "9.000"
//		class: { System: { id: 1 }, Generator: { id: 2 }, ... }
//		unit: { "MW": { id: 2 }, ... }
//		collection: { Generators: { id: 1, parent: "System", child: "Generator" }, ... }
//		property: { Generators: { "Max Capacity": { id: 1, unit: "MW" }, ... }, ... }
//		attribute: { Generator: { Latitude: { id: 1 } }, ... }
//	}
func Compile(v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	root := v.LookupPath(cue.ParsePath("catalog"))
	if !root.Exists() {
		return nil, &CompileError{
			Field:   "catalog",
			Message: "catalog definition is required",
			Pos:     v.Pos(),
		}
	}

	version := ""
	if versionVal := root.LookupPath(cue.ParsePath("version")); versionVal.Exists() {
		s, err := versionVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		version = s
	}

	classes, err := parseClasses(root)
	if err != nil {
		return nil, err
	}
	if len(classes) == 0 {
		return nil, &CompileError{
			Field:   "class",
			Message: "at least one class is required",
			Pos:     root.Pos(),
		}
	}
	classIDs := make(map[string]int64, len(classes))
	for _, cls := range classes {
		classIDs[FoldName(cls.Name)] = cls.ID
	}

	// Parent references resolve after all classes are known.
	if err := resolveClassParents(root, classes, classIDs); err != nil {
		return nil, err
	}

	units, unitIDs, err := parseUnits(root)
	if err != nil {
		return nil, err
	}

	collections, collectionIDs, err := parseCollections(root, classIDs)
	if err != nil {
		return nil, err
	}

	properties, err := parseProperties(root, collectionIDs, unitIDs)
	if err != nil {
		return nil, err
	}

	attributes, err := parseAttributes(root, classIDs)
	if err != nil {
		return nil, err
	}

	cat, err := newCatalog(version, classes, units, collections, properties, attributes)
	if err != nil {
		return nil, &CompileError{
			Field:   "catalog",
			Message: err.Error(),
			Pos:     root.Pos(),
		}
	}
	return cat, nil
}

// parseClasses extracts class definitions in declaration order.
func parseClasses(root cue.Value) ([]Class, error) {
	classVal := root.LookupPath(cue.ParsePath("class"))
	if !classVal.Exists() {
		return nil, nil
	}

	iter, err := classVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var classes []Class
	for iter.Next() {
		name := iter.Label()
		val := iter.Value()

		id, err := requireInt(val, "id", fmt.Sprintf("class.%s", name))
		if err != nil {
			return nil, err
		}

		cls := Class{ID: id, Name: name}
		if descVal := val.LookupPath(cue.ParsePath("description")); descVal.Exists() {
			desc, err := descVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			cls.Description = desc
		}
		classes = append(classes, cls)
	}
	return classes, nil
}

// resolveClassParents fills ParentID from optional "parent" class names.
func resolveClassParents(root cue.Value, classes []Class, classIDs map[string]int64) error {
	classVal := root.LookupPath(cue.ParsePath("class"))
	iter, err := classVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	idx := 0
	for iter.Next() {
		val := iter.Value()
		if parentVal := val.LookupPath(cue.ParsePath("parent")); parentVal.Exists() {
			parent, err := parentVal.String()
			if err != nil {
				return formatCUEError(err)
			}
			id, ok := classIDs[FoldName(parent)]
			if !ok {
				return &CompileError{
					Field:   fmt.Sprintf("class.%s.parent", classes[idx].Name),
					Message: fmt.Sprintf("unknown parent class %q", parent),
					Pos:     parentVal.Pos(),
				}
			}
			classes[idx].ParentID = id
		}
		idx++
	}
	return nil
}

// parseUnits extracts unit definitions keyed by their display value.
func parseUnits(root cue.Value) ([]Unit, map[string]int64, error) {
	unitIDs := make(map[string]int64)
	unitVal := root.LookupPath(cue.ParsePath("unit"))
	if !unitVal.Exists() {
		return nil, unitIDs, nil
	}

	iter, err := unitVal.Fields()
	if err != nil {
		return nil, nil, formatCUEError(err)
	}

	var units []Unit
	for iter.Next() {
		value := iter.Label()
		id, err := requireInt(iter.Value(), "id", fmt.Sprintf("unit.%q", value))
		if err != nil {
			return nil, nil, err
		}
		units = append(units, Unit{ID: id, Value: value})
		unitIDs[value] = id
	}
	return units, unitIDs, nil
}

// parseCollections extracts collection definitions, resolving parent and
// child class names to ids. Labels are unique keys (SystemGenerators,
// GeneratorFuels, ...); the stored collection name defaults to the label
// but may be overridden with a "name" field, since distinct class pairs
// routinely share a display name like "Nodes".
func parseCollections(root cue.Value, classIDs map[string]int64) ([]Collection, map[string]int64, error) {
	keyIDs := make(map[string]int64)
	collVal := root.LookupPath(cue.ParsePath("collection"))
	if !collVal.Exists() {
		return nil, keyIDs, nil
	}

	iter, err := collVal.Fields()
	if err != nil {
		return nil, nil, formatCUEError(err)
	}

	var collections []Collection
	for iter.Next() {
		key := iter.Label()
		val := iter.Value()
		field := fmt.Sprintf("collection.%s", key)

		id, err := requireInt(val, "id", field)
		if err != nil {
			return nil, nil, err
		}

		parentID, err := requireClassRef(val, "parent", field, classIDs)
		if err != nil {
			return nil, nil, err
		}
		childID, err := requireClassRef(val, "child", field, classIDs)
		if err != nil {
			return nil, nil, err
		}

		coll := Collection{
			ID:            id,
			Name:          key,
			ParentClassID: parentID,
			ChildClassID:  childID,
			MaxCount:      -1,
		}

		if nameVal := val.LookupPath(cue.ParsePath("name")); nameVal.Exists() {
			s, err := nameVal.String()
			if err != nil {
				return nil, nil, formatCUEError(err)
			}
			coll.Name = s
		}
		if minVal := val.LookupPath(cue.ParsePath("min")); minVal.Exists() {
			n, err := minVal.Int64()
			if err != nil {
				return nil, nil, formatCUEError(err)
			}
			coll.MinCount = int(n)
		}
		if maxVal := val.LookupPath(cue.ParsePath("max")); maxVal.Exists() {
			n, err := maxVal.Int64()
			if err != nil {
				return nil, nil, formatCUEError(err)
			}
			coll.MaxCount = int(n)
		}
		if complementVal := val.LookupPath(cue.ParsePath("complement")); complementVal.Exists() {
			s, err := complementVal.String()
			if err != nil {
				return nil, nil, formatCUEError(err)
			}
			coll.Complement = s
		}

		collections = append(collections, coll)
		keyIDs[FoldName(key)] = id
	}
	return collections, keyIDs, nil
}

// parseProperties extracts property definitions grouped by collection name.
func parseProperties(root cue.Value, collectionIDs, unitIDs map[string]int64) ([]Property, error) {
	propVal := root.LookupPath(cue.ParsePath("property"))
	if !propVal.Exists() {
		return nil, nil
	}

	collIter, err := propVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var properties []Property
	for collIter.Next() {
		collName := collIter.Label()
		collID, ok := collectionIDs[FoldName(collName)]
		if !ok {
			return nil, &CompileError{
				Field:   fmt.Sprintf("property.%s", collName),
				Message: fmt.Sprintf("unknown collection %q", collName),
				Pos:     collIter.Value().Pos(),
			}
		}

		propIter, err := collIter.Value().Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}

		for propIter.Next() {
			name := propIter.Label()
			val := propIter.Value()
			field := fmt.Sprintf("property.%s.%q", collName, name)

			id, err := requireInt(val, "id", field)
			if err != nil {
				return nil, err
			}

			p := Property{ID: id, CollectionID: collID, Name: name}

			if unitVal := val.LookupPath(cue.ParsePath("unit")); unitVal.Exists() {
				unit, err := unitVal.String()
				if err != nil {
					return nil, formatCUEError(err)
				}
				unitID, ok := unitIDs[unit]
				if !ok {
					return nil, &CompileError{
						Field:   field + ".unit",
						Message: fmt.Sprintf("unknown unit %q", unit),
						Pos:     unitVal.Pos(),
					}
				}
				p.UnitID = unitID
			}
			if defVal := val.LookupPath(cue.ParsePath("default")); defVal.Exists() {
				f, err := defVal.Float64()
				if err != nil {
					return nil, formatCUEError(err)
				}
				p.Default = f
			}
			if mbVal := val.LookupPath(cue.ParsePath("multiBand")); mbVal.Exists() {
				b, err := mbVal.Bool()
				if err != nil {
					return nil, formatCUEError(err)
				}
				p.IsMultiBand = b
			}

			properties = append(properties, p)
		}
	}
	return properties, nil
}

// parseAttributes extracts attribute definitions grouped by class name.
func parseAttributes(root cue.Value, classIDs map[string]int64) ([]Attribute, error) {
	attrVal := root.LookupPath(cue.ParsePath("attribute"))
	if !attrVal.Exists() {
		return nil, nil
	}

	classIter, err := attrVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var attributes []Attribute
	for classIter.Next() {
		className := classIter.Label()
		classID, ok := classIDs[FoldName(className)]
		if !ok {
			return nil, &CompileError{
				Field:   fmt.Sprintf("attribute.%s", className),
				Message: fmt.Sprintf("unknown class %q", className),
				Pos:     classIter.Value().Pos(),
			}
		}

		attrIter, err := classIter.Value().Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}

		for attrIter.Next() {
			name := attrIter.Label()
			val := attrIter.Value()

			id, err := requireInt(val, "id", fmt.Sprintf("attribute.%s.%q", className, name))
			if err != nil {
				return nil, err
			}

			a := Attribute{ID: id, ClassID: classID, Name: name}
			if descVal := val.LookupPath(cue.ParsePath("description")); descVal.Exists() {
				desc, err := descVal.String()
				if err != nil {
					return nil, formatCUEError(err)
				}
				a.Description = desc
			}
			attributes = append(attributes, a)
		}
	}
	return attributes, nil
}

// requireInt reads a required integer field from a CUE struct.
func requireInt(v cue.Value, path, field string) (int64, error) {
	fieldVal := v.LookupPath(cue.ParsePath(path))
	if !fieldVal.Exists() {
		return 0, &CompileError{
			Field:   field + "." + path,
			Message: path + " is required",
			Pos:     v.Pos(),
		}
	}
	n, err := fieldVal.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}

// requireClassRef reads a required class-name field and resolves it to an id.
func requireClassRef(v cue.Value, path, field string, classIDs map[string]int64) (int64, error) {
	fieldVal := v.LookupPath(cue.ParsePath(path))
	if !fieldVal.Exists() {
		return 0, &CompileError{
			Field:   field + "." + path,
			Message: path + " class is required",
			Pos:     v.Pos(),
		}
	}
	name, err := fieldVal.String()
	if err != nil {
		return 0, formatCUEError(err)
	}
	id, ok := classIDs[FoldName(name)]
	if !ok {
		return 0, &CompileError{
			Field:   field + "." + path,
			Message: fmt.Sprintf("unknown class %q", name),
			Pos:     fieldVal.Pos(),
		}
	}
	return id, nil
}

// CompileError represents a catalog compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
