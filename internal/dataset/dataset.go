package dataset

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/fern-energy/gridbase/internal/store"
)

// Dataset is a declarative model fragment. Sections apply in order:
// objects, then memberships, then properties.
type Dataset struct {
	// ChunkSize bounds the per-transaction record count of the chunked
	// bulk operations. Zero uses store.DefaultChunkSize.
	ChunkSize int `yaml:"chunk_size,omitempty"`

	// Objects lists object batches to create.
	Objects []ObjectGroup `yaml:"objects,omitempty"`

	// Memberships lists membership edges to create.
	Memberships []MembershipGroup `yaml:"memberships,omitempty"`

	// Properties lists property values to insert.
	Properties []PropertyGroup `yaml:"properties,omitempty"`
}

// ObjectGroup creates a batch of same-class objects in one transaction.
type ObjectGroup struct {
	// Class names the objects' class.
	Class string `yaml:"class"`

	// Category, when set, places every object of the batch in the named
	// category, creating it on first use.
	Category string `yaml:"category,omitempty"`

	// Names lists the objects to create.
	Names []string `yaml:"names"`
}

// MembershipGroup creates edges of one collection between two classes.
type MembershipGroup struct {
	// Collection names the collection, as declared on the parent class.
	Collection string `yaml:"collection"`

	// ParentClass and ChildClass name the classes on each end.
	ParentClass string `yaml:"parent_class"`
	ChildClass  string `yaml:"child_class"`

	// Pairs lists the edges to create.
	Pairs []Pair `yaml:"pairs"`

	// CreateMissing creates child objects that don't exist yet instead
	// of failing. Missing parents are always an error.
	CreateMissing bool `yaml:"create_missing,omitempty"`
}

// Pair names one membership edge by its endpoint object names.
type Pair struct {
	Parent string `yaml:"parent"`
	Child  string `yaml:"child"`
}

// PropertyGroup inserts property values through one collection.
type PropertyGroup struct {
	// Class names the child class the records' objects belong to.
	Class string `yaml:"class"`

	// Collection names the collection the properties are declared on.
	Collection string `yaml:"collection"`

	// Scenario, when set, tags every inserted row with the named
	// scenario, creating the scenario object on first use.
	Scenario string `yaml:"scenario,omitempty"`

	// CreateMissing creates referenced objects that don't exist yet.
	CreateMissing bool `yaml:"create_missing,omitempty"`

	// Records lists the values to insert.
	Records []Record `yaml:"records,omitempty"`

	// Nested is the older per-object shape. Load flattens it into
	// Records; new files should write Records directly.
	Nested []NestedValues `yaml:"nested,omitempty"`
}

// Record is one property value.
type Record struct {
	// Object names the child object the value attaches to.
	Object string `yaml:"object"`

	// Property names the property, as declared on the collection.
	Property string `yaml:"property"`

	// Value is the numeric payload.
	Value float64 `yaml:"value"`

	// Band selects the value band. Zero means band 1.
	Band int `yaml:"band,omitempty"`

	// DateFrom and DateTo bound the value's validity window.
	DateFrom string `yaml:"date_from,omitempty"`
	DateTo   string `yaml:"date_to,omitempty"`

	// File attaches a data-file path reference to the row.
	File string `yaml:"file,omitempty"`
}

// NestedValues is the older record shape: one object with a map of
// property names to values.
type NestedValues struct {
	Object string             `yaml:"object"`
	Values map[string]float64 `yaml:"values"`
}

// Summary counts what Apply wrote. On error the counts cover the chunks
// that committed before the failure.
type Summary struct {
	Objects     int
	Memberships int
	Values      int
}

// Load reads and parses a dataset YAML file. Unknown fields, missing
// required fields, and the like are errors. Nested property shapes are
// flattened into flat records, with a deprecation warning.
func Load(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset file: %w", err)
	}

	var d Dataset
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&d); err != nil {
		return nil, fmt.Errorf("parse dataset file: %w", err)
	}

	if err := validate(&d); err != nil {
		return nil, fmt.Errorf("invalid dataset: %w", err)
	}
	flatten(&d, path)
	return &d, nil
}

// flatten converts deprecated nested property shapes into flat records,
// appended after any explicit records in the same group.
func flatten(d *Dataset, path string) {
	warned := false
	for i := range d.Properties {
		g := &d.Properties[i]
		if len(g.Nested) == 0 {
			continue
		}
		if !warned {
			slog.Warn("dataset uses deprecated nested property records", "path", path)
			warned = true
		}
		for _, n := range g.Nested {
			names := make([]string, 0, len(n.Values))
			for name := range n.Values {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				g.Records = append(g.Records, Record{
					Object:   n.Object,
					Property: name,
					Value:    n.Values[name],
				})
			}
		}
		g.Nested = nil
	}
}

// validate checks required fields section by section.
func validate(d *Dataset) error {
	if d.ChunkSize < 0 {
		return fmt.Errorf("chunk_size must be non-negative")
	}
	for i, g := range d.Objects {
		if g.Class == "" {
			return fmt.Errorf("objects[%d]: class is required", i)
		}
		if len(g.Names) == 0 {
			return fmt.Errorf("objects[%d]: names list is required and must be non-empty", i)
		}
	}
	for i, g := range d.Memberships {
		if g.Collection == "" {
			return fmt.Errorf("memberships[%d]: collection is required", i)
		}
		if g.ParentClass == "" {
			return fmt.Errorf("memberships[%d]: parent_class is required", i)
		}
		if g.ChildClass == "" {
			return fmt.Errorf("memberships[%d]: child_class is required", i)
		}
		if len(g.Pairs) == 0 {
			return fmt.Errorf("memberships[%d]: pairs list is required and must be non-empty", i)
		}
		for j, p := range g.Pairs {
			if p.Parent == "" {
				return fmt.Errorf("memberships[%d].pairs[%d]: parent is required", i, j)
			}
			if p.Child == "" {
				return fmt.Errorf("memberships[%d].pairs[%d]: child is required", i, j)
			}
		}
	}
	for i, g := range d.Properties {
		if g.Class == "" {
			return fmt.Errorf("properties[%d]: class is required", i)
		}
		if g.Collection == "" {
			return fmt.Errorf("properties[%d]: collection is required", i)
		}
		if len(g.Records) == 0 && len(g.Nested) == 0 {
			return fmt.Errorf("properties[%d]: records list is required and must be non-empty", i)
		}
		for j, r := range g.Records {
			if r.Object == "" {
				return fmt.Errorf("properties[%d].records[%d]: object is required", i, j)
			}
			if r.Property == "" {
				return fmt.Errorf("properties[%d].records[%d]: property is required", i, j)
			}
			if r.Band < 0 {
				return fmt.Errorf("properties[%d].records[%d]: band must be non-negative", i, j)
			}
		}
		for j, n := range g.Nested {
			if n.Object == "" {
				return fmt.Errorf("properties[%d].nested[%d]: object is required", i, j)
			}
			if len(n.Values) == 0 {
				return fmt.Errorf("properties[%d].nested[%d]: values map is required and must be non-empty", i, j)
			}
		}
	}
	return nil
}

// Apply writes the dataset to the store: object batches first, then
// membership edges, then property records. The summary counts committed
// writes; a failed chunked section keeps the chunks that committed
// before the failure.
func (d *Dataset) Apply(ctx context.Context, st *store.Store) (Summary, error) {
	var sum Summary

	for i, g := range d.Objects {
		opts := []store.ObjectOption{}
		if g.Category != "" {
			opts = append(opts, store.WithCategory(g.Category))
		}
		ids, err := st.BulkCreateObjects(ctx, g.Class, g.Names, opts...)
		if err != nil {
			return sum, fmt.Errorf("apply objects[%d]: %w", i, err)
		}
		sum.Objects += len(ids)
	}

	for i, g := range d.Memberships {
		records := make([]store.MembershipRecord, len(g.Pairs))
		for j, p := range g.Pairs {
			records[j] = store.MembershipRecord{
				ParentClass:  g.ParentClass,
				ParentObject: p.Parent,
				Collection:   g.Collection,
				ChildClass:   g.ChildClass,
				ChildObject:  p.Child,
			}
		}
		n, err := st.BulkCreateMemberships(ctx, records, d.bulkOptions(g.CreateMissing, "")...)
		sum.Memberships += n
		if err != nil {
			return sum, fmt.Errorf("apply memberships[%d]: %w", i, err)
		}
	}

	for i, g := range d.Properties {
		records := make([]store.ValueRecord, len(g.Records))
		for j, r := range g.Records {
			records[j] = store.ValueRecord{
				Object:   r.Object,
				Property: r.Property,
				Value:    r.Value,
				Band:     r.Band,
				DateFrom: r.DateFrom,
				DateTo:   r.DateTo,
				Text:     r.File,
			}
		}
		n, err := st.BulkSetValues(ctx, g.Class, g.Collection, records, d.bulkOptions(g.CreateMissing, g.Scenario)...)
		sum.Values += n
		if err != nil {
			return sum, fmt.Errorf("apply properties[%d]: %w", i, err)
		}
	}

	return sum, nil
}

func (d *Dataset) bulkOptions(createMissing bool, scenario string) []store.BulkOption {
	opts := []store.BulkOption{}
	if d.ChunkSize > 0 {
		opts = append(opts, store.WithChunkSize(d.ChunkSize))
	}
	if createMissing {
		opts = append(opts, store.CreateMissingObjects())
	}
	if scenario != "" {
		opts = append(opts, store.InScenario(scenario))
	}
	return opts
}
