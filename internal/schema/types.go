package schema

// Well-known class names fixed by the persisted layout. The root System
// class must exist in every catalog; the four auxiliary classes are
// optional but, when present, drive tag classification.
const (
	SystemClassName    = "System"
	ScenarioClassName  = "Scenario"
	DataFileClassName  = "Data File"
	TimesliceClassName = "Timeslice"
	VariableClassName  = "Variable"
)

// SystemObjectName is the singleton root object every membership chain
// terminates at. It is created when a database is initialized.
const SystemObjectName = "System"

// TagKind classifies the auxiliary object a tag references.
// The set is closed: tags referencing any other class are invalid.
type TagKind int

const (
	// TagNone means the class is not an auxiliary tag class.
	TagNone TagKind = iota

	// TagScenario marks a data row as a scenario override.
	TagScenario

	// TagDataFile points the row at an external file reference held in
	// the paired text row.
	TagDataFile

	// TagTimeslice restricts the row to a named sub-period.
	TagTimeslice

	// TagVariable redirects the row to another object's own data.
	TagVariable
)

// String returns the class name associated with the tag kind.
func (k TagKind) String() string {
	switch k {
	case TagScenario:
		return ScenarioClassName
	case TagDataFile:
		return DataFileClassName
	case TagTimeslice:
		return TimesliceClassName
	case TagVariable:
		return VariableClassName
	default:
		return "none"
	}
}

// Class is a named entity type (Generator, Region, Scenario, ...).
type Class struct {
	ID          int64
	Name        string
	ParentID    int64 // 0 when the class has no parent
	Description string
}

// Unit is a measurement unit attached to properties ("MW", "%", "-").
type Unit struct {
	ID    int64
	Value string
}

// Collection is a typed relationship kind between a parent and child class.
// MaxCount of -1 means unbounded.
type Collection struct {
	ID            int64
	Name          string
	ParentClassID int64
	ChildClassID  int64
	MinCount      int
	MaxCount      int
	Complement    string
}

// Property is a value slot declaration owned by a collection.
type Property struct {
	ID           int64
	CollectionID int64
	Name         string
	UnitID       int64 // 0 when the property carries no unit
	Default      float64
	IsMultiBand  bool
}

// Attribute is a per-class scalar slot, simpler than a property: no
// bands, no scenarios, no validity windows.
type Attribute struct {
	ID          int64
	ClassID     int64
	Name        string
	Description string
}
