package schema

import (
	"fmt"
	"sort"
)

// Catalog is the immutable schema snapshot shared by all store operations.
// Build one with Compile, Load, or Default; never mutate it afterwards.
type Catalog struct {
	Version     string
	Classes     []Class
	Units       []Unit
	Collections []Collection
	Properties  []Property
	Attributes  []Attribute

	classByID    map[int64]*Class
	classByName  map[string]*Class
	unitByID     map[int64]*Unit
	collByID     map[int64]*Collection
	collByKey    map[collectionKey]*Collection
	collDefault  map[int64]*Collection
	propsByColl  map[int64]map[string]*Property
	attrsByClass map[int64]map[string]*Attribute
	tagKinds     map[int64]TagKind
	tagClasses   map[TagKind]*Class
	system       *Class
}

// collectionKey identifies a collection by its class pair and folded name.
type collectionKey struct {
	parentClassID int64
	childClassID  int64
	name          string
}

// newCatalog builds the lookup maps and validates cross-references.
// All slices are retained by the catalog and must not be mutated by the
// caller afterwards.
func newCatalog(version string, classes []Class, units []Unit, collections []Collection, properties []Property, attributes []Attribute) (*Catalog, error) {
	c := &Catalog{
		Version:      version,
		Classes:      classes,
		Units:        units,
		Collections:  collections,
		Properties:   properties,
		Attributes:   attributes,
		classByID:    make(map[int64]*Class, len(classes)),
		classByName:  make(map[string]*Class, len(classes)),
		unitByID:     make(map[int64]*Unit, len(units)),
		collByID:     make(map[int64]*Collection, len(collections)),
		collByKey:    make(map[collectionKey]*Collection, len(collections)),
		collDefault:  make(map[int64]*Collection),
		propsByColl:  make(map[int64]map[string]*Property),
		attrsByClass: make(map[int64]map[string]*Attribute),
		tagKinds:     make(map[int64]TagKind, 4),
		tagClasses:   make(map[TagKind]*Class, 4),
	}

	for i := range c.Classes {
		cls := &c.Classes[i]
		if _, dup := c.classByID[cls.ID]; dup {
			return nil, fmt.Errorf("duplicate class id %d (%s)", cls.ID, cls.Name)
		}
		folded := FoldName(cls.Name)
		if _, dup := c.classByName[folded]; dup {
			return nil, fmt.Errorf("duplicate class name %q", cls.Name)
		}
		c.classByID[cls.ID] = cls
		c.classByName[folded] = cls
	}

	c.system = c.classByName[FoldName(SystemClassName)]
	if c.system == nil {
		return nil, fmt.Errorf("catalog has no %s class", SystemClassName)
	}

	for name, kind := range map[string]TagKind{
		ScenarioClassName:  TagScenario,
		DataFileClassName:  TagDataFile,
		TimesliceClassName: TagTimeslice,
		VariableClassName:  TagVariable,
	} {
		if cls, ok := c.classByName[FoldName(name)]; ok {
			c.tagKinds[cls.ID] = kind
			c.tagClasses[kind] = cls
		}
	}

	for i := range c.Units {
		u := &c.Units[i]
		if _, dup := c.unitByID[u.ID]; dup {
			return nil, fmt.Errorf("duplicate unit id %d (%s)", u.ID, u.Value)
		}
		c.unitByID[u.ID] = u
	}

	for i := range c.Collections {
		coll := &c.Collections[i]
		if _, dup := c.collByID[coll.ID]; dup {
			return nil, fmt.Errorf("duplicate collection id %d (%s)", coll.ID, coll.Name)
		}
		if _, ok := c.classByID[coll.ParentClassID]; !ok {
			return nil, fmt.Errorf("collection %s: unknown parent class id %d", coll.Name, coll.ParentClassID)
		}
		if _, ok := c.classByID[coll.ChildClassID]; !ok {
			return nil, fmt.Errorf("collection %s: unknown child class id %d", coll.Name, coll.ChildClassID)
		}
		key := collectionKey{coll.ParentClassID, coll.ChildClassID, FoldName(coll.Name)}
		if _, dup := c.collByKey[key]; dup {
			return nil, fmt.Errorf("duplicate collection %q for class pair (%d, %d)", coll.Name, coll.ParentClassID, coll.ChildClassID)
		}
		c.collByID[coll.ID] = coll
		c.collByKey[key] = coll

		// The lowest-id System collection per child class is the one
		// implicit root memberships use.
		if coll.ParentClassID == c.system.ID {
			if existing, ok := c.collDefault[coll.ChildClassID]; !ok || coll.ID < existing.ID {
				c.collDefault[coll.ChildClassID] = coll
			}
		}
	}

	propIDs := make(map[int64]string, len(c.Properties))
	for i := range c.Properties {
		p := &c.Properties[i]
		coll, ok := c.collByID[p.CollectionID]
		if !ok {
			return nil, fmt.Errorf("property %s: unknown collection id %d", p.Name, p.CollectionID)
		}
		if other, dup := propIDs[p.ID]; dup {
			return nil, fmt.Errorf("duplicate property id %d (%s, %s)", p.ID, other, p.Name)
		}
		propIDs[p.ID] = p.Name
		if p.UnitID != 0 {
			if _, ok := c.unitByID[p.UnitID]; !ok {
				return nil, fmt.Errorf("property %s: unknown unit id %d", p.Name, p.UnitID)
			}
		}
		byName := c.propsByColl[coll.ID]
		if byName == nil {
			byName = make(map[string]*Property)
			c.propsByColl[coll.ID] = byName
		}
		folded := FoldName(p.Name)
		if _, dup := byName[folded]; dup {
			return nil, fmt.Errorf("duplicate property %q in collection %s", p.Name, coll.Name)
		}
		byName[folded] = p
	}

	attrIDs := make(map[int64]string, len(c.Attributes))
	for i := range c.Attributes {
		a := &c.Attributes[i]
		cls, ok := c.classByID[a.ClassID]
		if !ok {
			return nil, fmt.Errorf("attribute %s: unknown class id %d", a.Name, a.ClassID)
		}
		if other, dup := attrIDs[a.ID]; dup {
			return nil, fmt.Errorf("duplicate attribute id %d (%s, %s)", a.ID, other, a.Name)
		}
		attrIDs[a.ID] = a.Name
		byName := c.attrsByClass[cls.ID]
		if byName == nil {
			byName = make(map[string]*Attribute)
			c.attrsByClass[cls.ID] = byName
		}
		folded := FoldName(a.Name)
		if _, dup := byName[folded]; dup {
			return nil, fmt.Errorf("duplicate attribute %q for class %s", a.Name, cls.Name)
		}
		byName[folded] = a
	}

	return c, nil
}

// SystemClass returns the root class. Every catalog has one.
func (c *Catalog) SystemClass() *Class {
	return c.system
}

// ClassByName resolves a class by name, case-insensitively.
func (c *Catalog) ClassByName(name string) (*Class, bool) {
	cls, ok := c.classByName[FoldName(name)]
	return cls, ok
}

// ClassByID resolves a class by id.
func (c *Catalog) ClassByID(id int64) (*Class, bool) {
	cls, ok := c.classByID[id]
	return cls, ok
}

// UnitByID resolves a unit by id.
func (c *Catalog) UnitByID(id int64) (*Unit, bool) {
	u, ok := c.unitByID[id]
	return u, ok
}

// CollectionByID resolves a collection by id.
func (c *Catalog) CollectionByID(id int64) (*Collection, bool) {
	coll, ok := c.collByID[id]
	return coll, ok
}

// CollectionByName resolves a collection by its (parent class, child class,
// name) triple, case-insensitively on the name.
func (c *Catalog) CollectionByName(parent, child *Class, name string) (*Collection, bool) {
	coll, ok := c.collByKey[collectionKey{parent.ID, child.ID, FoldName(name)}]
	return coll, ok
}

// DefaultCollection returns the System collection used for a class's
// implicit root memberships, if the catalog declares one.
func (c *Catalog) DefaultCollection(child *Class) (*Collection, bool) {
	coll, ok := c.collDefault[child.ID]
	return coll, ok
}

// CollectionFromParent resolves a collection by parent class and name
// alone, for callers that don't know the child class. When several
// collections share the name under one parent, the lowest id wins.
func (c *Catalog) CollectionFromParent(parent *Class, name string) (*Collection, bool) {
	return c.collectionOneSided(name, func(coll *Collection) bool {
		return coll.ParentClassID == parent.ID
	})
}

// CollectionToChild resolves a collection by child class and name alone.
// When several collections share the name into one child class, the
// lowest id wins.
func (c *Catalog) CollectionToChild(child *Class, name string) (*Collection, bool) {
	return c.collectionOneSided(name, func(coll *Collection) bool {
		return coll.ChildClassID == child.ID
	})
}

func (c *Catalog) collectionOneSided(name string, match func(*Collection) bool) (*Collection, bool) {
	folded := FoldName(name)
	var found *Collection
	for i := range c.Collections {
		coll := &c.Collections[i]
		if !match(coll) || FoldName(coll.Name) != folded {
			continue
		}
		if found == nil || coll.ID < found.ID {
			found = coll
		}
	}
	return found, found != nil
}

// PropertyByName resolves a property within a collection, case-insensitively.
func (c *Catalog) PropertyByName(coll *Collection, name string) (*Property, bool) {
	p, ok := c.propsByColl[coll.ID][FoldName(name)]
	return p, ok
}

// PropertyNames lists the valid property names for a collection, sorted.
func (c *Catalog) PropertyNames(coll *Collection) []string {
	byName := c.propsByColl[coll.ID]
	names := make([]string, 0, len(byName))
	for _, p := range byName {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// AttributeByName resolves an attribute declared for a class, case-insensitively.
func (c *Catalog) AttributeByName(cls *Class, name string) (*Attribute, bool) {
	a, ok := c.attrsByClass[cls.ID][FoldName(name)]
	return a, ok
}

// AttributeNames lists the valid attribute names for a class, sorted.
func (c *Catalog) AttributeNames(cls *Class) []string {
	byName := c.attrsByClass[cls.ID]
	names := make([]string, 0, len(byName))
	for _, a := range byName {
		names = append(names, a.Name)
	}
	sort.Strings(names)
	return names
}

// TagKindOf classifies a class id as one of the auxiliary tag kinds.
// Returns TagNone for every class that is not an auxiliary class.
func (c *Catalog) TagKindOf(classID int64) TagKind {
	return c.tagKinds[classID]
}

// TagClass returns the class backing an auxiliary tag kind, if the
// catalog declares it.
func (c *Catalog) TagClass(kind TagKind) (*Class, bool) {
	cls, ok := c.tagClasses[kind]
	return cls, ok
}
