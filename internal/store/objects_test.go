package store

import (
	"context"
	"errors"
	"testing"
)

func TestCreateObject_Basic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateObject(ctx, "Generator", "Gen1")
	if err != nil {
		t.Fatalf("CreateObject() failed: %v", err)
	}
	if id == 0 {
		t.Error("CreateObject() returned id 0")
	}

	obj, err := s.GetObject(ctx, "Generator", "Gen1")
	if err != nil {
		t.Fatalf("GetObject() failed: %v", err)
	}
	if obj.ID != id {
		t.Errorf("object id = %d, want %d", obj.ID, id)
	}
	if obj.Category != DefaultCategoryName {
		t.Errorf("category = %q, want %q", obj.Category, DefaultCategoryName)
	}
	if obj.GUID == "" {
		t.Error("object has no GUID")
	}
}

func TestCreateObject_SystemMembership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateObject(ctx, "Generator", "Gen1"); err != nil {
		t.Fatalf("CreateObject() failed: %v", err)
	}

	// Every object is anchored under the System object immediately.
	if _, err := s.SystemMembership(ctx, "Generator", "Gen1"); err != nil {
		t.Errorf("SystemMembership() failed: %v", err)
	}
}

func TestCreateObject_WithOptions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateObject(ctx, "Generator", "Gen1",
		WithCategory("Thermal"), WithDescription("coal unit"))
	if err != nil {
		t.Fatalf("CreateObject() failed: %v", err)
	}

	obj, err := s.GetObject(ctx, "Generator", "Gen1")
	if err != nil {
		t.Fatalf("GetObject() failed: %v", err)
	}
	if obj.Category != "Thermal" {
		t.Errorf("category = %q, want Thermal", obj.Category)
	}
	if obj.Description != "coal unit" {
		t.Errorf("description = %q, want %q", obj.Description, "coal unit")
	}
}

func TestCreateObject_DuplicateName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateObject(ctx, "Generator", "Gen1"); err != nil {
		t.Fatalf("CreateObject() failed: %v", err)
	}
	_, err := s.CreateObject(ctx, "Generator", "Gen1")
	if !IsConflict(err) {
		t.Errorf("duplicate CreateObject() = %v, want conflict", err)
	}
}

func TestCreateObject_DuplicateNameCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateObject(ctx, "Generator", "Gen1"); err != nil {
		t.Fatalf("CreateObject() failed: %v", err)
	}
	_, err := s.CreateObject(ctx, "Generator", "GEN1")
	if !IsConflict(err) {
		t.Errorf("case-variant CreateObject() = %v, want conflict", err)
	}
}

func TestCreateObject_SameNameDifferentClass(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateObject(ctx, "Generator", "Alpha"); err != nil {
		t.Fatalf("CreateObject(Generator) failed: %v", err)
	}
	// Names are only unique within a class.
	if _, err := s.CreateObject(ctx, "Fuel", "Alpha"); err != nil {
		t.Errorf("CreateObject(Fuel) failed: %v", err)
	}
}

func TestCreateObject_UnknownClass(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateObject(context.Background(), "Widget", "W1")
	if !IsSchemaViolation(err) {
		t.Errorf("CreateObject(unknown class) = %v, want schema violation", err)
	}
}

func TestCreateObject_EmptyName(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateObject(context.Background(), "Generator", "")
	if !IsSchemaViolation(err) {
		t.Errorf("CreateObject(empty name) = %v, want schema violation", err)
	}
}

func TestCreateObject_ClassNameCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateObject(ctx, "generator", "Gen1"); err != nil {
		t.Fatalf("CreateObject(lowercase class) failed: %v", err)
	}
	if _, err := s.FindObject(ctx, "GENERATOR", "Gen1"); err != nil {
		t.Errorf("FindObject(uppercase class) failed: %v", err)
	}
}

func TestRenameObject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateObject(ctx, "Generator", "Gen1")
	if err != nil {
		t.Fatalf("CreateObject() failed: %v", err)
	}
	if err := s.RenameObject(ctx, "Generator", "Gen1", "Gen2"); err != nil {
		t.Fatalf("RenameObject() failed: %v", err)
	}

	got, err := s.FindObject(ctx, "Generator", "Gen2")
	if err != nil {
		t.Fatalf("FindObject(new name) failed: %v", err)
	}
	if got != id {
		t.Errorf("renamed object id = %d, want %d", got, id)
	}
	if _, err := s.FindObject(ctx, "Generator", "Gen1"); !IsNotFound(err) {
		t.Errorf("FindObject(old name) = %v, want not found", err)
	}
}

func TestRenameObject_CaseOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateObject(ctx, "Generator", "gen1"); err != nil {
		t.Fatalf("CreateObject() failed: %v", err)
	}
	if err := s.RenameObject(ctx, "Generator", "gen1", "Gen1"); err != nil {
		t.Fatalf("case-only RenameObject() failed: %v", err)
	}

	obj, err := s.GetObject(ctx, "Generator", "Gen1")
	if err != nil {
		t.Fatalf("GetObject() failed: %v", err)
	}
	if obj.Name != "Gen1" {
		t.Errorf("name = %q, want Gen1", obj.Name)
	}
}

func TestRenameObject_TargetExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateObject(ctx, "Generator", "Gen1"); err != nil {
		t.Fatalf("CreateObject() failed: %v", err)
	}
	if _, err := s.CreateObject(ctx, "Generator", "Gen2"); err != nil {
		t.Fatalf("CreateObject() failed: %v", err)
	}
	err := s.RenameObject(ctx, "Generator", "Gen1", "Gen2")
	if !IsConflict(err) {
		t.Errorf("RenameObject(taken name) = %v, want conflict", err)
	}
}

func TestDeleteObject_Cascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateObject(ctx, "Generator", "Gen1"); err != nil {
		t.Fatalf("CreateObject() failed: %v", err)
	}
	m, err := s.SystemMembership(ctx, "Generator", "Gen1")
	if err != nil {
		t.Fatalf("SystemMembership() failed: %v", err)
	}
	if _, err := s.SetValue(ctx, m, "Max Capacity", 100); err != nil {
		t.Fatalf("SetValue() failed: %v", err)
	}

	if err := s.DeleteObject(ctx, "Generator", "Gen1"); err != nil {
		t.Fatalf("DeleteObject() failed: %v", err)
	}

	// Nothing referencing the object survives the delete.
	for _, q := range []string{
		"SELECT COUNT(*) FROM t_membership",
		"SELECT COUNT(*) FROM t_data",
	} {
		var count int
		if err := s.db.QueryRowContext(ctx, q).Scan(&count); err != nil {
			t.Fatalf("count query failed: %v", err)
		}
		if count != 0 {
			t.Errorf("%s = %d after delete, want 0", q, count)
		}
	}
}

func TestDeleteObject_NotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.DeleteObject(context.Background(), "Generator", "Ghost")
	if !IsNotFound(err) {
		t.Errorf("DeleteObject(missing) = %v, want not found", err)
	}
}

func TestObjectExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.ObjectExists(ctx, "Generator", "Gen1")
	if err != nil {
		t.Fatalf("ObjectExists() failed: %v", err)
	}
	if ok {
		t.Error("ObjectExists() = true before create")
	}

	if _, err := s.CreateObject(ctx, "Generator", "Gen1"); err != nil {
		t.Fatalf("CreateObject() failed: %v", err)
	}
	ok, err = s.ObjectExists(ctx, "Generator", "gen1")
	if err != nil {
		t.Fatalf("ObjectExists() failed: %v", err)
	}
	if !ok {
		t.Error("ObjectExists() = false after create (case-insensitive)")
	}
}

func TestListObjects(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"Gamma", "Alpha", "Beta"} {
		if _, err := s.CreateObject(ctx, "Generator", name); err != nil {
			t.Fatalf("CreateObject(%s) failed: %v", name, err)
		}
	}

	objects, err := s.ListObjects(ctx, "Generator")
	if err != nil {
		t.Fatalf("ListObjects() failed: %v", err)
	}
	if len(objects) != 3 {
		t.Fatalf("ListObjects() returned %d objects, want 3", len(objects))
	}
	want := []string{"Alpha", "Beta", "Gamma"}
	for i, obj := range objects {
		if obj.Name != want[i] {
			t.Errorf("objects[%d].Name = %q, want %q", i, obj.Name, want[i])
		}
	}
}

func TestListObjects_InCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateObject(ctx, "Generator", "Coal1", WithCategory("Thermal")); err != nil {
		t.Fatalf("CreateObject() failed: %v", err)
	}
	if _, err := s.CreateObject(ctx, "Generator", "Wind1", WithCategory("Renewable")); err != nil {
		t.Fatalf("CreateObject() failed: %v", err)
	}

	objects, err := s.ListObjects(ctx, "Generator", InCategory("Thermal"))
	if err != nil {
		t.Fatalf("ListObjects(InCategory) failed: %v", err)
	}
	if len(objects) != 1 || objects[0].Name != "Coal1" {
		t.Errorf("ListObjects(InCategory) = %v, want [Coal1]", objects)
	}
}

func TestListObjects_Empty(t *testing.T) {
	s := newTestStore(t)

	objects, err := s.ListObjects(context.Background(), "Generator")
	if err != nil {
		t.Fatalf("ListObjects() failed: %v", err)
	}
	if objects == nil {
		t.Error("ListObjects() returned nil, want empty slice")
	}
	if len(objects) != 0 {
		t.Errorf("ListObjects() returned %d objects, want 0", len(objects))
	}
}

func TestAddCategory_Ranks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.AddCategory(ctx, "Generator", "Thermal"); err != nil {
		t.Fatalf("AddCategory() failed: %v", err)
	}
	if _, err := s.AddCategory(ctx, "Generator", "Renewable"); err != nil {
		t.Fatalf("AddCategory() failed: %v", err)
	}

	categories, err := s.ListCategories(ctx, "Generator")
	if err != nil {
		t.Fatalf("ListCategories() failed: %v", err)
	}
	if len(categories) != 2 {
		t.Fatalf("ListCategories() returned %d, want 2", len(categories))
	}
	if categories[0].Name != "Thermal" || categories[0].Rank != 1 {
		t.Errorf("categories[0] = %+v, want Thermal rank 1", categories[0])
	}
	if categories[1].Name != "Renewable" || categories[1].Rank != 2 {
		t.Errorf("categories[1] = %+v, want Renewable rank 2", categories[1])
	}
}

func TestAddCategory_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.AddCategory(ctx, "Generator", "Thermal")
	if err != nil {
		t.Fatalf("AddCategory() failed: %v", err)
	}
	second, err := s.AddCategory(ctx, "Generator", "Thermal")
	if err != nil {
		t.Fatalf("repeat AddCategory() failed: %v", err)
	}
	if first != second {
		t.Errorf("repeat AddCategory() id = %d, want %d", second, first)
	}
}

func TestGetObject_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetObject(context.Background(), "Generator", "Ghost")
	if !IsNotFound(err) {
		t.Errorf("GetObject(missing) = %v, want not found", err)
	}

	var se *Error
	if !errors.As(err, &se) {
		t.Fatal("error is not a store Error")
	}
	if se.Class != "Generator" || se.Object != "Ghost" {
		t.Errorf("error fields = (%q, %q), want (Generator, Ghost)", se.Class, se.Object)
	}
}
