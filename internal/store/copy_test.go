package store

import (
	"context"
	"testing"
)

func TestCopyObject_Basic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	srcID, err := s.CreateObject(ctx, "Generator", "Gen1",
		WithCategory("Thermal"), WithDescription("coal unit"))
	if err != nil {
		t.Fatalf("CreateObject() failed: %v", err)
	}
	newID, err := s.CopyObject(ctx, "Generator", "Gen1", "Gen2")
	if err != nil {
		t.Fatalf("CopyObject() failed: %v", err)
	}
	if newID == srcID {
		t.Error("CopyObject() reused the source id")
	}

	src, err := s.GetObject(ctx, "Generator", "Gen1")
	if err != nil {
		t.Fatalf("GetObject(Gen1) failed: %v", err)
	}
	dup, err := s.GetObject(ctx, "Generator", "Gen2")
	if err != nil {
		t.Fatalf("GetObject(Gen2) failed: %v", err)
	}
	if dup.Category != "Thermal" || dup.Description != "coal unit" {
		t.Errorf("copy = %+v, want source category and description", dup)
	}
	if dup.GUID == "" || dup.GUID == src.GUID {
		t.Errorf("copy GUID = %q, want fresh GUID distinct from %q", dup.GUID, src.GUID)
	}
}

func TestCopyObject_CopiesMemberships(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateObject(ctx, "Generator", "Gen1"); err != nil {
		t.Fatalf("CreateObject() failed: %v", err)
	}
	if _, err := s.CreateObject(ctx, "Fuel", "Coal"); err != nil {
		t.Fatalf("CreateObject() failed: %v", err)
	}
	if _, err := s.CreateMembership(ctx, "Generator", "Gen1", "Fuels", "Fuel", "Coal"); err != nil {
		t.Fatalf("CreateMembership() failed: %v", err)
	}

	if _, err := s.CopyObject(ctx, "Generator", "Gen1", "Gen2"); err != nil {
		t.Fatalf("CopyObject() failed: %v", err)
	}

	// The copy is anchored under System and linked to the same fuel.
	if _, err := s.SystemMembership(ctx, "Generator", "Gen2"); err != nil {
		t.Errorf("copy has no System membership: %v", err)
	}
	children, err := s.ListChildren(ctx, "Generator", "Gen2", "Fuels")
	if err != nil {
		t.Fatalf("ListChildren() failed: %v", err)
	}
	if len(children) != 1 || children[0].Name != "Coal" {
		t.Errorf("copy children = %v, want [Coal]", children)
	}
}

func TestCopyObject_CopiesChildSideMemberships(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateObject(ctx, "Generator", "Gen1"); err != nil {
		t.Fatalf("CreateObject() failed: %v", err)
	}
	if _, err := s.CreateObject(ctx, "Node", "Bus1"); err != nil {
		t.Fatalf("CreateObject() failed: %v", err)
	}
	if _, err := s.CreateMembership(ctx, "Generator", "Gen1", "Nodes", "Node", "Bus1"); err != nil {
		t.Fatalf("CreateMembership() failed: %v", err)
	}

	// Copy the node: the generator edge points at the copy too.
	if _, err := s.CopyObject(ctx, "Node", "Bus1", "Bus2"); err != nil {
		t.Fatalf("CopyObject() failed: %v", err)
	}
	parents, err := s.ListParents(ctx, "Node", "Bus2", "Nodes")
	if err != nil {
		t.Fatalf("ListParents() failed: %v", err)
	}
	if len(parents) != 1 || parents[0].Name != "Gen1" {
		t.Errorf("copy parents = %v, want [Gen1]", parents)
	}
}

func TestCopyObject_CopiesData(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := genMembership(t, s, "Gen1")

	if _, err := s.SetValue(ctx, m, "Heat Rate Incr", 8.0); err != nil {
		t.Fatalf("SetValue(band 1) failed: %v", err)
	}
	if _, err := s.SetValue(ctx, m, "Heat Rate Incr", 9.5, WithBand(2)); err != nil {
		t.Fatalf("SetValue(band 2) failed: %v", err)
	}
	if _, err := s.SetValue(ctx, m, "Heat Rate Incr", 7.0, WithScenario("High Demand")); err != nil {
		t.Fatalf("SetValue(scenario) failed: %v", err)
	}

	if _, err := s.CopyObject(ctx, "Generator", "Gen1", "Gen2"); err != nil {
		t.Fatalf("CopyObject() failed: %v", err)
	}

	copyM, err := s.SystemMembership(ctx, "Generator", "Gen2")
	if err != nil {
		t.Fatalf("SystemMembership(Gen2) failed: %v", err)
	}
	rows, err := s.DataRows(ctx, copyM, "Heat Rate Incr")
	if err != nil {
		t.Fatalf("DataRows() failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("copy DataRows() returned %d rows, want 3", len(rows))
	}
	if rows[0].Value != 8.0 || rows[0].Band != 1 {
		t.Errorf("rows[0] = %+v, want band 1 value 8", rows[0])
	}
	if rows[1].Value != 9.5 || rows[1].Band != 2 {
		t.Errorf("rows[1] = %+v, want band 2 value 9.5", rows[1])
	}
	if rows[2].Value != 7.0 || rows[2].Scenario != "High Demand" {
		t.Errorf("rows[2] = %+v, want scenario High Demand value 7", rows[2])
	}
}

func TestCopyObject_CopiesPayloads(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := genMembership(t, s, "Gen1")

	if _, err := s.SetValue(ctx, m, "Max Capacity", 400,
		WithDateFrom("2030-01-01"), WithText("Data File", "cap.csv"), WithMemo("note"),
	); err != nil {
		t.Fatalf("SetValue() failed: %v", err)
	}

	if _, err := s.CopyObject(ctx, "Generator", "Gen1", "Gen2"); err != nil {
		t.Fatalf("CopyObject() failed: %v", err)
	}

	copyM, err := s.SystemMembership(ctx, "Generator", "Gen2")
	if err != nil {
		t.Fatalf("SystemMembership(Gen2) failed: %v", err)
	}
	rows, err := s.DataRows(ctx, copyM, "Max Capacity")
	if err != nil {
		t.Fatalf("DataRows() failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("copy DataRows() returned %d rows, want 1", len(rows))
	}

	for _, q := range []string{
		`SELECT COUNT(*) FROM t_date_from WHERE data_id = ?`,
		`SELECT COUNT(*) FROM t_text WHERE data_id = ?`,
		`SELECT COUNT(*) FROM t_memo_data WHERE data_id = ?`,
	} {
		var count int
		if err := s.db.QueryRowContext(ctx, q, rows[0].ID).Scan(&count); err != nil {
			t.Fatalf("payload query failed: %v", err)
		}
		if count != 1 {
			t.Errorf("%s = %d, want 1", q, count)
		}
	}
}

func TestCopyObject_SourceUnchanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := genMembership(t, s, "Gen1")

	if _, err := s.SetValue(ctx, m, "Max Capacity", 400); err != nil {
		t.Fatalf("SetValue() failed: %v", err)
	}
	if _, err := s.CopyObject(ctx, "Generator", "Gen1", "Gen2"); err != nil {
		t.Fatalf("CopyObject() failed: %v", err)
	}

	copyM, err := s.SystemMembership(ctx, "Generator", "Gen2")
	if err != nil {
		t.Fatalf("SystemMembership(Gen2) failed: %v", err)
	}
	if _, err := s.SetValue(ctx, copyM, "Max Capacity", 999); err != nil {
		t.Fatalf("SetValue(copy) failed: %v", err)
	}

	rows, err := s.DataRows(ctx, m, "Max Capacity")
	if err != nil {
		t.Fatalf("DataRows(source) failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Value != 400 {
		t.Errorf("source rows = %+v, want one row of 400", rows)
	}
}

func TestCopyObject_NameTaken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateObject(ctx, "Generator", "Gen1"); err != nil {
		t.Fatalf("CreateObject() failed: %v", err)
	}
	if _, err := s.CreateObject(ctx, "Generator", "Gen2"); err != nil {
		t.Fatalf("CreateObject() failed: %v", err)
	}
	_, err := s.CopyObject(ctx, "Generator", "Gen1", "Gen2")
	if !IsConflict(err) {
		t.Errorf("CopyObject(taken name) = %v, want conflict", err)
	}
}

func TestCopyObject_MissingSource(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CopyObject(context.Background(), "Generator", "Ghost", "Gen2")
	if !IsNotFound(err) {
		t.Errorf("CopyObject(missing source) = %v, want not found", err)
	}
}
