package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// CopyObject duplicates an object under a new name: the object row gets a
// fresh GUID, every membership on either side is cloned, and all data
// rows of the cloned memberships are copied along with their band, date,
// text, memo, and tag rows. Scenario tags are carried over, so the copy
// sees the same overlays the source did. Returns the new object's id.
func (s *Store) CopyObject(ctx context.Context, class, srcName, newName string) (int64, error) {
	cls, err := s.classNamed(class)
	if err != nil {
		return 0, err
	}
	if newName == "" {
		return 0, &Error{Code: ErrCodeSchemaViolation, Message: "object name is empty", Class: cls.Name}
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() // No-op if committed

	srcID, err := s.objectID(ctx, tx, cls, srcName)
	if err != nil {
		return 0, err
	}
	if exists, err := s.objectExists(ctx, tx, cls, newName); err != nil {
		return 0, err
	} else if exists {
		return 0, NewConflictError(cls.Name, newName)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO t_object (class_id, name, category_id, description, GUID)
		SELECT class_id, ?, category_id, description, ? FROM t_object WHERE object_id = ?
	`, newName, uuid.NewString(), srcID)
	if err != nil {
		return 0, fmt.Errorf("copy object row: %w", err)
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("copy object row: %w", err)
	}

	mapping, err := s.copyMembershipsTx(ctx, tx, srcID, newID)
	if err != nil {
		return 0, err
	}
	for oldMembership, newMembership := range mapping {
		if err := s.copyDataRowsTx(ctx, tx, oldMembership, newMembership); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit copy object: %w", err)
	}
	return newID, nil
}

// copyMembershipsTx clones every membership the source object sits in,
// substituting the new object on whichever side the source occupied.
// Returns old membership id -> new membership id. Triples that already
// exist (the copy was pre-linked somehow) are skipped.
func (s *Store) copyMembershipsTx(ctx context.Context, tx *sql.Tx, srcID, newID int64) (map[int64]int64, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT membership_id, parent_class_id, parent_object_id, collection_id, child_class_id, child_object_id
		FROM t_membership
		WHERE parent_object_id = ? OR child_object_id = ?
		ORDER BY membership_id
	`, srcID, srcID)
	if err != nil {
		return nil, fmt.Errorf("list source memberships: %w", err)
	}
	defer rows.Close()

	type edge struct {
		id          int64
		parentClass int64
		parent      int64
		coll        int64
		childClass  int64
		child       int64
	}
	edges := []edge{}
	for rows.Next() {
		var e edge
		if err := rows.Scan(&e.id, &e.parentClass, &e.parent, &e.coll, &e.childClass, &e.child); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list source memberships: %w", err)
	}

	mapping := make(map[int64]int64, len(edges))
	for _, e := range edges {
		parent, child := e.parent, e.child
		if parent == srcID {
			parent = newID
		}
		if child == srcID {
			child = newID
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO t_membership
			(parent_class_id, parent_object_id, collection_id, child_class_id, child_object_id)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, e.parentClass, parent, e.coll, e.childClass, child)
		if err != nil {
			return nil, fmt.Errorf("copy membership: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("copy membership: %w", err)
		}
		if n == 0 {
			continue
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("copy membership: %w", err)
		}
		mapping[e.id] = id
	}
	return mapping, nil
}

// copyDataRowsTx clones the data rows of one membership onto another,
// carrying each row's band, date, text, memo, and tag rows with it.
func (s *Store) copyDataRowsTx(ctx context.Context, tx *sql.Tx, oldMembership, newMembership int64) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT data_id, property_id, COALESCE(value, 0)
		FROM t_data WHERE membership_id = ? ORDER BY data_id
	`, oldMembership)
	if err != nil {
		return fmt.Errorf("list source data rows: %w", err)
	}

	type datum struct {
		id       int64
		property int64
		value    float64
	}
	data := []datum{}
	for rows.Next() {
		var d datum
		if err := rows.Scan(&d.id, &d.property, &d.value); err != nil {
			rows.Close()
			return fmt.Errorf("scan data row: %w", err)
		}
		data = append(data, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("list source data rows: %w", err)
	}
	rows.Close()

	for _, d := range data {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO t_data (membership_id, property_id, value) VALUES (?, ?, ?)`,
			newMembership, d.property, d.value,
		)
		if err != nil {
			return fmt.Errorf("copy data row: %w", err)
		}
		newDataID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("copy data row: %w", err)
		}
		if err := copyPayloadRowsTx(ctx, tx, d.id, newDataID); err != nil {
			return err
		}
	}
	return nil
}

// copyPayloadRowsTx clones the rows hanging off one data row onto another.
func copyPayloadRowsTx(ctx context.Context, tx *sql.Tx, oldDataID, newDataID int64) error {
	copies := []struct {
		name string
		stmt string
	}{
		{"band", `INSERT INTO t_band (data_id, band_id, state) SELECT ?, band_id, state FROM t_band WHERE data_id = ?`},
		{"date_from", `INSERT INTO t_date_from (data_id, date) SELECT ?, date FROM t_date_from WHERE data_id = ?`},
		{"date_to", `INSERT INTO t_date_to (data_id, date) SELECT ?, date FROM t_date_to WHERE data_id = ?`},
		{"text", `INSERT INTO t_text (data_id, class_id, value) SELECT ?, class_id, value FROM t_text WHERE data_id = ?`},
		{"memo", `INSERT INTO t_memo_data (data_id, value) SELECT ?, value FROM t_memo_data WHERE data_id = ?`},
		{"tag", `INSERT INTO t_tag (data_id, object_id, action_id) SELECT ?, object_id, action_id FROM t_tag WHERE data_id = ?`},
	}
	for _, c := range copies {
		if _, err := tx.ExecContext(ctx, c.stmt, newDataID, oldDataID); err != nil {
			return fmt.Errorf("copy %s rows: %w", c.name, err)
		}
	}
	return nil
}
