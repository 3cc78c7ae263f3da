package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fern-energy/gridbase/internal/schema"
)

// Config elements written by Init.
const (
	configVersion = "Version"
)

// actionSymbols are the tag action operators seeded into t_action.
// "=" assigns, the others modify the base value when a tagged row is
// applied by a downstream consumer.
var actionSymbols = []string{"=", "×", "÷", "+", "-", "?"}

// defaultActionSymbol is the action recorded for tags created without an
// explicit operator.
const defaultActionSymbol = "="

// DefaultCategoryName is the category objects land in when none is given.
const DefaultCategoryName = "-"

// Init seeds an empty database with the catalog: units, classes,
// collections, properties, attributes, tag actions, the schema version in
// t_config, and the root System object. Returns a conflict error if the
// database has already been initialized.
func (s *Store) Init(ctx context.Context) error {
	initialized, err := s.Initialized(ctx)
	if err != nil {
		return err
	}
	if initialized {
		return &Error{Code: ErrCodeConflict, Message: "database already initialized"}
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback() // No-op if committed

	if err := seedCatalog(ctx, tx, s.cat); err != nil {
		return err
	}
	if err := seedSystemObject(ctx, tx, s.cat); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO t_config (element, value) VALUES (?, ?)`,
		configVersion, s.cat.Version,
	)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit init: %w", err)
	}
	return nil
}

// Initialized reports whether Init has run against this database.
func (s *Store) Initialized(ctx context.Context) (bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM t_config WHERE element = ?`, configVersion,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read config: %w", err)
	}
	return true, nil
}

// seedCatalog writes the compiled catalog into the t_* catalog tables.
func seedCatalog(ctx context.Context, tx *sql.Tx, cat *schema.Catalog) error {
	for _, u := range cat.Units {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO t_unit (unit_id, value) VALUES (?, ?)`,
			u.ID, u.Value,
		)
		if err != nil {
			return fmt.Errorf("seed unit %q: %w", u.Value, err)
		}
	}

	for _, c := range cat.Classes {
		var parent any
		if c.ParentID != 0 {
			parent = c.ParentID
		}
		var desc any
		if c.Description != "" {
			desc = c.Description
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO t_class (class_id, name, parent_class_id, description) VALUES (?, ?, ?, ?)`,
			c.ID, c.Name, parent, desc,
		)
		if err != nil {
			return fmt.Errorf("seed class %q: %w", c.Name, err)
		}
	}

	for _, coll := range cat.Collections {
		var complement any
		if coll.Complement != "" {
			complement = coll.Complement
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO t_collection
			(collection_id, parent_class_id, child_class_id, name, min_count, max_count, complement_name)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			coll.ID, coll.ParentClassID, coll.ChildClassID, coll.Name,
			coll.MinCount, coll.MaxCount, complement,
		)
		if err != nil {
			return fmt.Errorf("seed collection %q: %w", coll.Name, err)
		}
	}

	for _, p := range cat.Properties {
		var unit any
		if p.UnitID != 0 {
			unit = p.UnitID
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO t_property
			(property_id, collection_id, name, unit_id, default_value, is_multi_band, is_dynamic, is_enabled)
			VALUES (?, ?, ?, ?, ?, ?, 0, 0)
		`,
			p.ID, p.CollectionID, p.Name, unit, p.Default, boolInt(p.IsMultiBand),
		)
		if err != nil {
			return fmt.Errorf("seed property %q: %w", p.Name, err)
		}
	}

	for _, a := range cat.Attributes {
		var desc any
		if a.Description != "" {
			desc = a.Description
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO t_attribute (attribute_id, class_id, name, description) VALUES (?, ?, ?, ?)`,
			a.ID, a.ClassID, a.Name, desc,
		)
		if err != nil {
			return fmt.Errorf("seed attribute %q: %w", a.Name, err)
		}
	}

	for i, symbol := range actionSymbols {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO t_action (action_id, action_symbol) VALUES (?, ?)`,
			i+1, symbol,
		)
		if err != nil {
			return fmt.Errorf("seed action %q: %w", symbol, err)
		}
	}

	return nil
}

// seedSystemObject creates the root System object every membership chain
// terminates at. The System object belongs to the System class and the
// default category.
func seedSystemObject(ctx context.Context, tx *sql.Tx, cat *schema.Catalog) error {
	system := cat.SystemClass()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO t_category (class_id, rank, name) VALUES (?, 1, ?)`,
		system.ID, DefaultCategoryName,
	)
	if err != nil {
		return fmt.Errorf("seed system category: %w", err)
	}
	categoryID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("seed system category: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO t_object (class_id, name, category_id, description, GUID)
		VALUES (?, ?, ?, ?, ?)
	`,
		system.ID, schema.SystemObjectName, categoryID, "The System object", uuid.NewString(),
	)
	if err != nil {
		return fmt.Errorf("seed system object: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
