package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fern-energy/gridbase/internal/schema"
)

// AttributeValue is a per-object scalar keyed by attribute name.
type AttributeValue struct {
	Name  string
	Value float64
}

// SetAttribute writes a per-object scalar. The attribute must be declared
// for the object's class; writing again replaces the value. Attributes
// carry no bands, scenarios, or validity windows.
func (s *Store) SetAttribute(ctx context.Context, class, object, attribute string, value float64) error {
	cls, err := s.classNamed(class)
	if err != nil {
		return err
	}
	attr, err := s.attributeNamed(cls, attribute)
	if err != nil {
		return err
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	objectID, err := s.objectID(ctx, tx, cls, object)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO t_attribute_data (object_id, attribute_id, value)
		VALUES (?, ?, ?)
		ON CONFLICT(object_id, attribute_id) DO UPDATE SET value = excluded.value
	`, objectID, attr.ID, value); err != nil {
		return fmt.Errorf("set attribute: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set attribute: %w", err)
	}
	return nil
}

// GetAttribute reads a per-object scalar.
func (s *Store) GetAttribute(ctx context.Context, class, object, attribute string) (float64, error) {
	cls, err := s.classNamed(class)
	if err != nil {
		return 0, err
	}
	attr, err := s.attributeNamed(cls, attribute)
	if err != nil {
		return 0, err
	}
	objectID, err := s.objectID(ctx, s.db, cls, object)
	if err != nil {
		return 0, err
	}

	var value float64
	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(value, 0) FROM t_attribute_data WHERE object_id = ? AND attribute_id = ?`,
		objectID, attr.ID,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &Error{
			Code:    ErrCodeNotFound,
			Message: fmt.Sprintf("attribute %q has no value", attr.Name),
			Class:   cls.Name,
			Object:  object,
		}
	}
	if err != nil {
		return 0, fmt.Errorf("get attribute: %w", err)
	}
	return value, nil
}

// DeleteAttribute removes a per-object scalar.
func (s *Store) DeleteAttribute(ctx context.Context, class, object, attribute string) error {
	cls, err := s.classNamed(class)
	if err != nil {
		return err
	}
	attr, err := s.attributeNamed(cls, attribute)
	if err != nil {
		return err
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	objectID, err := s.objectID(ctx, tx, cls, object)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM t_attribute_data WHERE object_id = ? AND attribute_id = ?`,
		objectID, attr.ID,
	)
	if err != nil {
		return fmt.Errorf("delete attribute: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete attribute: %w", err)
	}
	if n == 0 {
		return &Error{
			Code:    ErrCodeNotFound,
			Message: fmt.Sprintf("attribute %q has no value", attr.Name),
			Class:   cls.Name,
			Object:  object,
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete attribute: %w", err)
	}
	return nil
}

// ListAttributes returns an object's attribute values ordered by name.
// Returns an empty slice, not nil, when the object has none.
func (s *Store) ListAttributes(ctx context.Context, class, object string) ([]AttributeValue, error) {
	cls, err := s.classNamed(class)
	if err != nil {
		return nil, err
	}
	objectID, err := s.objectID(ctx, s.db, cls, object)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.name, COALESCE(ad.value, 0)
		FROM t_attribute_data ad
		JOIN t_attribute a ON a.attribute_id = ad.attribute_id
		WHERE ad.object_id = ?
		ORDER BY a.name
	`, objectID)
	if err != nil {
		return nil, fmt.Errorf("list attributes: %w", err)
	}
	defer rows.Close()

	values := []AttributeValue{}
	for rows.Next() {
		var v AttributeValue
		if err := rows.Scan(&v.Name, &v.Value); err != nil {
			return nil, fmt.Errorf("scan attribute: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list attributes: %w", err)
	}
	return values, nil
}

// attributeNamed resolves an attribute declared for a class.
func (s *Store) attributeNamed(cls *schema.Class, name string) (*schema.Attribute, error) {
	a, ok := s.cat.AttributeByName(cls, name)
	if !ok {
		return nil, &Error{
			Code:    ErrCodeSchemaViolation,
			Message: fmt.Sprintf("attribute %q is not declared for class (valid: %v)", name, s.cat.AttributeNames(cls)),
			Class:   cls.Name,
		}
	}
	return a, nil
}
