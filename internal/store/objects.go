package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fern-energy/gridbase/internal/schema"
)

// Object is a named entity row together with its class and category names.
type Object struct {
	ID          int64
	Class       string
	Name        string
	Category    string
	Description string
	GUID        string
}

// ObjectOption adjusts object creation.
type ObjectOption func(*objectSettings)

type objectSettings struct {
	category    string
	description string
}

// WithCategory places the object in the named category. The category is
// created on first use.
func WithCategory(name string) ObjectOption {
	return func(o *objectSettings) {
		o.category = name
	}
}

// WithDescription attaches a free-text description to the object.
func WithDescription(text string) ObjectOption {
	return func(o *objectSettings) {
		o.description = text
	}
}

// CreateObject adds a named object of the given class and anchors it under
// the System object through the class's default collection. Names are
// unique within a class and compared case-insensitively. Returns the new
// object's id.
func (s *Store) CreateObject(ctx context.Context, class, name string, opts ...ObjectOption) (int64, error) {
	cls, err := s.classNamed(class)
	if err != nil {
		return 0, err
	}
	var settings objectSettings
	for _, opt := range opts {
		opt(&settings)
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() // No-op if committed

	id, err := s.createObjectTx(ctx, tx, cls, name, settings)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create object: %w", err)
	}
	return id, nil
}

// createObjectTx inserts the object row and its membership under the
// System object. The caller owns the transaction.
func (s *Store) createObjectTx(ctx context.Context, tx *sql.Tx, cls *schema.Class, name string, settings objectSettings) (int64, error) {
	if name == "" {
		return 0, &Error{Code: ErrCodeSchemaViolation, Message: "object name is empty", Class: cls.Name}
	}

	exists, err := s.objectExists(ctx, tx, cls, name)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, NewConflictError(cls.Name, name)
	}

	category := settings.category
	if category == "" {
		category = DefaultCategoryName
	}
	categoryID, err := s.ensureCategoryTx(ctx, tx, cls, category)
	if err != nil {
		return 0, err
	}

	var desc any
	if settings.description != "" {
		desc = settings.description
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO t_object (class_id, name, category_id, description, GUID)
		VALUES (?, ?, ?, ?, ?)
	`, cls.ID, name, categoryID, desc, uuid.NewString())
	if err != nil {
		return 0, fmt.Errorf("insert object: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert object: %w", err)
	}

	if err := s.linkSystemTx(ctx, tx, cls, id); err != nil {
		return 0, err
	}
	return id, nil
}

// linkSystemTx creates the membership anchoring a new object under the
// System object via the class's default collection.
func (s *Store) linkSystemTx(ctx context.Context, tx *sql.Tx, cls *schema.Class, objectID int64) error {
	coll, ok := s.cat.DefaultCollection(cls)
	if !ok {
		return &Error{Code: ErrCodeSchemaViolation, Message: "class has no collection under System", Class: cls.Name}
	}
	systemID, err := s.systemObjectID(ctx, tx)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO t_membership
		(parent_class_id, parent_object_id, collection_id, child_class_id, child_object_id)
		VALUES (?, ?, ?, ?, ?)
	`, s.cat.SystemClass().ID, systemID, coll.ID, cls.ID, objectID)
	if err != nil {
		return fmt.Errorf("insert system membership: %w", err)
	}
	return nil
}

// RenameObject changes an object's name. Renaming that only changes case
// is allowed; any other collision with an existing name is a conflict.
func (s *Store) RenameObject(ctx context.Context, class, oldName, newName string) error {
	cls, err := s.classNamed(class)
	if err != nil {
		return err
	}
	if newName == "" {
		return &Error{Code: ErrCodeSchemaViolation, Message: "object name is empty", Class: cls.Name}
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	id, err := s.objectID(ctx, tx, cls, oldName)
	if err != nil {
		return err
	}
	if taken, err := s.objectIDMaybe(ctx, tx, cls, newName); err != nil {
		return err
	} else if taken != 0 && taken != id {
		return NewConflictError(cls.Name, newName)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE t_object SET name = ? WHERE object_id = ?`, newName, id,
	); err != nil {
		return fmt.Errorf("rename object: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rename object: %w", err)
	}
	return nil
}

// DeleteObject removes an object and everything reachable from it:
// memberships on either side, their data rows, and all band, date, text,
// memo, and tag rows hanging off those.
func (s *Store) DeleteObject(ctx context.Context, class, name string) error {
	cls, err := s.classNamed(class)
	if err != nil {
		return err
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	id, err := s.objectID(ctx, tx, cls, name)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM t_object WHERE object_id = ?`, id); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete object: %w", err)
	}
	return nil
}

// FindObject returns the id of the named object.
func (s *Store) FindObject(ctx context.Context, class, name string) (int64, error) {
	cls, err := s.classNamed(class)
	if err != nil {
		return 0, err
	}
	return s.objectID(ctx, s.db, cls, name)
}

// ObjectExists reports whether the named object exists.
func (s *Store) ObjectExists(ctx context.Context, class, name string) (bool, error) {
	cls, err := s.classNamed(class)
	if err != nil {
		return false, err
	}
	return s.objectExists(ctx, s.db, cls, name)
}

// GetObject returns the full object row including category and description.
func (s *Store) GetObject(ctx context.Context, class, name string) (Object, error) {
	cls, err := s.classNamed(class)
	if err != nil {
		return Object{}, err
	}

	obj := Object{Class: cls.Name}
	err = s.db.QueryRowContext(ctx, `
		SELECT o.object_id, o.name, COALESCE(c.name, ''), COALESCE(o.description, ''), COALESCE(o.GUID, '')
		FROM t_object o
		LEFT JOIN t_category c ON c.category_id = o.category_id
		WHERE o.class_id = ? AND o.name = ?
	`, cls.ID, name).Scan(&obj.ID, &obj.Name, &obj.Category, &obj.Description, &obj.GUID)
	if errors.Is(err, sql.ErrNoRows) {
		return Object{}, NewNotFoundError(cls.Name, name)
	}
	if err != nil {
		return Object{}, fmt.Errorf("get object: %w", err)
	}
	return obj, nil
}

// ListOption adjusts object listing.
type ListOption func(*listSettings)

type listSettings struct {
	category string
}

// InCategory restricts the listing to objects in the named category.
func InCategory(name string) ListOption {
	return func(l *listSettings) {
		l.category = name
	}
}

// ListObjects returns all objects of a class ordered by name. Returns an
// empty slice, not nil, when the class has no objects.
func (s *Store) ListObjects(ctx context.Context, class string, opts ...ListOption) ([]Object, error) {
	cls, err := s.classNamed(class)
	if err != nil {
		return nil, err
	}
	var settings listSettings
	for _, opt := range opts {
		opt(&settings)
	}

	query := `
		SELECT o.object_id, o.name, COALESCE(c.name, ''), COALESCE(o.description, ''), COALESCE(o.GUID, '')
		FROM t_object o
		LEFT JOIN t_category c ON c.category_id = o.category_id
		WHERE o.class_id = ?
	`
	args := []any{cls.ID}
	if settings.category != "" {
		query += ` AND c.name = ?`
		args = append(args, settings.category)
	}
	query += ` ORDER BY o.name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	defer rows.Close()

	objects := []Object{}
	for rows.Next() {
		obj := Object{Class: cls.Name}
		if err := rows.Scan(&obj.ID, &obj.Name, &obj.Category, &obj.Description, &obj.GUID); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	return objects, nil
}

// classNamed resolves a class name against the catalog.
func (s *Store) classNamed(name string) (*schema.Class, error) {
	cls, ok := s.cat.ClassByName(name)
	if !ok {
		return nil, &Error{Code: ErrCodeSchemaViolation, Message: "class is not declared in the catalog", Class: name}
	}
	return cls, nil
}

// objectID looks up an object id, returning a not-found error when the
// object doesn't exist.
func (s *Store) objectID(ctx context.Context, q dbtx, cls *schema.Class, name string) (int64, error) {
	id, err := s.objectIDMaybe(ctx, q, cls, name)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, NewNotFoundError(cls.Name, name)
	}
	return id, nil
}

// objectIDMaybe looks up an object id, returning 0 when the object
// doesn't exist.
func (s *Store) objectIDMaybe(ctx context.Context, q dbtx, cls *schema.Class, name string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT object_id FROM t_object WHERE class_id = ? AND name = ?`,
		cls.ID, name,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lookup object: %w", err)
	}
	return id, nil
}

func (s *Store) objectExists(ctx context.Context, q dbtx, cls *schema.Class, name string) (bool, error) {
	id, err := s.objectIDMaybe(ctx, q, cls, name)
	if err != nil {
		return false, err
	}
	return id != 0, nil
}

// systemObjectID finds the root System object.
func (s *Store) systemObjectID(ctx context.Context, q dbtx) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT object_id FROM t_object WHERE class_id = ? AND name = ?`,
		s.cat.SystemClass().ID, schema.SystemObjectName,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("database not initialized (no System object)")
	}
	if err != nil {
		return 0, fmt.Errorf("lookup system object: %w", err)
	}
	return id, nil
}
