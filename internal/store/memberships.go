package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fern-energy/gridbase/internal/schema"
)

// Membership is a typed edge between a parent and child object.
type Membership struct {
	ID           int64
	ParentClass  string
	ParentObject string
	Collection   string
	ChildClass   string
	ChildObject  string
}

// CreateMembership links two existing objects through a collection the
// catalog declares for their classes. The (parent, collection, child)
// triple is unique; linking the same pair twice is a conflict. The
// relationship graph is free-form and may contain cycles.
func (s *Store) CreateMembership(ctx context.Context, parentClass, parentObject, collection, childClass, childObject string) (int64, error) {
	parentCls, err := s.classNamed(parentClass)
	if err != nil {
		return 0, err
	}
	childCls, err := s.classNamed(childClass)
	if err != nil {
		return 0, err
	}
	coll, err := s.collectionNamed(parentCls, childCls, collection)
	if err != nil {
		return 0, err
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	parentID, err := s.objectID(ctx, tx, parentCls, parentObject)
	if err != nil {
		return 0, err
	}
	childID, err := s.objectID(ctx, tx, childCls, childObject)
	if err != nil {
		return 0, err
	}

	id, err := s.createMembershipTx(ctx, tx, coll, parentID, childID)
	if err != nil {
		var se *Error
		if errors.As(err, &se) && se.Code == ErrCodeConflict {
			se.Class = childCls.Name
			se.Object = childObject
		}
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create membership: %w", err)
	}
	return id, nil
}

// createMembershipTx inserts the membership row and returns its id. A
// duplicate triple is a conflict.
func (s *Store) createMembershipTx(ctx context.Context, tx *sql.Tx, coll *schema.Collection, parentID, childID int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO t_membership
		(parent_class_id, parent_object_id, collection_id, child_class_id, child_object_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, coll.ParentClassID, parentID, coll.ID, coll.ChildClassID, childID)
	if err != nil {
		return 0, fmt.Errorf("insert membership: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("insert membership: %w", err)
	}
	if n == 0 {
		return 0, &Error{Code: ErrCodeConflict, Message: "membership already exists", Collection: coll.Name}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert membership: %w", err)
	}
	return id, nil
}

// FindMembership returns the id of an existing membership.
func (s *Store) FindMembership(ctx context.Context, parentClass, parentObject, collection, childClass, childObject string) (int64, error) {
	parentCls, err := s.classNamed(parentClass)
	if err != nil {
		return 0, err
	}
	childCls, err := s.classNamed(childClass)
	if err != nil {
		return 0, err
	}
	coll, err := s.collectionNamed(parentCls, childCls, collection)
	if err != nil {
		return 0, err
	}
	parentID, err := s.objectID(ctx, s.db, parentCls, parentObject)
	if err != nil {
		return 0, err
	}
	childID, err := s.objectID(ctx, s.db, childCls, childObject)
	if err != nil {
		return 0, err
	}
	return s.membershipID(ctx, s.db, coll, parentID, childID, childObject)
}

// SystemMembership returns the id of the implicit membership anchoring an
// object under the System object. Most property data hangs off these.
func (s *Store) SystemMembership(ctx context.Context, class, object string) (int64, error) {
	cls, err := s.classNamed(class)
	if err != nil {
		return 0, err
	}
	coll, ok := s.cat.DefaultCollection(cls)
	if !ok {
		return 0, &Error{Code: ErrCodeSchemaViolation, Message: "class has no collection under System", Class: cls.Name}
	}
	objectID, err := s.objectID(ctx, s.db, cls, object)
	if err != nil {
		return 0, err
	}
	systemID, err := s.systemObjectID(ctx, s.db)
	if err != nil {
		return 0, err
	}
	return s.membershipID(ctx, s.db, coll, systemID, objectID, object)
}

func (s *Store) membershipID(ctx context.Context, q dbtx, coll *schema.Collection, parentID, childID int64, childName string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT membership_id FROM t_membership WHERE parent_object_id = ? AND collection_id = ? AND child_object_id = ?`,
		parentID, coll.ID, childID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &Error{Code: ErrCodeNotFound, Message: "membership does not exist", Collection: coll.Name, Object: childName}
	}
	if err != nil {
		return 0, fmt.Errorf("lookup membership: %w", err)
	}
	return id, nil
}

// ListChildren returns the child objects linked under a parent object.
// An empty collection name spans all of the parent's collections.
func (s *Store) ListChildren(ctx context.Context, parentClass, parentObject, collection string) ([]Object, error) {
	parentCls, err := s.classNamed(parentClass)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT o.object_id, cl.name, o.name, COALESCE(cat.name, ''), COALESCE(o.description, ''), COALESCE(o.GUID, '')
		FROM t_membership m
		JOIN t_object o ON o.object_id = m.child_object_id
		JOIN t_class cl ON cl.class_id = o.class_id
		LEFT JOIN t_category cat ON cat.category_id = o.category_id
		WHERE m.parent_object_id = ?
	`
	parentID, err := s.objectID(ctx, s.db, parentCls, parentObject)
	if err != nil {
		return nil, err
	}
	args := []any{parentID}

	if collection != "" {
		coll, ok := s.cat.CollectionFromParent(parentCls, collection)
		if !ok {
			return nil, &Error{Code: ErrCodeSchemaViolation, Message: "class has no such collection", Class: parentCls.Name, Collection: collection}
		}
		query += ` AND m.collection_id = ?`
		args = append(args, coll.ID)
	}
	query += ` ORDER BY o.name`

	return s.queryObjects(ctx, query, args...)
}

// ListParents returns the parent objects a child object is linked under.
// An empty collection name spans all collections, including the implicit
// System membership.
func (s *Store) ListParents(ctx context.Context, childClass, childObject, collection string) ([]Object, error) {
	childCls, err := s.classNamed(childClass)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT o.object_id, cl.name, o.name, COALESCE(cat.name, ''), COALESCE(o.description, ''), COALESCE(o.GUID, '')
		FROM t_membership m
		JOIN t_object o ON o.object_id = m.parent_object_id
		JOIN t_class cl ON cl.class_id = o.class_id
		LEFT JOIN t_category cat ON cat.category_id = o.category_id
		WHERE m.child_object_id = ?
	`
	childID, err := s.objectID(ctx, s.db, childCls, childObject)
	if err != nil {
		return nil, err
	}
	args := []any{childID}

	if collection != "" {
		coll, ok := s.cat.CollectionToChild(childCls, collection)
		if !ok {
			return nil, &Error{Code: ErrCodeSchemaViolation, Message: "class has no such collection", Class: childCls.Name, Collection: collection}
		}
		query += ` AND m.collection_id = ?`
		args = append(args, coll.ID)
	}
	query += ` ORDER BY o.name`

	return s.queryObjects(ctx, query, args...)
}

func (s *Store) queryObjects(ctx context.Context, query string, args ...any) ([]Object, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	defer rows.Close()

	objects := []Object{}
	for rows.Next() {
		var obj Object
		if err := rows.Scan(&obj.ID, &obj.Class, &obj.Name, &obj.Category, &obj.Description, &obj.GUID); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	return objects, nil
}

// MembershipOption adjusts membership listing.
type MembershipOption func(*membershipSettings)

type membershipSettings struct {
	includeSystem bool
}

// IncludeSystem includes memberships whose parent is the root System
// object. These are implementation plumbing and excluded by default.
func IncludeSystem() MembershipOption {
	return func(m *membershipSettings) {
		m.includeSystem = true
	}
}

// ListMemberships returns every membership an object participates in, on
// either side, ordered by id. Returns an empty slice, not nil, when the
// object has none.
func (s *Store) ListMemberships(ctx context.Context, class, object string, opts ...MembershipOption) ([]Membership, error) {
	cls, err := s.classNamed(class)
	if err != nil {
		return nil, err
	}
	var settings membershipSettings
	for _, opt := range opts {
		opt(&settings)
	}

	objectID, err := s.objectID(ctx, s.db, cls, object)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT m.membership_id, pc.name, po.name, c.name, cc.name, co.name
		FROM t_membership m
		JOIN t_class pc ON pc.class_id = m.parent_class_id
		JOIN t_object po ON po.object_id = m.parent_object_id
		JOIN t_collection c ON c.collection_id = m.collection_id
		JOIN t_class cc ON cc.class_id = m.child_class_id
		JOIN t_object co ON co.object_id = m.child_object_id
		WHERE (m.parent_object_id = ? OR m.child_object_id = ?)
	`
	args := []any{objectID, objectID}

	if !settings.includeSystem {
		systemID, err := s.systemObjectID(ctx, s.db)
		if err != nil {
			return nil, err
		}
		query += ` AND m.parent_object_id != ?`
		args = append(args, systemID)
	}
	query += ` ORDER BY m.membership_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	memberships := []Membership{}
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.ID, &m.ParentClass, &m.ParentObject, &m.Collection, &m.ChildClass, &m.ChildObject); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return memberships, nil
}

// DeleteMembership removes a membership and, through cascades, all data
// rows hanging off it.
func (s *Store) DeleteMembership(ctx context.Context, parentClass, parentObject, collection, childClass, childObject string) error {
	parentCls, err := s.classNamed(parentClass)
	if err != nil {
		return err
	}
	childCls, err := s.classNamed(childClass)
	if err != nil {
		return err
	}
	coll, err := s.collectionNamed(parentCls, childCls, collection)
	if err != nil {
		return err
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	parentID, err := s.objectID(ctx, tx, parentCls, parentObject)
	if err != nil {
		return err
	}
	childID, err := s.objectID(ctx, tx, childCls, childObject)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM t_membership WHERE parent_object_id = ? AND collection_id = ? AND child_object_id = ?`,
		parentID, coll.ID, childID,
	)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	if n == 0 {
		return &Error{Code: ErrCodeNotFound, Message: "membership does not exist", Collection: coll.Name, Object: childObject}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete membership: %w", err)
	}
	return nil
}

// collectionNamed resolves a collection by its class pair and name.
func (s *Store) collectionNamed(parent, child *schema.Class, name string) (*schema.Collection, error) {
	coll, ok := s.cat.CollectionByName(parent, child, name)
	if !ok {
		return nil, &Error{
			Code:       ErrCodeSchemaViolation,
			Message:    fmt.Sprintf("collection is not declared between %s and %s", parent.Name, child.Name),
			Collection: name,
		}
	}
	return coll, nil
}
