package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fern-energy/gridbase/internal/schema"
)

// DefaultChunkSize is the number of records each bulk chunk commits in
// one transaction.
const DefaultChunkSize = 10_000

// MembershipRecord names one membership to create in bulk.
type MembershipRecord struct {
	ParentClass  string
	ParentObject string
	Collection   string
	ChildClass   string
	ChildObject  string
}

// ValueRecord names one property value to insert in bulk. Band 0 means
// band 1. Text, when set, is stored as a Data File path reference on the
// inserted row.
type ValueRecord struct {
	Object   string
	Property string
	Value    float64
	Band     int
	DateFrom string
	DateTo   string
	Text     string
}

// BulkOption adjusts bulk operations. Each operation documents which
// options it honors.
type BulkOption func(*bulkSettings)

type bulkSettings struct {
	chunkSize     int
	createMissing bool
	scenario      string
}

// WithChunkSize overrides DefaultChunkSize. Each chunk commits on its
// own, so smaller chunks bound transaction size at the cost of more
// partial progress on failure.
func WithChunkSize(n int) BulkOption {
	return func(b *bulkSettings) {
		b.chunkSize = n
	}
}

// CreateMissingObjects creates referenced objects that don't exist yet
// instead of failing. Bulk membership creation applies this to child
// objects only; a missing parent is always an error.
func CreateMissingObjects() BulkOption {
	return func(b *bulkSettings) {
		b.createMissing = true
	}
}

// InScenario tags every inserted value row with the named scenario,
// creating the scenario object on first use.
func InScenario(name string) BulkOption {
	return func(b *bulkSettings) {
		b.scenario = name
	}
}

func newBulkSettings(opts []BulkOption) bulkSettings {
	settings := bulkSettings{chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.chunkSize < 1 {
		settings.chunkSize = DefaultChunkSize
	}
	return settings
}

// BulkCreateObjects creates a batch of objects of one class in a single
// transaction, returning ids in input order. Unlike the chunked bulk
// operations, any duplicate - against existing rows or within the batch,
// compared case-insensitively - fails the whole batch and commits
// nothing.
func (s *Store) BulkCreateObjects(ctx context.Context, class string, names []string, opts ...ObjectOption) ([]int64, error) {
	cls, err := s.classNamed(class)
	if err != nil {
		return nil, err
	}
	var settings objectSettings
	for _, opt := range opts {
		opt(&settings)
	}

	seen := make(map[string]int, len(names))
	for i, name := range names {
		folded := schema.FoldName(name)
		if _, dup := seen[folded]; dup {
			return nil, &BulkError{Record: i, Err: NewConflictError(cls.Name, name)}
		}
		seen[folded] = i
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() // No-op if committed

	ids := make([]int64, 0, len(names))
	for i, name := range names {
		id, err := s.createObjectTx(ctx, tx, cls, name, settings)
		if err != nil {
			return nil, &BulkError{Record: i, Err: err}
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bulk create objects: %w", err)
	}

	s.log.Info("bulk objects created", "class", cls.Name, "count", len(ids))
	return ids, nil
}

// BulkCreateMemberships creates memberships chunk by chunk, each chunk
// in its own transaction. A failing chunk rolls back only itself;
// earlier chunks stay committed, and the returned count reflects what
// persisted. Honors WithChunkSize and CreateMissingObjects. All records
// are validated against the catalog before any write.
func (s *Store) BulkCreateMemberships(ctx context.Context, records []MembershipRecord, opts ...BulkOption) (int, error) {
	settings := newBulkSettings(opts)

	colls := make([]*schema.Collection, len(records))
	childClasses := make([]*schema.Class, len(records))
	parentClasses := make([]*schema.Class, len(records))
	for i, rec := range records {
		parentCls, err := s.classNamed(rec.ParentClass)
		if err != nil {
			return 0, &BulkError{Chunk: i / settings.chunkSize, Record: i, Err: err}
		}
		childCls, err := s.classNamed(rec.ChildClass)
		if err != nil {
			return 0, &BulkError{Chunk: i / settings.chunkSize, Record: i, Err: err}
		}
		coll, err := s.collectionNamed(parentCls, childCls, rec.Collection)
		if err != nil {
			return 0, &BulkError{Chunk: i / settings.chunkSize, Record: i, Err: err}
		}
		parentClasses[i], childClasses[i], colls[i] = parentCls, childCls, coll
	}

	inserted := 0
	ids := map[objectKey]int64{}
	for start := 0; start < len(records); start += settings.chunkSize {
		end := min(start+settings.chunkSize, len(records))
		chunk := start / settings.chunkSize

		n, err := s.membershipChunkTx(ctx, records[start:end], start, parentClasses, childClasses, colls, settings, ids)
		inserted += n
		if err != nil {
			return inserted, err
		}
		s.log.Debug("membership chunk committed", "chunk", chunk, "records", end-start)
	}

	s.log.Info("bulk memberships created", "count", inserted, "records", len(records))
	return inserted, nil
}

type objectKey struct {
	classID int64
	name    string
}

// membershipChunkTx applies one chunk of membership records in a single
// transaction, returning how many rows it committed.
func (s *Store) membershipChunkTx(ctx context.Context, chunk []MembershipRecord, offset int, parentClasses, childClasses []*schema.Class, colls []*schema.Collection, settings bulkSettings, ids map[objectKey]int64) (int, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	bulkErr := func(i int, err error) error {
		return &BulkError{Chunk: offset / settings.chunkSize, Record: offset + i, Err: err}
	}

	for i, rec := range chunk {
		parentCls := parentClasses[offset+i]
		childCls := childClasses[offset+i]
		coll := colls[offset+i]

		parentID, err := s.cachedObjectID(ctx, tx, ids, parentCls, rec.ParentObject)
		if err != nil {
			return 0, bulkErr(i, err)
		}
		if parentID == 0 {
			return 0, bulkErr(i, NewNotFoundError(parentCls.Name, rec.ParentObject))
		}

		childID, err := s.cachedObjectID(ctx, tx, ids, childCls, rec.ChildObject)
		if err != nil {
			return 0, bulkErr(i, err)
		}
		if childID == 0 {
			if !settings.createMissing {
				return 0, bulkErr(i, NewNotFoundError(childCls.Name, rec.ChildObject))
			}
			childID, err = s.createObjectTx(ctx, tx, childCls, rec.ChildObject, objectSettings{})
			if err != nil {
				return 0, bulkErr(i, err)
			}
			ids[objectKey{childCls.ID, schema.FoldName(rec.ChildObject)}] = childID
		}

		if _, err := s.createMembershipTx(ctx, tx, coll, parentID, childID); err != nil {
			return 0, bulkErr(i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit membership chunk: %w", err)
	}
	return len(chunk), nil
}

// cachedObjectID memoizes object id lookups across chunks. Returns 0
// when the object doesn't exist.
func (s *Store) cachedObjectID(ctx context.Context, q dbtx, ids map[objectKey]int64, cls *schema.Class, name string) (int64, error) {
	key := objectKey{cls.ID, schema.FoldName(name)}
	if id, ok := ids[key]; ok {
		return id, nil
	}
	id, err := s.objectIDMaybe(ctx, q, cls, name)
	if err != nil {
		return 0, err
	}
	if id != 0 {
		ids[key] = id
	}
	return id, nil
}

// BulkSetValues inserts property values for objects of one class through
// their memberships under the System object, chunk by chunk. The
// collection must be declared between System and the class; every
// record's property name is validated against it before any write, as
// are the referenced objects, so a bad batch commits zero rows. Honors
// WithChunkSize, CreateMissingObjects, and InScenario. Returns how many
// value rows persisted.
func (s *Store) BulkSetValues(ctx context.Context, class, collection string, records []ValueRecord, opts ...BulkOption) (int, error) {
	settings := newBulkSettings(opts)

	cls, err := s.classNamed(class)
	if err != nil {
		return 0, err
	}
	coll, err := s.collectionNamed(s.cat.SystemClass(), cls, collection)
	if err != nil {
		return 0, err
	}

	var textCls *schema.Class
	props := make([]*schema.Property, len(records))
	for i, rec := range records {
		prop, err := s.propertyNamed(coll, rec.Property)
		if err != nil {
			return 0, &BulkError{Chunk: i / settings.chunkSize, Record: i, Err: err}
		}
		props[i] = prop
		if rec.Band < 0 {
			err := &Error{Code: ErrCodeSchemaViolation, Message: fmt.Sprintf("band must be >= 1, got %d", rec.Band)}
			return 0, &BulkError{Chunk: i / settings.chunkSize, Record: i, Err: err}
		}
		if rec.Text != "" && textCls == nil {
			textCls, err = s.classNamed(schema.DataFileClassName)
			if err != nil {
				return 0, &BulkError{Chunk: i / settings.chunkSize, Record: i, Err: err}
			}
		}
	}

	memberships, err := s.resolveValueMemberships(ctx, cls, coll, records, settings)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for start := 0; start < len(records); start += settings.chunkSize {
		end := min(start+settings.chunkSize, len(records))
		chunk := start / settings.chunkSize

		n, err := s.valueChunkTx(ctx, records[start:end], start, cls, coll, props, textCls, settings, memberships)
		inserted += n
		if err != nil {
			return inserted, err
		}
		s.log.Debug("value chunk committed", "chunk", chunk, "records", end-start)
	}

	s.log.Info("bulk values applied", "collection", coll.Name, "count", inserted)
	return inserted, nil
}

// resolveValueMemberships maps each record's object name to its
// membership under the System object. Objects left unresolved (0) are
// created later inside chunk transactions when CreateMissingObjects is
// set; otherwise a missing object fails the batch here, before any
// write.
func (s *Store) resolveValueMemberships(ctx context.Context, cls *schema.Class, coll *schema.Collection, records []ValueRecord, settings bulkSettings) (map[string]int64, error) {
	systemID, err := s.systemObjectID(ctx, s.db)
	if err != nil {
		return nil, err
	}

	memberships := map[string]int64{}
	for i, rec := range records {
		folded := schema.FoldName(rec.Object)
		if _, ok := memberships[folded]; ok {
			continue
		}
		objectID, err := s.objectIDMaybe(ctx, s.db, cls, rec.Object)
		if err != nil {
			return nil, err
		}
		if objectID == 0 {
			if settings.createMissing {
				memberships[folded] = 0
				continue
			}
			return nil, &BulkError{Chunk: i / settings.chunkSize, Record: i, Err: NewNotFoundError(cls.Name, rec.Object)}
		}
		membershipID, err := s.membershipIDMaybe(ctx, s.db, systemID, coll.ID, objectID)
		if err != nil {
			return nil, err
		}
		if membershipID == 0 {
			err := &Error{Code: ErrCodeNotFound, Message: "object has no membership under collection", Class: cls.Name, Object: rec.Object, Collection: coll.Name}
			return nil, &BulkError{Chunk: i / settings.chunkSize, Record: i, Err: err}
		}
		memberships[folded] = membershipID
	}
	return memberships, nil
}

func (s *Store) membershipIDMaybe(ctx context.Context, q dbtx, parentID, collectionID, childID int64) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT membership_id FROM t_membership WHERE parent_object_id = ? AND collection_id = ? AND child_object_id = ?`,
		parentID, collectionID, childID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lookup membership: %w", err)
	}
	return id, nil
}

// valueChunkTx applies one chunk of value records in a single
// transaction, creating any still-missing objects first and tagging
// rows with the batch scenario when one is set.
func (s *Store) valueChunkTx(ctx context.Context, chunk []ValueRecord, offset int, cls *schema.Class, coll *schema.Collection, props []*schema.Property, textCls *schema.Class, settings bulkSettings, memberships map[string]int64) (int, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	bulkErr := func(i int, err error) error {
		return &BulkError{Chunk: offset / settings.chunkSize, Record: offset + i, Err: err}
	}

	var scenarioID int64
	if settings.scenario != "" {
		scenarioID, err = s.ensureScenarioTx(ctx, tx, settings.scenario)
		if err != nil {
			return 0, err
		}
	}

	touched := map[int64]bool{}
	for i, rec := range chunk {
		folded := schema.FoldName(rec.Object)
		membershipID := memberships[folded]
		if membershipID == 0 {
			membershipID, err = s.createValueObjectTx(ctx, tx, cls, coll, rec.Object)
			if err != nil {
				return 0, bulkErr(i, err)
			}
			memberships[folded] = membershipID
		}

		prop := props[offset+i]
		band := rec.Band
		if band == 0 {
			band = 1
		}
		dataID, err := s.insertDataTx(ctx, tx, membershipID, prop.ID, rec.Value, band)
		if err != nil {
			return 0, bulkErr(i, err)
		}

		vs := valueSettings{dateFrom: rec.DateFrom, dateTo: rec.DateTo, textValue: rec.Text}
		var recTextCls *schema.Class
		if rec.Text != "" {
			recTextCls = textCls
		}
		if err := s.attachPayloadsTx(ctx, tx, dataID, recTextCls, vs); err != nil {
			return 0, bulkErr(i, err)
		}

		if scenarioID != 0 {
			if err := s.insertTagTx(ctx, tx, dataID, scenarioID, defaultActionSymbol); err != nil {
				return 0, bulkErr(i, err)
			}
		}
		touched[prop.ID] = true
	}

	for propID := range touched {
		if _, err := tx.ExecContext(ctx,
			`UPDATE t_property SET is_dynamic = 1, is_enabled = 1 WHERE property_id = ?`, propID,
		); err != nil {
			return 0, fmt.Errorf("enable property: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit value chunk: %w", err)
	}
	return len(chunk), nil
}

// createValueObjectTx creates an object referenced by a value record and
// returns its membership under the batch collection. The object's root
// membership must land in that collection; a batch writing through a
// non-default collection can't invent objects on the fly.
func (s *Store) createValueObjectTx(ctx context.Context, tx *sql.Tx, cls *schema.Class, coll *schema.Collection, name string) (int64, error) {
	objectID, err := s.createObjectTx(ctx, tx, cls, name, objectSettings{})
	if err != nil {
		return 0, err
	}
	systemID, err := s.systemObjectID(ctx, tx)
	if err != nil {
		return 0, err
	}
	membershipID, err := s.membershipIDMaybe(ctx, tx, systemID, coll.ID, objectID)
	if err != nil {
		return 0, err
	}
	if membershipID == 0 {
		return 0, &Error{Code: ErrCodeNotFound, Message: "object has no membership under collection", Class: cls.Name, Object: name, Collection: coll.Name}
	}
	return membershipID, nil
}
