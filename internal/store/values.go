package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fern-energy/gridbase/internal/schema"
)

// DataRow is one property value row with its band and scenario tag.
type DataRow struct {
	ID       int64
	Value    float64
	Band     int
	Scenario string // empty for base rows
}

// ValueOption adjusts how SetValue records a value.
type ValueOption func(*valueSettings)

type valueSettings struct {
	band      int
	dateFrom  string
	dateTo    string
	textClass string
	textValue string
	memo      string
	scenario  string
}

// WithBand targets a band other than 1 for multi-band properties.
func WithBand(n int) ValueOption {
	return func(v *valueSettings) {
		v.band = n
	}
}

// WithDateFrom bounds the value's validity window from below (inclusive).
func WithDateFrom(date string) ValueOption {
	return func(v *valueSettings) {
		v.dateFrom = date
	}
}

// WithDateTo bounds the value's validity window from above.
func WithDateTo(date string) ValueOption {
	return func(v *valueSettings) {
		v.dateTo = date
	}
}

// WithText attaches a text payload keyed by a class name, most commonly a
// Data File path reference.
func WithText(class, value string) ValueOption {
	return func(v *valueSettings) {
		v.textClass = class
		v.textValue = value
	}
}

// WithMemo attaches a free-text annotation to the value row.
func WithMemo(text string) ValueOption {
	return func(v *valueSettings) {
		v.memo = text
	}
}

// WithScenario records the value as a scenario override instead of
// touching the base value. The scenario object is created on first use.
func WithScenario(name string) ValueOption {
	return func(v *valueSettings) {
		v.scenario = name
	}
}

// SetValue records a property value on a membership and returns the data
// row id. A base write to a (membership, property, band) slot that
// already holds an untagged row replaces that row's value; otherwise a
// new row is inserted. Scenario writes always insert a new row tagged
// with the scenario object, leaving base rows untouched. The property
// must belong to the membership's collection.
func (s *Store) SetValue(ctx context.Context, membershipID int64, property string, value float64, opts ...ValueOption) (int64, error) {
	settings := valueSettings{band: 1}
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.band < 1 {
		return 0, &Error{Code: ErrCodeSchemaViolation, Message: fmt.Sprintf("band must be >= 1, got %d", settings.band)}
	}

	var textCls *schema.Class
	if settings.textClass != "" {
		var err error
		textCls, err = s.classNamed(settings.textClass)
		if err != nil {
			return 0, err
		}
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() // No-op if committed

	coll, err := s.membershipCollection(ctx, tx, membershipID)
	if err != nil {
		return 0, err
	}
	prop, err := s.propertyNamed(coll, property)
	if err != nil {
		return 0, err
	}

	var dataID int64
	if settings.scenario == "" {
		dataID, err = s.setBaseValueTx(ctx, tx, membershipID, prop, value, settings.band)
	} else {
		dataID, err = s.setScenarioValueTx(ctx, tx, membershipID, prop, value, settings)
	}
	if err != nil {
		return 0, err
	}

	if err := s.attachPayloadsTx(ctx, tx, dataID, textCls, settings); err != nil {
		return 0, err
	}

	// First write flips the property live so downstream consumers pick
	// it up.
	if _, err := tx.ExecContext(ctx,
		`UPDATE t_property SET is_dynamic = 1, is_enabled = 1 WHERE property_id = ?`, prop.ID,
	); err != nil {
		return 0, fmt.Errorf("enable property: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit set value: %w", err)
	}
	return dataID, nil
}

// setBaseValueTx updates the untagged row occupying the slot, or inserts
// one when the slot is empty.
func (s *Store) setBaseValueTx(ctx context.Context, tx *sql.Tx, membershipID int64, prop *schema.Property, value float64, band int) (int64, error) {
	var dataID int64
	err := tx.QueryRowContext(ctx, `
		SELECT d.data_id FROM t_data d
		WHERE d.membership_id = ? AND d.property_id = ?
		AND COALESCE((SELECT b.band_id FROM t_band b WHERE b.data_id = d.data_id), 1) = ?
		AND NOT EXISTS (
			SELECT 1 FROM t_tag t JOIN t_object o ON o.object_id = t.object_id
			WHERE t.data_id = d.data_id AND o.class_id = ?
		)
	`, membershipID, prop.ID, band, s.scenarioClassID()).Scan(&dataID)
	if err == nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE t_data SET value = ? WHERE data_id = ?`, value, dataID,
		); err != nil {
			return 0, fmt.Errorf("update value: %w", err)
		}
		return dataID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup data row: %w", err)
	}
	return s.insertDataTx(ctx, tx, membershipID, prop.ID, value, band)
}

// setScenarioValueTx inserts a fresh row and tags it with the scenario
// object, creating the scenario on first use.
func (s *Store) setScenarioValueTx(ctx context.Context, tx *sql.Tx, membershipID int64, prop *schema.Property, value float64, settings valueSettings) (int64, error) {
	scenarioID, err := s.ensureScenarioTx(ctx, tx, settings.scenario)
	if err != nil {
		return 0, err
	}
	dataID, err := s.insertDataTx(ctx, tx, membershipID, prop.ID, value, settings.band)
	if err != nil {
		return 0, err
	}
	if err := s.insertTagTx(ctx, tx, dataID, scenarioID, defaultActionSymbol); err != nil {
		return 0, err
	}
	return dataID, nil
}

// insertDataTx inserts a data row, writing a band row only for bands
// above 1.
func (s *Store) insertDataTx(ctx context.Context, tx *sql.Tx, membershipID, propertyID int64, value float64, band int) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO t_data (membership_id, property_id, value) VALUES (?, ?, ?)`,
		membershipID, propertyID, value,
	)
	if err != nil {
		return 0, fmt.Errorf("insert data row: %w", err)
	}
	dataID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert data row: %w", err)
	}
	if band > 1 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO t_band (data_id, band_id, state) VALUES (?, ?, 1)`,
			dataID, band,
		); err != nil {
			return 0, fmt.Errorf("insert band row: %w", err)
		}
	}
	return dataID, nil
}

// attachPayloadsTx writes the optional date, text, and memo rows for a
// data row, replacing earlier payloads of the same kind.
func (s *Store) attachPayloadsTx(ctx context.Context, tx *sql.Tx, dataID int64, textCls *schema.Class, settings valueSettings) error {
	if settings.dateFrom != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO t_date_from (data_id, date) VALUES (?, ?)`,
			dataID, settings.dateFrom,
		); err != nil {
			return fmt.Errorf("insert date_from: %w", err)
		}
	}
	if settings.dateTo != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO t_date_to (data_id, date) VALUES (?, ?)`,
			dataID, settings.dateTo,
		); err != nil {
			return fmt.Errorf("insert date_to: %w", err)
		}
	}
	if textCls != nil {
		if err := s.setTextTx(ctx, tx, dataID, textCls, settings.textValue); err != nil {
			return err
		}
	}
	if settings.memo != "" {
		if err := s.setMemoTx(ctx, tx, dataID, settings.memo); err != nil {
			return err
		}
	}
	return nil
}

// ensureScenarioTx finds or creates the scenario object backing a named
// overlay.
func (s *Store) ensureScenarioTx(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	cls, ok := s.cat.TagClass(schema.TagScenario)
	if !ok {
		return 0, &Error{Code: ErrCodeSchemaViolation, Message: "catalog has no Scenario class"}
	}
	id, err := s.objectIDMaybe(ctx, tx, cls, name)
	if err != nil || id != 0 {
		return id, err
	}
	return s.createObjectTx(ctx, tx, cls, name, objectSettings{})
}

// DataRows returns the raw value rows for a (membership, property) pair
// in insertion order, one per band and scenario. Base rows come back
// with an empty Scenario.
func (s *Store) DataRows(ctx context.Context, membershipID int64, property string) ([]DataRow, error) {
	coll, err := s.membershipCollection(ctx, s.db, membershipID)
	if err != nil {
		return nil, err
	}
	prop, err := s.propertyNamed(coll, property)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.data_id, COALESCE(d.value, 0),
			COALESCE((SELECT b.band_id FROM t_band b WHERE b.data_id = d.data_id), 1),
			COALESCE((SELECT o.name FROM t_tag t JOIN t_object o ON o.object_id = t.object_id
				WHERE t.data_id = d.data_id AND o.class_id = ?), '')
		FROM t_data d
		WHERE d.membership_id = ? AND d.property_id = ?
		ORDER BY d.data_id
	`, s.scenarioClassID(), membershipID, prop.ID)
	if err != nil {
		return nil, fmt.Errorf("list data rows: %w", err)
	}
	defer rows.Close()

	data := []DataRow{}
	for rows.Next() {
		var r DataRow
		if err := rows.Scan(&r.ID, &r.Value, &r.Band, &r.Scenario); err != nil {
			return nil, fmt.Errorf("scan data row: %w", err)
		}
		data = append(data, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list data rows: %w", err)
	}
	return data, nil
}

// DeleteOption narrows which value rows DeleteValue removes.
type DeleteOption func(*deleteSettings)

type deleteSettings struct {
	band     int // 0 means all bands
	scenario string
}

// ForBand restricts the delete to a single band.
func ForBand(n int) DeleteOption {
	return func(d *deleteSettings) {
		d.band = n
	}
}

// ForScenario deletes the rows tagged with the named scenario instead of
// the base rows.
func ForScenario(name string) DeleteOption {
	return func(d *deleteSettings) {
		d.scenario = name
	}
}

// DeleteValue removes value rows for a (membership, property) pair. By
// default it removes the base rows across all bands; ForScenario targets
// one scenario's overrides instead. Band, date, text, memo, and tag rows
// go with their data rows.
func (s *Store) DeleteValue(ctx context.Context, membershipID int64, property string, opts ...DeleteOption) error {
	var settings deleteSettings
	for _, opt := range opts {
		opt(&settings)
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	coll, err := s.membershipCollection(ctx, tx, membershipID)
	if err != nil {
		return err
	}
	prop, err := s.propertyNamed(coll, property)
	if err != nil {
		return err
	}

	var (
		query string
		args  []any
	)
	if settings.scenario != "" {
		query = `
			DELETE FROM t_data WHERE data_id IN (
				SELECT d.data_id FROM t_data d
				JOIN t_tag t ON t.data_id = d.data_id
				JOIN t_object o ON o.object_id = t.object_id
				WHERE d.membership_id = ? AND d.property_id = ?
				AND o.class_id = ? AND o.name = ?
			`
		args = []any{membershipID, prop.ID, s.scenarioClassID(), settings.scenario}
	} else {
		query = `
			DELETE FROM t_data WHERE data_id IN (
				SELECT d.data_id FROM t_data d
				WHERE d.membership_id = ? AND d.property_id = ?
				AND NOT EXISTS (
					SELECT 1 FROM t_tag t JOIN t_object o ON o.object_id = t.object_id
					WHERE t.data_id = d.data_id AND o.class_id = ?
				)
			`
		args = []any{membershipID, prop.ID, s.scenarioClassID()}
	}
	if settings.band > 0 {
		query += ` AND COALESCE((SELECT b.band_id FROM t_band b WHERE b.data_id = d.data_id), 1) = ?`
		args = append(args, settings.band)
	}
	query += `)`

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete value: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete value: %w", err)
	}
	if n == 0 {
		return &Error{Code: ErrCodeNotFound, Message: "no data rows matched", Collection: coll.Name, Property: prop.Name}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete value: %w", err)
	}
	return nil
}

// TagValue attaches an auxiliary tag to an existing data row. The class
// must be one of the auxiliary kinds (Scenario, Data File, Timeslice,
// Variable) and the row must not already carry a tag of that kind. An
// empty action uses "=".
func (s *Store) TagValue(ctx context.Context, dataID int64, class, object, action string) error {
	cls, err := s.classNamed(class)
	if err != nil {
		return err
	}
	if s.cat.TagKindOf(cls.ID) == schema.TagNone {
		return &Error{Code: ErrCodeSchemaViolation, Message: "class is not an auxiliary tag class", Class: cls.Name}
	}
	if action == "" {
		action = defaultActionSymbol
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.dataRowExists(ctx, tx, dataID); err != nil {
		return err
	}
	objectID, err := s.objectID(ctx, tx, cls, object)
	if err != nil {
		return err
	}

	var tagged int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM t_tag t
		JOIN t_object o ON o.object_id = t.object_id
		WHERE t.data_id = ? AND o.class_id = ?
	`, dataID, cls.ID).Scan(&tagged)
	if err != nil {
		return fmt.Errorf("lookup tags: %w", err)
	}
	if tagged > 0 {
		return &Error{
			Code:    ErrCodeSchemaViolation,
			Message: fmt.Sprintf("data row %d already carries a %s tag", dataID, cls.Name),
			Class:   cls.Name,
			Object:  object,
		}
	}

	if err := s.insertTagTx(ctx, tx, dataID, objectID, action); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tag value: %w", err)
	}
	return nil
}

// insertTagTx writes a tag row pointing a data row at an auxiliary object.
func (s *Store) insertTagTx(ctx context.Context, tx *sql.Tx, dataID, objectID int64, action string) error {
	var actionID int64
	err := tx.QueryRowContext(ctx,
		`SELECT action_id FROM t_action WHERE action_symbol = ?`, action,
	).Scan(&actionID)
	if errors.Is(err, sql.ErrNoRows) {
		return &Error{Code: ErrCodeSchemaViolation, Message: fmt.Sprintf("unknown tag action %q", action)}
	}
	if err != nil {
		return fmt.Errorf("lookup action: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO t_tag (data_id, object_id, action_id) VALUES (?, ?, ?)`,
		dataID, objectID, actionID,
	); err != nil {
		return fmt.Errorf("insert tag: %w", err)
	}
	return nil
}

// SetText attaches a text payload to a data row under a class key,
// replacing any earlier payload for the same class.
func (s *Store) SetText(ctx context.Context, dataID int64, class, value string) error {
	cls, err := s.classNamed(class)
	if err != nil {
		return err
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.dataRowExists(ctx, tx, dataID); err != nil {
		return err
	}
	if err := s.setTextTx(ctx, tx, dataID, cls, value); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set text: %w", err)
	}
	return nil
}

func (s *Store) setTextTx(ctx context.Context, tx *sql.Tx, dataID int64, cls *schema.Class, value string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM t_text WHERE data_id = ? AND class_id = ?`, dataID, cls.ID,
	); err != nil {
		return fmt.Errorf("replace text: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO t_text (data_id, class_id, value) VALUES (?, ?, ?)`,
		dataID, cls.ID, value,
	); err != nil {
		return fmt.Errorf("insert text: %w", err)
	}
	return nil
}

// SetMemo attaches a free-text annotation to a data row, replacing any
// earlier one.
func (s *Store) SetMemo(ctx context.Context, dataID int64, value string) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.dataRowExists(ctx, tx, dataID); err != nil {
		return err
	}
	if err := s.setMemoTx(ctx, tx, dataID, value); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set memo: %w", err)
	}
	return nil
}

func (s *Store) setMemoTx(ctx context.Context, tx *sql.Tx, dataID int64, value string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM t_memo_data WHERE data_id = ?`, dataID,
	); err != nil {
		return fmt.Errorf("replace memo: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO t_memo_data (data_id, value) VALUES (?, ?)`,
		dataID, value,
	); err != nil {
		return fmt.Errorf("insert memo: %w", err)
	}
	return nil
}

func (s *Store) dataRowExists(ctx context.Context, q dbtx, dataID int64) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM t_data WHERE data_id = ?`, dataID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("data row %d does not exist", dataID)}
	}
	if err != nil {
		return fmt.Errorf("lookup data row: %w", err)
	}
	return nil
}

// membershipCollection resolves a membership id to its catalog collection.
func (s *Store) membershipCollection(ctx context.Context, q dbtx, membershipID int64) (*schema.Collection, error) {
	var collID int64
	err := q.QueryRowContext(ctx,
		`SELECT collection_id FROM t_membership WHERE membership_id = ?`, membershipID,
	).Scan(&collID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("membership %d does not exist", membershipID)}
	}
	if err != nil {
		return nil, fmt.Errorf("lookup membership: %w", err)
	}
	coll, ok := s.cat.CollectionByID(collID)
	if !ok {
		return nil, &Error{Code: ErrCodeSchemaViolation, Message: fmt.Sprintf("collection %d is not declared in the catalog", collID)}
	}
	return coll, nil
}

// propertyNamed resolves a property name within a collection.
func (s *Store) propertyNamed(coll *schema.Collection, name string) (*schema.Property, error) {
	p, ok := s.cat.PropertyByName(coll, name)
	if !ok {
		return nil, NewInvalidPropertyError(coll.Name, name, s.cat.PropertyNames(coll))
	}
	return p, nil
}

// scenarioClassID returns the Scenario class id, or 0 when the catalog
// has no Scenario class, which matches no rows in tag joins.
func (s *Store) scenarioClassID() int64 {
	if cls, ok := s.cat.TagClass(schema.TagScenario); ok {
		return cls.ID
	}
	return 0
}
