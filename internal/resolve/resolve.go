package resolve

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/fern-energy/gridbase/internal/schema"
	"github.com/fern-energy/gridbase/internal/store"
)

// Scope selects which memberships of the target object feed resolution.
type Scope int

const (
	// ScopeAll reads every membership the object is a child of, the
	// implicit System membership included.
	ScopeAll Scope = iota

	// ScopeSystem reads only the implicit System membership.
	ScopeSystem

	// ScopeNested reads only memberships under non-System parents.
	ScopeNested
)

// PropertyValue is one effective property slot after overlay resolution.
// Scenario names the winning override tag and is empty for base rows.
// FilePath, Timeslice, and VariableText surface auxiliary tags on the
// winning row; Texts holds every text payload keyed by class name.
type PropertyValue struct {
	Object       string
	Property     string
	Value        float64
	Band         int
	Unit         string
	Scenario     string
	FilePath     string
	Timeslice    string
	VariableText string
	Texts        map[string]string
	Memo         string
	DateFrom     string
	DateTo       string
	DataID       int64
	MembershipID int64
}

// Option adjusts one Resolve call.
type Option func(*settings)

type settings struct {
	scenario   string
	properties []string
	collection string
	scope      Scope
}

// WithScenario activates the named scenario: rows tagged with it
// override their base counterparts, and rows tagged with any other
// scenario are suppressed.
func WithScenario(name string) Option {
	return func(s *settings) {
		s.scenario = name
	}
}

// WithProperties restricts the result to the named properties. Names are
// validated against the catalog before resolution runs.
func WithProperties(names ...string) Option {
	return func(s *settings) {
		s.properties = names
	}
}

// WithCollection restricts resolution to memberships of one collection,
// named from the child side.
func WithCollection(name string) Option {
	return func(s *settings) {
		s.collection = name
	}
}

// WithScope restricts which memberships feed resolution.
func WithScope(scope Scope) Option {
	return func(s *settings) {
		s.scope = scope
	}
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.log = log
	}
}

// Resolver computes effective property values over a Store by applying
// the scenario overlay rules to raw data rows.
type Resolver struct {
	st  *store.Store
	log *slog.Logger
}

// New creates a Resolver over an open store.
func New(st *store.Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{st: st, log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the effective property values for an object.
//
// Candidate rows come from every membership the object is a child of,
// narrowed by WithScope and WithCollection. Rows partition by
// (membership, property, band); within a partition a row tagged with the
// active scenario wins, otherwise the untagged row does, and rows tagged
// with inactive scenarios are suppressed. Properties with no data rows
// are omitted; declared defaults are a schema hint, not materialized
// data. Results are ordered by membership, property, and band.
func (r *Resolver) Resolve(ctx context.Context, class, object string, opts ...Option) ([]PropertyValue, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	cat := r.st.Catalog()

	cls, ok := cat.ClassByName(class)
	if !ok {
		return nil, &store.Error{Code: store.ErrCodeSchemaViolation, Message: "class is not declared in the catalog", Class: class}
	}
	filter, err := propertyFilter(cat, cls, s.properties)
	if err != nil {
		return nil, err
	}
	var coll *schema.Collection
	if s.collection != "" {
		coll, ok = cat.CollectionToChild(cls, s.collection)
		if !ok {
			return nil, &store.Error{Code: store.ErrCodeSchemaViolation, Message: "class has no such collection", Class: cls.Name, Collection: s.collection}
		}
	}

	obj, err := r.st.GetObject(ctx, class, object)
	if err != nil {
		return nil, err
	}

	scopeSQL, scopeArgs, err := r.scopeFilter(ctx, coll, s.scope)
	if err != nil {
		return nil, err
	}
	candidates, index, err := r.candidateRows(ctx, obj.ID, scopeSQL, scopeArgs)
	if err != nil {
		return nil, err
	}
	if err := r.attachTags(ctx, obj.ID, scopeSQL, scopeArgs, index); err != nil {
		return nil, err
	}
	texts, err := r.rowTexts(ctx, obj.ID, scopeSQL, scopeArgs)
	if err != nil {
		return nil, err
	}

	winners := pickWinners(candidates, s.scenario, filter)

	values := make([]PropertyValue, 0, len(winners))
	for _, w := range winners {
		pv, err := r.buildValue(ctx, obj.Name, w, texts[w.dataID])
		if err != nil {
			return nil, err
		}
		values = append(values, pv)
	}
	r.log.Debug("properties resolved", "class", cls.Name, "object", obj.Name, "count", len(values))
	return values, nil
}

// candidate is one raw data row reachable from the target object.
type candidate struct {
	membershipID int64
	dataID       int64
	propertyID   int64
	property     string
	value        float64
	band         int
	unit         string
	dateFrom     string
	dateTo       string
	memo         string
	tags         map[schema.TagKind]tagRef
}

type tagRef struct {
	objectID int64
	name     string
}

// scopeFilter builds the membership WHERE fragment shared by the row,
// tag, and text queries.
func (r *Resolver) scopeFilter(ctx context.Context, coll *schema.Collection, scope Scope) (string, []any, error) {
	clause := ""
	args := []any{}
	if scope == ScopeSystem || scope == ScopeNested {
		systemID, err := r.systemObjectID(ctx)
		if err != nil {
			return "", nil, err
		}
		if scope == ScopeSystem {
			clause += ` AND m.parent_object_id = ?`
		} else {
			clause += ` AND m.parent_object_id != ?`
		}
		args = append(args, systemID)
	}
	if coll != nil {
		clause += ` AND m.collection_id = ?`
		args = append(args, coll.ID)
	}
	return clause, args, nil
}

func (r *Resolver) systemObjectID(ctx context.Context) (int64, error) {
	var id int64
	err := r.st.DB().QueryRowContext(ctx,
		`SELECT object_id FROM t_object WHERE class_id = ?`,
		r.st.Catalog().SystemClass().ID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("database not initialized (no System object)")
	}
	if err != nil {
		return 0, fmt.Errorf("lookup system object: %w", err)
	}
	return id, nil
}

// candidateRows fetches every data row reachable from the object's
// memberships in slot order, along with dates and memo.
func (r *Resolver) candidateRows(ctx context.Context, objectID int64, scopeSQL string, scopeArgs []any) ([]*candidate, map[int64]*candidate, error) {
	query := `
		SELECT m.membership_id, d.data_id, p.property_id, p.name,
			COALESCE(d.value, 0),
			COALESCE((SELECT b.band_id FROM t_band b WHERE b.data_id = d.data_id), 1) AS band,
			COALESCE(u.value, ''),
			COALESCE((SELECT date FROM t_date_from df WHERE df.data_id = d.data_id), ''),
			COALESCE((SELECT date FROM t_date_to dt WHERE dt.data_id = d.data_id), ''),
			COALESCE((SELECT value FROM t_memo_data md WHERE md.data_id = d.data_id), '')
		FROM t_membership m
		JOIN t_data d ON d.membership_id = m.membership_id
		JOIN t_property p ON p.property_id = d.property_id
		LEFT JOIN t_unit u ON u.unit_id = p.unit_id
		WHERE m.child_object_id = ?` + scopeSQL + `
		ORDER BY m.membership_id, p.property_id, band, d.data_id
	`
	args := append([]any{objectID}, scopeArgs...)
	rows, err := r.st.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("list candidate rows: %w", err)
	}
	defer rows.Close()

	candidates := []*candidate{}
	index := map[int64]*candidate{}
	for rows.Next() {
		c := &candidate{}
		if err := rows.Scan(&c.membershipID, &c.dataID, &c.propertyID, &c.property,
			&c.value, &c.band, &c.unit, &c.dateFrom, &c.dateTo, &c.memo); err != nil {
			return nil, nil, fmt.Errorf("scan candidate row: %w", err)
		}
		candidates = append(candidates, c)
		index[c.dataID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("list candidate rows: %w", err)
	}
	return candidates, index, nil
}

// attachTags classifies the tags on each candidate row by auxiliary
// kind. A second tag of the same kind on one row is malformed input.
func (r *Resolver) attachTags(ctx context.Context, objectID int64, scopeSQL string, scopeArgs []any, index map[int64]*candidate) error {
	query := `
		SELECT t.data_id, o.object_id, o.name, o.class_id
		FROM t_tag t
		JOIN t_object o ON o.object_id = t.object_id
		JOIN t_data d ON d.data_id = t.data_id
		JOIN t_membership m ON m.membership_id = d.membership_id
		WHERE m.child_object_id = ?` + scopeSQL
	args := append([]any{objectID}, scopeArgs...)
	rows, err := r.st.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	cat := r.st.Catalog()
	for rows.Next() {
		var dataID, tagObjectID, classID int64
		var name string
		if err := rows.Scan(&dataID, &tagObjectID, &name, &classID); err != nil {
			return fmt.Errorf("scan tag: %w", err)
		}
		c := index[dataID]
		if c == nil {
			continue
		}
		kind := cat.TagKindOf(classID)
		if kind == schema.TagNone {
			continue
		}
		if c.tags == nil {
			c.tags = map[schema.TagKind]tagRef{}
		}
		if _, dup := c.tags[kind]; dup {
			return &store.Error{
				Code:    store.ErrCodeSchemaViolation,
				Message: fmt.Sprintf("data row %d carries more than one %s tag", dataID, kind),
			}
		}
		c.tags[kind] = tagRef{objectID: tagObjectID, name: name}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list tags: %w", err)
	}
	return nil
}

// rowTexts fetches the text payloads of every candidate row, keyed by
// data id and then by text class name.
func (r *Resolver) rowTexts(ctx context.Context, objectID int64, scopeSQL string, scopeArgs []any) (map[int64]map[string]string, error) {
	query := `
		SELECT x.data_id, c.name, COALESCE(x.value, '')
		FROM t_text x
		JOIN t_class c ON c.class_id = x.class_id
		JOIN t_data d ON d.data_id = x.data_id
		JOIN t_membership m ON m.membership_id = d.membership_id
		WHERE m.child_object_id = ?` + scopeSQL
	args := append([]any{objectID}, scopeArgs...)
	rows, err := r.st.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list texts: %w", err)
	}
	defer rows.Close()

	texts := map[int64]map[string]string{}
	for rows.Next() {
		var dataID int64
		var class, value string
		if err := rows.Scan(&dataID, &class, &value); err != nil {
			return nil, fmt.Errorf("scan text: %w", err)
		}
		byClass := texts[dataID]
		if byClass == nil {
			byClass = map[string]string{}
			texts[dataID] = byClass
		}
		byClass[class] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list texts: %w", err)
	}
	return texts, nil
}

// pickWinners applies the overlay rule per (membership, property, band)
// slot. Candidates arrive in slot order, so first-seen slot order is
// already the result order.
func pickWinners(candidates []*candidate, scenario string, filter map[string]bool) []*candidate {
	active := schema.FoldName(scenario)

	type slotKey struct {
		membership int64
		property   int64
		band       int
	}
	order := []slotKey{}
	seen := map[slotKey]bool{}
	base := map[slotKey]*candidate{}
	override := map[slotKey]*candidate{}

	for _, c := range candidates {
		if filter != nil && !filter[schema.FoldName(c.property)] {
			continue
		}
		key := slotKey{c.membershipID, c.propertyID, c.band}
		if !seen[key] {
			seen[key] = true
			order = append(order, key)
		}
		ref, tagged := c.tags[schema.TagScenario]
		switch {
		case !tagged:
			// Later base rows replace earlier ones; SetValue keeps one
			// per slot but imported data may carry several.
			base[key] = c
		case scenario != "" && schema.FoldName(ref.name) == active:
			override[key] = c
		}
	}

	winners := []*candidate{}
	for _, key := range order {
		if c, ok := override[key]; ok {
			winners = append(winners, c)
		} else if c, ok := base[key]; ok {
			winners = append(winners, c)
		}
	}
	return winners
}

// buildValue converts a winning candidate into a PropertyValue,
// resolving auxiliary tag references.
func (r *Resolver) buildValue(ctx context.Context, objectName string, c *candidate, texts map[string]string) (PropertyValue, error) {
	pv := PropertyValue{
		Object:       objectName,
		Property:     c.property,
		Value:        c.value,
		Band:         c.band,
		Unit:         c.unit,
		Texts:        texts,
		Memo:         c.memo,
		DateFrom:     c.dateFrom,
		DateTo:       c.dateTo,
		DataID:       c.dataID,
		MembershipID: c.membershipID,
	}
	if ref, ok := c.tags[schema.TagScenario]; ok {
		pv.Scenario = ref.name
	}
	if ref, ok := c.tags[schema.TagTimeslice]; ok {
		pv.Timeslice = ref.name
	}
	if ref, ok := c.tags[schema.TagDataFile]; ok {
		pv.FilePath = texts[schema.DataFileClassName]
		if pv.FilePath == "" {
			path, err := r.backtrackText(ctx, ref.objectID)
			if err != nil {
				return PropertyValue{}, err
			}
			pv.FilePath = path
		}
	}
	if ref, ok := c.tags[schema.TagVariable]; ok {
		text, err := r.backtrackText(ctx, ref.objectID)
		if err != nil {
			return PropertyValue{}, err
		}
		pv.VariableText = text
	}
	return pv, nil
}

// backtrackText walks an auxiliary object's own data rows and returns
// its first bound text payload. Variable definitions and file references
// carry their content this way.
func (r *Resolver) backtrackText(ctx context.Context, objectID int64) (string, error) {
	var text string
	err := r.st.DB().QueryRowContext(ctx, `
		SELECT x.value FROM t_text x
		JOIN t_data d ON d.data_id = x.data_id
		JOIN t_membership m ON m.membership_id = d.membership_id
		WHERE m.child_object_id = ?
		ORDER BY d.data_id
		LIMIT 1
	`, objectID).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve auxiliary text: %w", err)
	}
	return text, nil
}

// propertyFilter validates requested property names against every
// collection the class is a child of, returning a folded-name set. Nil
// means no filtering.
func propertyFilter(cat *schema.Catalog, cls *schema.Class, names []string) (map[string]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	valid := map[string]string{}
	for i := range cat.Collections {
		coll := &cat.Collections[i]
		if coll.ChildClassID != cls.ID {
			continue
		}
		for _, name := range cat.PropertyNames(coll) {
			valid[schema.FoldName(name)] = name
		}
	}

	filter := make(map[string]bool, len(names))
	for _, name := range names {
		folded := schema.FoldName(name)
		if _, ok := valid[folded]; !ok {
			all := make([]string, 0, len(valid))
			for _, n := range valid {
				all = append(all, n)
			}
			sort.Strings(all)
			return nil, &store.Error{
				Code:     store.ErrCodeInvalidProperty,
				Message:  fmt.Sprintf("property is not declared for any collection of the class (valid: %v)", all),
				Class:    cls.Name,
				Property: name,
			}
		}
		filter[folded] = true
	}
	return filter, nil
}
