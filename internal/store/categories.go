package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fern-energy/gridbase/internal/schema"
)

// Category groups objects within a class. Ranks order categories for
// display and are assigned on creation.
type Category struct {
	ID   int64
	Name string
	Rank int
}

// AddCategory creates a category for a class and returns its id. Adding a
// category that already exists returns the existing id. New categories
// rank after all existing ones for the class.
func (s *Store) AddCategory(ctx context.Context, class, name string) (int64, error) {
	cls, err := s.classNamed(class)
	if err != nil {
		return 0, err
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	id, err := s.ensureCategoryTx(ctx, tx, cls, name)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit add category: %w", err)
	}
	return id, nil
}

// ensureCategoryTx returns the id of the named category, creating it with
// the next free rank when missing.
func (s *Store) ensureCategoryTx(ctx context.Context, tx *sql.Tx, cls *schema.Class, name string) (int64, error) {
	if name == "" {
		name = DefaultCategoryName
	}

	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT category_id FROM t_category WHERE class_id = ? AND name = ?`,
		cls.ID, name,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup category: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO t_category (class_id, rank, name)
		VALUES (?, (SELECT COALESCE(MAX(rank), 0) + 1 FROM t_category WHERE class_id = ?), ?)
	`, cls.ID, cls.ID, name)
	if err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}
	return id, nil
}

// ListCategories returns a class's categories in rank order. Returns an
// empty slice, not nil, when the class has none.
func (s *Store) ListCategories(ctx context.Context, class string) ([]Category, error) {
	cls, err := s.classNamed(class)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT category_id, name, rank FROM t_category WHERE class_id = ? ORDER BY rank, name`,
		cls.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Rank); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}
