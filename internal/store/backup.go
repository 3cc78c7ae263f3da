package store

import (
	"context"
	"fmt"
	"os"
)

// Backup writes a compacted copy of the database to targetPath using
// VACUUM INTO. The copy is a consistent snapshot taken without blocking
// readers. Refuses to overwrite an existing file, since VACUUM INTO
// requires the target not to exist.
func (s *Store) Backup(ctx context.Context, targetPath string) error {
	if _, err := os.Stat(targetPath); err == nil {
		return &Error{Code: ErrCodeConflict, Message: fmt.Sprintf("backup target %q already exists", targetPath)}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat backup target: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, targetPath); err != nil {
		return fmt.Errorf("backup database: %w", err)
	}
	s.log.Info("database backed up", "target", targetPath)
	return nil
}
