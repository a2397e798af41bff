// Package reliability snapshots the databases and ships the archives to
// off-box object storage.
package reliability

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/aristath/rebalancer/internal/database"
	"github.com/rs/zerolog"
)

// BackupService takes consistent single-file copies of open databases
type BackupService struct {
	databases map[string]*database.DB
	order     []string
	log       zerolog.Logger
}

// NewBackupService creates a backup service over databases
func NewBackupService(log zerolog.Logger, databases ...*database.DB) *BackupService {
	s := &BackupService{
		databases: make(map[string]*database.DB, len(databases)),
		log:       log.With().Str("service", "backup").Logger(),
	}
	for _, db := range databases {
		if db == nil {
			continue
		}
		s.databases[db.Name()] = db
		s.order = append(s.order, db.Name())
	}
	return s
}

// DatabaseNames returns the databases worth backing up. The cache holds
// nothing that cannot be fetched again and is left out unless includeCache.
func (s *BackupService) DatabaseNames(includeCache bool) []string {
	names := make([]string, 0, len(s.order))
	for _, name := range s.order {
		if !includeCache && s.databases[name].Profile() == database.ProfileCache {
			continue
		}
		names = append(names, name)
	}
	return names
}

// BackupDatabase writes a verified copy of dbName to backupPath
func (s *BackupService) BackupDatabase(dbName, backupPath string) error {
	db, ok := s.databases[dbName]
	if !ok {
		return fmt.Errorf("database %s not found", dbName)
	}

	s.log.Debug().Str("database", dbName).Str("backup_path", backupPath).Msg("Backing up database")

	// VACUUM INTO produces a compacted copy without WAL files
	escaped := strings.ReplaceAll(backupPath, "'", "''")
	if _, err := db.Conn().Exec(fmt.Sprintf("VACUUM INTO '%s'", escaped)); err != nil {
		return fmt.Errorf("VACUUM INTO failed: %w", err)
	}

	if err := verifyBackup(backupPath); err != nil {
		os.Remove(backupPath)
		return fmt.Errorf("backup verification failed: %w", err)
	}
	return nil
}

// verifyBackup runs an integrity check against the copy
func verifyBackup(backupPath string) error {
	backupDB, err := sql.Open("sqlite", backupPath)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer backupDB.Close()

	var result string
	if err := backupDB.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
