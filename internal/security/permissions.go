package security

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// SecureFileMode is required on every file holding captured data
const SecureFileMode os.FileMode = 0600

// CheckFilePermissions verifies that sensitive files have proper permissions
func CheckFilePermissions(path string, expectedPerms os.FileMode, logger *zap.Logger) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist yet, that's okay
		}
		return fmt.Errorf("failed to check file permissions: %w", err)
	}

	actualPerms := info.Mode().Perm()
	if actualPerms != expectedPerms {
		logger.Warn("fixing file permissions",
			zap.String("path", path),
			zap.String("actual", fmt.Sprintf("%o", actualPerms)),
			zap.String("expected", fmt.Sprintf("%o", expectedPerms)),
		)

		if err := os.Chmod(path, expectedPerms); err != nil {
			return fmt.Errorf("failed to set permissions: %w", err)
		}
	}

	return nil
}

// PrepareEventLogs creates the directories the event logs live in and
// tightens permissions on log files that already exist. Appends never create
// directories, so this runs once at startup.
func PrepareEventLogs(logger *zap.Logger, logPaths ...string) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, path := range logPaths {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return fmt.Errorf("failed to create log directory for %s: %w", path, err)
		}
		if err := CheckFilePermissions(path, SecureFileMode, logger); err != nil {
			return err
		}
	}
	return nil
}

// EnsureDatabasePermissions secures the mirror database and its WAL files
func EnsureDatabasePermissions(dbPath string, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := CheckFilePermissions(path, SecureFileMode, logger); err != nil {
			logger.Warn("could not secure database file permissions", zap.String("path", path), zap.Error(err))
		}
	}
}
