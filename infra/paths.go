package infra

import (
	"os"
	"path/filepath"
)

func ensureDir(path string) error { return os.MkdirAll(path, 0o755) }

// WorkflowsDir is the directory LocalStore keeps workflow documents in.
func WorkflowsDir(dataDir string) string { return filepath.Join(dataDir, "workflows") }

// HistoryPath is the default SQLite run history file.
func HistoryPath(dataDir string) string { return filepath.Join(dataDir, "history.db") }
