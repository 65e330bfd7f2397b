package monitor

import "time"

// Config controls the File-Change Monitor, §4.1.
type Config struct {
	DebounceMS         int64
	IncludeGlobs       []string
	ExcludeGlobs       []string
	ExcludeDirs        []string
	MaxFileSizeMB      int64
	MaxQueue           int
	MaxEventsPerSecond int
}

// Default returns sensible defaults, mirroring the original source's
// FileMonitorConfig::default().
func Default() Config {
	return Config{
		DebounceMS:         300,
		IncludeGlobs:       []string{"*"},
		ExcludeGlobs:       nil,
		ExcludeDirs:        nil,
		MaxFileSizeMB:      50,
		MaxQueue:           1000,
		MaxEventsPerSecond: 100,
	}
}

// ForGoProject returns a preset tuned for a typical Go repository, analogous
// to the original source's FileMonitorConfig::for_rust_project().
func ForGoProject() Config {
	return Config{
		DebounceMS: 300,
		IncludeGlobs: []string{
			"*.go", "go.mod", "go.sum", "*.md", "*.yaml", "*.yml",
		},
		ExcludeGlobs: []string{
			"*.tmp", "*.log", "*/.DS_Store",
		},
		ExcludeDirs: []string{
			"vendor", ".git", ".idea", ".vscode", "bin", "dist", "node_modules",
		},
		MaxFileSizeMB:      50,
		MaxQueue:           1000,
		MaxEventsPerSecond: 100,
	}
}

func (c Config) debounceDuration() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}
