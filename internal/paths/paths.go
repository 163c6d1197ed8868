package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory and file naming.
	programName = "snippetd"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644
)

// Path to the directory for runtime files (sockets, PIDs).
//
//	Linux:   $XDG_RUNTIME_DIR/snippetd or /run/user/<uid>/snippetd
//	macOS:   ~/Library/Caches/snippetd/run
func Runtime() string {
	if xdg.RuntimeDir != "" {
		return filepath.Join(xdg.RuntimeDir, programName)
	}
	return filepath.Join(xdg.CacheHome, programName, "run")
}

// Default path to the Unix domain socket of the daemon.
func Socket() string {
	return filepath.Join(Runtime(), programName+".sock")
}

// Default path to the PID file.
func PIDFile() string {
	return filepath.Join(Runtime(), programName+".pid")
}

// Default root of the machine cache tier.
//
// Holds built environments and committed cache entries that outlive a
// single render.
//
//	Linux:   $XDG_CACHE_HOME/snippetd
//	macOS:   ~/Library/Caches/snippetd
func MachineCache() string {
	return filepath.Join(xdg.CacheHome, programName)
}

// Default path to the configuration file.
//
//	Linux:   $XDG_CONFIG_HOME/snippetd/config.yaml
//	macOS:   ~/Library/Application Support/snippetd/config.yaml
func ConfigFile() string {
	return filepath.Join(xdg.ConfigHome, programName, "config.yaml")
}
