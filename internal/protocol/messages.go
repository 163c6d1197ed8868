package protocol

// A file placed in a copy of the input directory.
//
// Binary takes precedence over Text when set.
type Override struct {
	Path   string `json:"path"`             // Slash-separated path relative to the input root.
	Text   string `json:"text,omitempty"`   // Content as UTF-8 text.
	Binary []byte `json:"binary,omitempty"` // Content as raw bytes, base64 in JSON.
}

// A bind mount in addition to the input and output directories.
type Volume struct {
	HostPath  string `json:"hostPath"`
	GuestPath string `json:"guestPath"`
	ReadWrite bool   `json:"readWrite,omitempty"`
}

// Requests a snippet render.
type RunRequest struct {
	FriendlyName string            `json:"friendlyName"`
	SetupDir     string            `json:"setupDir"`
	InputDir     string            `json:"inputDir"`
	OutputDir    string            `json:"outputDir"`
	Command      []string          `json:"command,omitempty"`
	Overrides    []Override        `json:"overrides,omitempty"`
	Volumes      []Volume          `json:"volumes,omitempty"`
	Env          map[string]string `json:"env,omitempty"`
	Timeout      string            `json:"timeout,omitempty"` // Go duration string.
}

// Describes a rendered snippet.
type RunResult struct {
	ContainerHash string `json:"containerHash"`
	InputHash     string `json:"inputHash"`
	DataHash      string `json:"dataHash"`
	Source        string `json:"source"` // "old", "machine" or "run".
	OutputDir     string `json:"outputDir"`
	CacheDir      string `json:"cacheDir,omitempty"`
}

// Requests the digest of a directory.
type HashRequest struct {
	Dir string `json:"dir"`
}

// Carries a directory digest.
type HashResult struct {
	Digest string `json:"digest"`
}

// Describes the daemon.
type StatusResult struct {
	Running bool   `json:"running"`
	Version string `json:"version"`
	Pid     int    `json:"pid"`
	Uptime  string `json:"uptime"`
	Backend string `json:"backend"`
	Runs    int    `json:"runs"`
	Hits    int    `json:"hits"`
}

// Describes a failed request.
type ErrorResult struct {
	Kind    string `json:"kind,omitempty"` // Failure class, such as "run" or "integrity".
	Message string `json:"message"`
}
