// Package settings loads the snippetd configuration file.
//
// The file is YAML and every key is optional. A missing file yields the
// defaults; an unknown key is an error rather than being ignored.
//
//	runtime:
//	  backend: podman        # podman or buildah
//	  binary: /usr/bin/podman
//	  version: "3.4"         # supported major.minor
//	cache:
//	  machine: /var/cache/snippetd
//	  old: /srv/render/previous/cache
//	  new: /srv/render/current/cache
//	run:
//	  timeout: 10m
//	  marker: .snippet_identity
//
// Command-line flags override individual values after loading.
//
// Example usage:
//
//	s, err := settings.Load(paths.ConfigFile())
//	if err != nil {
//	    return err
//	}
//	rt, err := runtime.New(s.RuntimeOptions())
package settings
