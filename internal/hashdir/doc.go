// Package hashdir computes deterministic content fingerprints of directory
// trees.
//
// A fingerprint covers every entry below the root, visited in lexicographic
// order of its slash-separated root-relative path. Directories contribute a
// "dir" tag and their path; regular files contribute a "file" tag, their
// path, their size and their bytes. Each field is length-prefixed, so no two
// distinct trees produce the same byte stream. Paths are relative to the
// hashed root, which makes identical trees at different locations hash
// identically. Any other entry type (symlinks, devices, sockets) is an error.
//
// Fingerprints are [digest.Digest] values computed with [Algorithm].
//
// Example usage:
//
//	d, err := hashdir.Directory("/work/setup")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(d) // sha256:...
package hashdir
