// Package archive packs build environments into portable archives and
// restores them.
//
// An environment directory holds a built image together with the runtime
// storage it lives in, so it can be moved between machines as a unit. An
// archive is a gzip-compressed tar stream whose first entry is the
// environment's metadata record, followed by the directory tree. Transient
// runtime state (the run root) is not archived.
//
// Restoring reads the metadata first and refuses archives built for
// another platform. The tree is extracted into a staging directory of the
// machine cache, with every path resolved inside it, and then published at
// the environment directory named by the metadata. Publishing never
// replaces an existing environment.
//
// Example usage:
//
//	f, err := os.Create("python.tar.gz")
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//	if err := archive.Pack(ctx, envDir, f); err != nil {
//	    return err
//	}
//
//	// elsewhere
//	res, err := archive.Unpack(ctx, r, layout)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.EnvDir)
package archive
