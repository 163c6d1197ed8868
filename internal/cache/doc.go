// Package cache implements the on-disk cache tiers of container results.
//
// A cache entry is a directory snapshot of a container's output, keyed by a
// data digest. Entries may exist in up to three tiers, described by a
// [Layout]: the old-render tier (the previous render's results, read only),
// the machine tier (long lived, shared between renders and processes) and
// the new-render tier (the current render's results). At every tier an
// entry is either absent or complete.
//
// The machine tier is written only through [Commit]: the snapshot is copied
// into a staging directory on the same file system and then renamed onto
// its final path without replacing an existing one. A process killed at any
// point leaves either no entry or a complete one, and the first writer of a
// given digest wins. Staging directories abandoned by killed processes are
// removed by [SweepStaging].
//
// Example usage:
//
//	layout := cache.Layout{Machine: machineDir, Old: oldDir, New: newDir}
//	if err := layout.Validate(); err != nil {
//	    return err
//	}
//
//	entry := layout.Entry(cache.TierMachine, dataHash)
//	hit, err := cache.Lookup(entry)
//	if err != nil {
//	    return err
//	}
//	if !hit {
//	    // run the container, then
//	    _, err = cache.Commit(outputDir, entry, layout.Staging())
//	}
package cache
