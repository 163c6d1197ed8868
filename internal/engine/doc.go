// Package engine runs container snippets with results cached across renders.
//
// A [Helper] takes a setup directory (a build recipe and its auxiliary
// files), an input directory and an output directory, and leaves the output
// directory populated with what the container would produce. Before running
// anything it fingerprints the request: the container hash is the digest of
// the setup directory, and the data hash combines the container hash, the
// digest of the input directory and the marker filename. The data hash
// names a cache entry, which is resolved in order:
//
//  1. The old-render tier. The entry is copied into the new-render tier and
//     the output directory, and is promoted into the machine tier if the
//     machine tier lacks it.
//  2. The machine tier. The entry is copied into the new-render tier and the
//     output directory.
//  3. Otherwise the image is built if needed, the container runs with the
//     input mounted read-only at /input and the output mounted read-write
//     at /output, and the output is copied into the new-render tier and
//     committed to the machine tier.
//
// Before a run a marker file is created in the input directory holding
// "<friendly name>_<data hash>", so the command can learn its identity.
// The marker name is reserved: an input that already contains it, or an
// override targeting it, is rejected.
//
// Overrides let a caller replace or add files in the input without touching
// its own copy. When any are given the input is copied into a temporary
// directory, the overrides are written there, and that directory is hashed
// and mounted instead. It is removed after a successful run and kept after
// a failed one.
//
// Runs are serialized: a [Helper] executes one request at a time.
//
// Example usage:
//
//	h, err := engine.New(ctx, engine.Config{Backend: rt, Layout: layout})
//	if err != nil {
//	    return err
//	}
//
//	res, err := h.Run(ctx, engine.Request{
//	    FriendlyName: "python",
//	    SetupDir:     "/srv/snippets/python",
//	    InputDir:     inputDir,
//	    OutputDir:    outputDir,
//	    Command:      []string{"sh", "/input/run.sh"},
//	    Overrides:    []engine.Override{engine.Text("run.sh", script)},
//	})
//	if err != nil {
//	    return err
//	}
//	slog.Info("snippet rendered", "source", res.Source)
package engine
