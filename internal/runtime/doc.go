// Package runtime drives an external container runtime command-line tool.
//
// A [Backend] translates intents (check the tool version, build an image,
// test whether an image exists, run a command in a fresh container) into
// blocking subprocess invocations. Every invocation is scoped to an
// environment directory: global flags pin the tool's image and container
// storage to "root/" and "runroot/" below it, and the process runs with the
// environment directory as its working directory. A built environment is
// therefore a self-contained directory that can be archived, copied or
// relocated without depending on host-wide daemon state.
//
// Two backends are provided, selected with [New]: [Podman], the primary
// backend, and [Buildah], a historical backend that additionally pins its
// registry configuration files inside the environment directory.
//
// Failures carry their full diagnostic output. A nonzero exit from a build
// is reported as a [*ProcessError] wrapping [ErrBuild]; from a run, one
// wrapping [ErrRun]. A run killed by its timeout is reported like any other
// failed run, with [ProcessError.TimedOut] set. Nothing is retried.
//
// Example usage:
//
//	rt, err := runtime.New(runtime.Options{Kind: runtime.KindPodman})
//	if err != nil {
//	    return err
//	}
//	if err := rt.VersionCheck(ctx); err != nil {
//	    return err
//	}
//
//	if err := rt.BuildImage(ctx, envDir, "abc123"); err != nil {
//	    return err
//	}
//
//	in, _ := runtime.NewVolumeMapping(inputDir, "/input", runtime.ReadOnly)
//	out, _ := runtime.NewVolumeMapping(outputDir, "/output", runtime.ReadWrite)
//	err = rt.Run(ctx, envDir, "abc123", []string{"sh", "/input/run.sh"}, runtime.LaunchConfig{
//	    Timeout: time.Minute,
//	    Volumes: []runtime.VolumeMapping{in, out},
//	})
package runtime
