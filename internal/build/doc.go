// Package build ensures that the container image of a setup directory
// exists before it is first run.
//
// A setup directory holds a build recipe (a Dockerfile) and the auxiliary
// files it refers to. Its identity is the digest of its contents, computed
// fresh on every call. Each digest gets a private environment directory in
// the machine cache holding the runtime's storage, so an image is built at
// most once per setup directory contents and lives as long as the
// environment directory does.
//
// [Ensure] checks the environment's storage for the image and, when it is
// missing, stages the setup directory into the environment directory and
// builds it. After a build the environment directory also receives an
// environment.json [Metadata] record describing what was built, which
// allows the directory to be archived and restored elsewhere.
//
// Nothing is locked. Two processes racing on the same digest may both
// build; both produce equivalent images.
//
// Example usage:
//
//	res, err := build.Ensure(ctx, build.Options{
//	    Backend:      rt,
//	    Layout:       layout,
//	    FriendlyName: "python",
//	    SetupDir:     "/srv/snippets/python",
//	})
//	if err != nil {
//	    return err
//	}
//	// res.EnvDir and res.ImageName identify the image for runtime.Backend.Run.
package build
