// Provides platform-appropriate default paths for snippetd.
//
// All paths follow XDG conventions on Linux and platform-native conventions
// on macOS. The program name "snippetd" is used as the subdirectory under
// each base path. Every path here is only a default: the engine itself
// receives its cache roots explicitly and never consults this package.
package paths
