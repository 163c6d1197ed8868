// Parses flags, configures logging and runs snippetd commands.
//
// Global flags:
//
//	-q, --quiet     Suppress informational output.
//	-v, --verbose   Enable verbose output.
//	-d, --debug     Enable debug output.
//	-c, --config    Configuration file path.
//
// Flags override build-time defaults set via linker flags. After parsing, the
// global logger is reconfigured to reflect the final level and verbosity
// before the selected command runs. Commands that touch the cache or the
// container runtime load the configuration file first; command flags such as
// --machine or --timeout override its values.
package cli
