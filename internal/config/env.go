package config

import "os"

// VerboseEnvVar force-enables verbose diagnostics when set to any non-empty
// value, as if Options.Verbose were set on every controller. It stands in
// for a persisted debug flag in embedding hosts that have no options plumbing.
const VerboseEnvVar = "CXP_VERBOSE"

// VerboseFromEnv reports whether verbose diagnostics are enabled through the
// environment.
func VerboseFromEnv() bool {
	return os.Getenv(VerboseEnvVar) != ""
}
