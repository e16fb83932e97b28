//go:build !ppcjit_debug

package buildoptions

// IsDebugMode is true when built with the ppcjit_debug tag. Translators use it to guard
// register cache invariant checks, which are compiled out of release binaries.
const IsDebugMode = false
