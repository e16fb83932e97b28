//go:build ppcjit_debug

package buildoptions

const IsDebugMode = true
