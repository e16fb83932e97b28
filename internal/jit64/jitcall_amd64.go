package jit64

// jitcall is implemented in jitcall_amd64.s as a Go Assembler function.
// This is used by Machine.Run to enter translated code, and again to resume it after a fallback.
// codeSegment is the address of the host instruction to start from.
// frame is the "*nativeFrame" as uintptr, and is kept in reservedRegisterForFrame by the translated code.
func jitcall(codeSegment, frame uintptr)
