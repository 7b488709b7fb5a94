package internal

// SysConfDir is the directory the default config and fixture files are looked up in.
// It can be overridden at build time using -ldflags "-X".
var SysConfDir = "/etc"
