package common

// Version is overwritten at build time with -ldflags "-X ...common.Version=..."
var Version = "dev"
