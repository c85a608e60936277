package config

// Version is the credsync binary version.
// Set at build time via: -ldflags "-X github.com/persistorai/credsync/internal/config.Version=<tag>"
var Version = "dev"
