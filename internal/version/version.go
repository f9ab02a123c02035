package version

// Version is the tracm release string, overridable at build time via
// -ldflags "-X github.com/gtonkinhill/tracm/internal/version.Version=...".
var Version = "0.1.0"
