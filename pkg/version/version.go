package version

// Version identifies the roofline build. Release builds override it via
// -ldflags "-X roofline/pkg/version.Version=...".
var Version = "0.4.0-dev"
