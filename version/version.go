package version

// Version is set at build time with -ldflags "-X github.com/hibiki-voice/hibiki/version.Version=...".
var Version string = "0.0.0"
