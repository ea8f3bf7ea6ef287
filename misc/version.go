// Package misc keeps build time program identification.
package misc

// Set by the linker: -ldflags "-X tempus/misc.version=... -X tempus/misc.gitHash=..."
var (
	version = "dev"
	gitHash = "unknown"
)

const appName = "tempus"

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

func GetGitHash() string {
	return gitHash
}
