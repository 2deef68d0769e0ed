// Package version holds the build version of prefsync.
package version

// Version is the semver of the current release.
var Version = "0.2.0"

// DevVersion is the version suffix used for non-prod builds.
var DevVersion = "dev"

func GetCurrentVersion(mode string) string {
	if mode == "prod" {
		return Version
	}
	return Version + "-" + DevVersion
}
