package app

import "fmt"

// Populated via -ldflags at build time.
var (
	BuildVersion = "0.0.0-dev"
	BuildCommit  = "unknown"
	BuildDate    = "unknown"
)

// VersionString is the one-line form printed by -version.
func VersionString() string {
	return fmt.Sprintf("companywatch %s (commit %s, built %s)", BuildVersion, BuildCommit, BuildDate)
}

func defaultUserAgent() string {
	return "companywatch/" + BuildVersion + " (+https://github.com/hyperifyio/companywatch)"
}
