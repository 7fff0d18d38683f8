package version

// Version represents the Major.Minor.Patch version tag
// from GIT, supplied at build time via -ldflags - else 'dev'
// as a default
var Version string = "dev"

// UserAgent identifies the bridge to the vendor cloud
func UserAgent() string {
	return "bluestar-bridge/" + Version
}
