// Package build holds the version of the mapxqs binary. The variables are
// overridden at link time with -ldflags "-X".
package build

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"

	"github.com/prometheus/common/version"
)

var (
	Version   = "dev"
	Revision  = "N/A"
	Branch    = "N/A"
	BuildUser = "N/A"
	BuildDate = "N/A"
)

func init() {
	version.Version = Version
	version.Revision = Revision
	version.Branch = Branch
	version.BuildUser = BuildUser
	version.BuildDate = BuildDate
}

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Revision  string `json:"revision"`
	Branch    string `json:"branch"`
	BuildUser string `json:"buildUser"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

func Current() Info {
	return Info{
		Version:   Version,
		Revision:  Revision,
		Branch:    Branch,
		BuildUser: BuildUser,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Summary renders Current as aligned "name: value" lines.
func Summary() string {
	i := Current()
	var sb strings.Builder
	for _, f := range []struct{ name, value string }{
		{"Version", i.Version},
		{"Revision", i.Revision},
		{"Branch", i.Branch},
		{"Build User", i.BuildUser},
		{"Build Date", i.BuildDate},
		{"Go Version", i.GoVersion},
		{"Platform", i.Platform},
	} {
		fmt.Fprintf(&sb, "%-12s%s\n", f.name+":", f.value)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func JSON() string {
	b, _ := json.Marshal(Current())
	return string(b)
}

func PrettyJSON() string {
	b, _ := json.MarshalIndent(Current(), "", "  ")
	return string(b)
}
