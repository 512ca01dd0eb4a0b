package version

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Set via ldflags at build time.
var (
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
	Info      BuildInfo
)

func init() {
	Info = BuildInfo{
		Version: Version,
		Commit:  Commit,
		Date:    BuildDate,
	}
}

type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"build_date"`
}

func (i BuildInfo) Print(w io.Writer, output string) error {
	switch output {
	case "json":
		res, err := json.Marshal(i)
		if err != nil {
			return errors.Wrap(err, "could not marshal version info to json")
		}
		_, err = fmt.Fprintln(w, string(res))
		return err

	default:
		_, err := fmt.Fprintf(w, `botmon
Version: %s
Commit: %s
Date: %s
`, i.Version, i.Commit, i.Date)
		return err
	}
}
