package registry

import (
	"strings"

	"github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"

	"github.com/charliek/evergreen/internal/domain"
)

// toolListHeaderLines is the header of "dotnet tool list -g": a title row
// and a dashed separator.
const toolListHeaderLines = 2

// ParseToolList parses the output of "dotnet tool list -g". Each row has
// the package id, version and commands separated by runs of spaces; only
// the first command is kept.
// Rows that cannot be parsed are skipped.
func ParseToolList(output string) []domain.Tool {
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")
	if len(lines) <= toolListHeaderLines {
		return nil
	}

	var tools []domain.Tool
	for _, line := range lines[toolListHeaderLines:] {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 3 {
			log.WithField("line", line).Debug("skipping tool list row")
			continue
		}

		v, err := version.NewVersion(fields[1])
		if err != nil {
			log.WithField("line", line).WithError(err).Warn("skipping tool with unparsable version")
			continue
		}

		tools = append(tools, domain.Tool{
			PackageID: fields[0],
			Version:   v,
			Command:   strings.TrimSuffix(fields[2], ","),
		})
	}
	return tools
}
