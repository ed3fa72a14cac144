package domain

import (
	"fmt"

	"github.com/hashicorp/go-version"
)

// Tool is an installed global tool as reported by the package registry client
type Tool struct {
	PackageID string
	Version   *version.Version
	Command   string
}

// String returns "<package> <version>"
func (t Tool) String() string {
	if t.Version == nil {
		return t.PackageID
	}
	return fmt.Sprintf("%s %s", t.PackageID, t.Version.Original())
}

// UpdateDescriptor is produced by every update poll. Discovered is nil when
// the registry has nothing newer than Running.
type UpdateDescriptor struct {
	PackageID  string
	Running    *version.Version
	Discovered *version.Version
}

// Available reports whether the poll found a newer version
func (d UpdateDescriptor) Available() bool {
	if d.Discovered == nil {
		return false
	}
	if d.Running == nil {
		return true
	}
	return d.Discovered.GreaterThan(d.Running)
}
