// Package registry maps chart identities to registry addresses. A chart
// name maps deterministically to <registry-root>/<name>; pulls request an
// exact version against that reference.
package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/git-pkgs/purl"
)

// ErrBadRef is returned when a chart reference cannot be parsed.
var ErrBadRef = errors.New("invalid chart reference")

// ChartURLs builds addresses for charts hosted in an OCI registry.
// A zero Root means no registry is configured and every method returns "".
type ChartURLs struct {
	Root string
}

// Configured reports whether a registry root is set.
func (u ChartURLs) Configured() bool {
	return u.Root != ""
}

// Ref returns the pullable registry reference for a chart name.
func (u ChartURLs) Ref(name string) string {
	if u.Root == "" {
		return ""
	}
	return strings.TrimSuffix(u.Root, "/") + "/" + name
}

// Link returns the canonical registry locator recorded in index entries.
// It is the same address a client would pull from.
func (u ChartURLs) Link(name string) string {
	return u.Ref(name)
}

// PURL returns the package URL identity for a chart release.
func (u ChartURLs) PURL(name, version string) string {
	return fmt.Sprintf("pkg:helm/%s@%s", name, version)
}

// ParseRef parses a chart reference of the form "name@version" or a helm
// package URL such as "pkg:helm/name@1.2.3". Both the name and version are
// required.
func ParseRef(ref string) (name, version string, err error) {
	if strings.HasPrefix(ref, "pkg:") {
		p, err := purl.Parse(ref)
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrBadRef, err)
		}
		if p.Name == "" || p.Version == "" {
			return "", "", fmt.Errorf("%w: %s: purl must carry a name and version", ErrBadRef, ref)
		}
		return p.Name, p.Version, nil
	}

	name, version, ok := strings.Cut(ref, "@")
	if !ok || name == "" || version == "" {
		return "", "", fmt.Errorf("%w: %s: expected name@version", ErrBadRef, ref)
	}
	return name, version, nil
}
