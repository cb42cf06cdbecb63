package model

import "strings"

// PathSeparator separates package names in a yarn dependency path.
const PathSeparator = ">"

// Advisory is one vulnerability record reported by the audit tool.
// Values are created while decoding the audit stream and are read-only afterwards.
type Advisory struct {
	ID                 string    `json:"id"`
	GitHubAdvisoryID   string    `json:"github_advisory_id,omitempty"`
	Severity           Severity  `json:"severity"`
	URL                string    `json:"url"`
	ModuleName         string    `json:"module_name,omitempty"`
	Title              string    `json:"title,omitempty"`
	VulnerableVersions string    `json:"vulnerable_versions,omitempty"`
	PatchedVersions    string    `json:"patched_versions,omitempty"`
	Recommendation     string    `json:"recommendation,omitempty"`
	Findings           []Finding `json:"findings"`
}

// Finding is one group of dependency paths through which the vulnerable
// package is reachable.
type Finding struct {
	Version string   `json:"version,omitempty"`
	Paths   []string `json:"paths"`
}

// Keys returns every identifier an exclusion may use to refer to the advisory.
func (a Advisory) Keys() []string {
	if a.GitHubAdvisoryID == "" {
		return []string{a.ID}
	}
	return []string{a.ID, a.GitHubAdvisoryID}
}

// Paths returns all dependency paths across all findings, in order.
func (a Advisory) Paths() []string {
	var paths []string
	for _, f := range a.Findings {
		paths = append(paths, f.Paths...)
	}
	return paths
}

// DependencyPath is a parsed module ancestry chain, root first.
type DependencyPath []string

// ParseDependencyPath splits "root>child>leaf" into its package names.
func ParseDependencyPath(s string) DependencyPath {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, PathSeparator)
	path := make(DependencyPath, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			path = append(path, p)
		}
	}
	return path
}

// Root returns the top-level package of the path, the one declared in the manifest.
func (p DependencyPath) Root() string {
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

func (p DependencyPath) String() string {
	return strings.Join(p, PathSeparator)
}
