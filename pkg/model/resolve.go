package model

// ResolveRequest describes what the user asked to fetch.
type ResolveRequest struct {
	Targets    []string // "name" or "repo/name"
	Sysupgrade bool     // add every outdated installed package
	Databases  bool     // fetch sync databases instead of packages
	Files      bool     // fetch .files databases instead of .db
	OutputDir  string
}

// Resolution is the outcome of resolving a request against the sync databases.
type Resolution struct {
	Packages     []PackageArtifact
	Dependencies []PackageArtifact
	Unresolved   []string
	// Foreign lists installed packages that no sync repository provides.
	Foreign []string
}

// All returns packages followed by dependencies, without duplicates by filename.
func (r Resolution) All() []PackageArtifact {
	seen := make(map[string]struct{}, len(r.Packages)+len(r.Dependencies))
	var out []PackageArtifact
	for _, list := range [][]PackageArtifact{r.Packages, r.Dependencies} {
		for _, p := range list {
			if _, ok := seen[p.Filename]; ok {
				continue
			}
			seen[p.Filename] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
