package pacmanconf

import "strings"

// Trust is how strictly signatures of one kind are required.
type Trust int

const (
	Never Trust = iota
	Optional
	Required
)

func (t Trust) String() string {
	switch t {
	case Optional:
		return "Optional"
	case Required:
		return "Required"
	default:
		return "Never"
	}
}

// SigLevel holds the signature requirements for packages and databases.
type SigLevel struct {
	Package  Trust
	Database Trust
}

// DefaultSigLevel is pacman's built-in "Required DatabaseOptional".
var DefaultSigLevel = SigLevel{Package: Required, Database: Optional}

// Apply overlays a SigLevel directive such as "Required DatabaseOptional".
// Unprefixed tokens set both kinds; trust-model tokens are ignored.
func (s SigLevel) Apply(directive string) SigLevel {
	for _, tok := range strings.Fields(directive) {
		pkg, db := true, true
		switch {
		case strings.HasPrefix(tok, "Package"):
			tok, db = strings.TrimPrefix(tok, "Package"), false
		case strings.HasPrefix(tok, "Database"):
			tok, pkg = strings.TrimPrefix(tok, "Database"), false
		}

		var t Trust
		switch tok {
		case "Never":
			t = Never
		case "Optional":
			t = Optional
		case "Required":
			t = Required
		default:
			continue
		}
		if pkg {
			s.Package = t
		}
		if db {
			s.Database = t
		}
	}
	return s
}
