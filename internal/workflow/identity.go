package workflow

import "github.com/KaramelBytes/qstorm-cli/internal/api"

// Provenance records where the active session id came from.
type Provenance int

const (
	// Anonymous sessions are created by uploads performed without login.
	Anonymous Provenance = iota
	// Authenticated sessions are issued by login.
	Authenticated
)

func (p Provenance) String() string {
	if p == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// ActiveSession is the single session the controller works against.
type ActiveSession struct {
	ID         api.ID
	Provenance Provenance
}

// Resolve picks the active session. An authenticated id always wins; the
// local anonymous id is used only when there is no authenticated one.
func Resolve(auth, local api.ID) (ActiveSession, bool) {
	if !auth.IsZero() {
		return ActiveSession{ID: auth, Provenance: Authenticated}, true
	}
	if !local.IsZero() {
		return ActiveSession{ID: local, Provenance: Anonymous}, true
	}
	return ActiveSession{}, false
}
