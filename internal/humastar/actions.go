package humastar

import (
	"fmt"
	"strings"
)

// Action is a link to an operation that is only valid in the resource's
// current state, sent as an RFC 8288 Link header:
//
//	</api/v1/overlays/crashes/toggle>; rel="toggle"; method="POST"; title="Show Crashes"
type Action struct {
	Rel    string
	Href   string
	Method string
	Title  string
}

// Actor is implemented by response bodies that offer actions.
type Actor interface {
	Actions() []Action
}

// LinkHeader formats the action.
func (a Action) LinkHeader() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<%s>; rel="%s"`, a.Href, a.Rel)
	if a.Method != "" {
		fmt.Fprintf(&b, `; method="%s"`, a.Method)
	}
	if a.Title != "" {
		fmt.Fprintf(&b, `; title="%s"`, strings.ReplaceAll(a.Title, `"`, `'`))
	}
	return b.String()
}
