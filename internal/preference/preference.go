// Package preference interprets the Prefer request header (RFC 7240) for
// mutation responses.
package preference

import (
	"net/http"
	"strings"
)

// Return is the requested response body for a mutation.
type Return string

const (
	// ReturnDefault means the client expressed no preference.
	ReturnDefault Return = ""
	// ReturnMinimal asks for an empty 204 response.
	ReturnMinimal Return = "minimal"
	// ReturnRepresentation asks for the affected record in the body.
	ReturnRepresentation Return = "representation"
)

// Preference holds the preferences the service honours.
type Preference struct {
	Return Return
}

// ParsePrefer reads every Prefer header of r. Tokens are case-insensitive and
// parameters after ';' are ignored. When return is given more than once the
// last value wins.
func ParsePrefer(r *http.Request) Preference {
	var pref Preference
	for _, header := range r.Header.Values("Prefer") {
		for _, item := range strings.Split(header, ",") {
			token, _, _ := strings.Cut(item, ";")
			name, value, ok := strings.Cut(strings.TrimSpace(token), "=")
			if !ok || !strings.EqualFold(strings.TrimSpace(name), "return") {
				continue
			}
			switch Return(strings.ToLower(strings.Trim(strings.TrimSpace(value), `"`))) {
			case ReturnMinimal:
				pref.Return = ReturnMinimal
			case ReturnRepresentation:
				pref.Return = ReturnRepresentation
			}
		}
	}
	return pref
}

// ShouldReturnContent reports whether the response carries the record.
// Mutations return the record unless return=minimal was requested.
func (p Preference) ShouldReturnContent() bool {
	return p.Return != ReturnMinimal
}

// Applied returns the Preference-Applied header value, or "" when the client
// expressed no preference.
func (p Preference) Applied() string {
	if p.Return == ReturnDefault {
		return ""
	}
	return "return=" + string(p.Return)
}

// Apply sets Preference-Applied on w when a preference was honoured.
func (p Preference) Apply(w http.ResponseWriter) {
	if v := p.Applied(); v != "" {
		w.Header().Set("Preference-Applied", v)
	}
}
