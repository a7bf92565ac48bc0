package streamload

import "net/http"

// AuthConfig represents authentication configuration.
type AuthConfig interface {
	Apply(req *http.Request)
}

// NoAuth represents no authentication.
type NoAuth struct{}

func (a NoAuth) Apply(req *http.Request) {}

// HeaderAuth sets a precomputed Authorization value, such as the one a
// session derives once at construction.
type HeaderAuth struct {
	Value string
}

// Apply adds the stored Authorization header to the request.
func (a HeaderAuth) Apply(req *http.Request) {
	if a.Value == "" {
		return
	}
	req.Header.Set("Authorization", a.Value)
}
