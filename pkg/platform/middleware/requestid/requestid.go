// Package requestid assigns every request a sortable id, echoed in the response
// and attached to logs and audit events.
package requestid

import (
	"crypto/rand"
	"net/http"
	"regexp"

	"github.com/oklog/ulid/v2"

	"siaga/pkg/requestcontext"
)

const Header = "X-Request-ID"

// inbound ids are accepted only when they look like ids
var validID = regexp.MustCompile(`^[A-Za-z0-9._-]{8,64}$`)

// Middleware reuses a well-formed inbound X-Request-ID or mints a ULID.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(Header)
		if !validID.MatchString(rid) {
			rid = New()
		}
		w.Header().Set(Header, rid)
		next.ServeHTTP(w, r.WithContext(requestcontext.WithRequestID(r.Context(), rid)))
	})
}

// New returns a fresh ULID string.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
