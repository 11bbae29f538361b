package v1alpha1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/verifyhub/case-engine/internal/service"
)

func etag(version int) string {
	return strconv.Quote(strconv.Itoa(version))
}

func setETag(w http.ResponseWriter, version int) {
	w.Header().Set("ETag", etag(version))
}

// precondition is the version a mutation is conditional on and where it came from.
type precondition struct {
	version int
	ifMatch bool
}

// expectedVersion merges If-Match with the body's expectedVersion. "*" and
// an absent header impose nothing.
func expectedVersion(r *http.Request, fromBody *int) (precondition, error) {
	header := strings.TrimSpace(r.Header.Get("If-Match"))
	if header == "" || header == "*" {
		if fromBody != nil {
			return precondition{version: *fromBody}, nil
		}
		return precondition{}, nil
	}

	raw := strings.TrimPrefix(header, "W/")
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	version, err := strconv.Atoi(raw)
	if err != nil || version < 1 {
		return precondition{}, service.NewErrValidation("invalid If-Match header %q", header)
	}
	if fromBody != nil && *fromBody != version {
		return precondition{}, service.NewErrValidation("If-Match %d does not agree with expectedVersion %d", version, *fromBody)
	}
	return precondition{version: version, ifMatch: true}, nil
}
