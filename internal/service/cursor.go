package service

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/verifyhub/case-engine/internal/store/model"
)

// EncodeCursor returns the opaque token that continues a newest-first listing
// after c.
func EncodeCursor(c model.Case) string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + "|" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// NextCursor is empty when cases is the last page.
func NextCursor(cases model.CaseList, pageSize int) string {
	if len(cases) == 0 || len(cases) < pageSize {
		return ""
	}
	return EncodeCursor(cases[len(cases)-1])
}

func decodeCursor(cursor string) (time.Time, uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, uuid.Nil, NewErrValidation("invalid cursor %q", cursor)
	}

	nanos, id, found := strings.Cut(string(raw), "|")
	if !found {
		return time.Time{}, uuid.Nil, NewErrValidation("invalid cursor %q", cursor)
	}

	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return time.Time{}, uuid.Nil, NewErrValidation("invalid cursor %q", cursor)
	}

	caseID, err := uuid.Parse(id)
	if err != nil {
		return time.Time{}, uuid.Nil, NewErrValidation("invalid cursor %q", cursor)
	}

	return time.Unix(0, n).UTC(), caseID, nil
}
