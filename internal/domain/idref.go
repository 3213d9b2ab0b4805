package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// IDRef is a raw id token sent by a client. It is either a canonical
// server id or a client-local placeholder that only means something
// inside one sync batch. JSON numbers and strings are both accepted.
type IDRef string

func (r *IDRef) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		*r = ""
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = IDRef(strings.TrimSpace(s))
	default:
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			return fmt.Errorf("invalid id %s", raw)
		}
		*r = IDRef(raw)
	}
	return nil
}

func (r IDRef) String() string {
	return string(r)
}

func (r IDRef) IsZero() bool {
	return r == ""
}

// ServerID parses the token as a canonical id. Placeholders and
// non-positive numbers are not server ids.
func (r IDRef) ServerID() (int64, bool) {
	id, err := strconv.ParseInt(string(r), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func RefFromID(id int64) IDRef {
	return IDRef(strconv.FormatInt(id, 10))
}
