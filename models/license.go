package models

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	DefaultOwner = "unknown"
	DateLayout   = "2006-01-02"
)

// License is a single allow-list entry. A record without "enabled" in the
// stored document decodes as disabled; other values are read by truthiness.
type License struct {
	Owner   string `json:"owner"`
	Enabled bool   `json:"enabled"`
	Created string `json:"created"`
}

func (l *License) UnmarshalJSON(data []byte) error {
	var doc struct {
		Owner   string          `json:"owner"`
		Enabled json.RawMessage `json:"enabled"`
		Created string          `json:"created"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	*l = License{Owner: doc.Owner, Enabled: truthy(doc.Enabled), Created: doc.Created}
	return nil
}

// truthy treats false, null, 0, "", [] and {} as false and anything else as true.
func truthy(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return false
	}

	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	case []interface{}:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	default:
		return false
	}
}

// Licenses maps a license identifier to its record. It is always read and
// written as a whole.
type Licenses map[string]License

func NewLicense(owner string, now time.Time) License {
	return License{
		Owner:   owner,
		Enabled: true,
		Created: now.UTC().Format(DateLayout),
	}
}

// Allows reports whether id names an enabled license. Unknown and disabled
// identifiers give the same answer.
func (l Licenses) Allows(id string) bool {
	license, exists := l[id]
	return exists && license.Enabled
}

// Toggle flips the enabled flag of id and reports whether id was present.
func (l Licenses) Toggle(id string) bool {
	license, exists := l[id]
	if !exists {
		return false
	}
	license.Enabled = !license.Enabled
	l[id] = license
	return true
}

// IDs returns the identifiers in lexical order.
func (l Licenses) IDs() []string {
	ids := make([]string, 0, len(l))
	for id := range l {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (l Licenses) Clone() Licenses {
	clone := make(Licenses, len(l))
	for id, license := range l {
		clone[id] = license
	}
	return clone
}
