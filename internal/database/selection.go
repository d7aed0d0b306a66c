package database

import (
	"fmt"
	"strings"
)

// Mode identifies how the user chose a database.
type Mode string

const (
	// ModeSample selects the bundled, read-only Chinook database.
	ModeSample Mode = "sample"
	// ModeCustomURI selects a database by connection URI.
	ModeCustomURI Mode = "custom-uri"
)

// Selection is a user's database choice. Two selections with the same Key
// resolve to the same Handle within a Selector.
type Selection struct {
	Mode Mode   `json:"mode"`
	URI  string `json:"uri,omitempty"`
}

// Sample returns the selection for the bundled sample database.
func Sample() Selection {
	return Selection{Mode: ModeSample}
}

// CustomURI returns a selection for the given connection URI.
func CustomURI(uri string) Selection {
	return Selection{Mode: ModeCustomURI, URI: strings.TrimSpace(uri)}
}

// ParseMode converts a form or flag value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sample", "use sample db":
		return ModeSample, nil
	case "custom-uri", "custom", "uri":
		return ModeCustomURI, nil
	default:
		return "", fmt.Errorf("unknown database mode %q", s)
	}
}

// FromURI maps an optional --db style value onto a Selection: empty means
// the sample database.
func FromURI(uri string) Selection {
	if strings.TrimSpace(uri) == "" {
		return Sample()
	}
	return CustomURI(uri)
}

// Key is the cache key of the selection.
func (s Selection) Key() string {
	if s.Mode == ModeSample || s.Mode == "" {
		return string(ModeSample)
	}
	return "uri:" + strings.TrimSpace(s.URI)
}

// Validate rejects selections that cannot be resolved without touching the
// network.
func (s Selection) Validate() error {
	switch s.Mode {
	case ModeSample, "":
		return nil
	case ModeCustomURI:
		if strings.TrimSpace(s.URI) == "" {
			return &ConnectionError{Reason: "Please enter database URI to continue!"}
		}
		return nil
	default:
		return &ConnectionError{URI: s.URI, Reason: fmt.Sprintf("unknown selection mode %q", s.Mode)}
	}
}

func (s Selection) String() string {
	if s.Mode == ModeSample || s.Mode == "" {
		return "sample database"
	}
	return redact(s.URI)
}
