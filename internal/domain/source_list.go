package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// SourceList is the ordered set of tier names that flagged a domain. It is
// stored as comma-separated text.
type SourceList []string

func (s SourceList) Value() (driver.Value, error) {
	return strings.Join(s, ","), nil
}

func (s *SourceList) Scan(value any) error {
	var raw string
	switch v := value.(type) {
	case nil:
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("domain.SourceList: unsupported type %T", value)
	}

	*s = nil
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}

func (s SourceList) Contains(source string) bool {
	for _, v := range s {
		if v == source {
			return true
		}
	}
	return false
}

func (s SourceList) String() string {
	return strings.Join(s, ", ")
}
