package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Version is a major.minor node type version. Node documents carry it as a
// JSON number (1, 3.2, 4.2); the catalog stores it as a string ("4.2").
// Comparing through Version avoids float pitfalls like 3.10 vs 3.2.
type Version struct {
	Major int
	Minor int
}

// ParseVersion accepts "4", "4.2" or a stringified float.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, fmt.Errorf("empty version")
	}
	parts := strings.SplitN(s, ".", 3)
	if len(parts) > 2 {
		// tolerate a semver-ish "4.2.0" tail
		parts = parts[:2]
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
	}
	v := Version{Major: major}
	if len(parts) == 2 && parts[1] != "" {
		minor, err := strconv.Atoi(parts[1])
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
		}
		v.Minor = minor
	}
	return v, nil
}

// VersionFromNumber converts the JSON-number form (4.2) to a Version.
func VersionFromNumber(f float64) Version {
	v, err := ParseVersion(strconv.FormatFloat(f, 'f', -1, 64))
	if err != nil {
		return Version{Major: int(math.Floor(f))}
	}
	return v
}

func (v Version) String() string {
	if v.Minor == 0 {
		return strconv.Itoa(v.Major)
	}
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Number returns the JSON-number form of the version.
func (v Version) Number() float64 {
	if v.Minor == 0 {
		return float64(v.Major)
	}
	f, err := strconv.ParseFloat(v.String(), 64)
	if err != nil {
		return float64(v.Major)
	}
	return f
}

// Compare returns -1, 0 or 1.
func (v Version) Compare(o Version) int {
	if v.Major != o.Major {
		if v.Major < o.Major {
			return -1
		}
		return 1
	}
	if v.Minor != o.Minor {
		if v.Minor < o.Minor {
			return -1
		}
		return 1
	}
	return 0
}

func (v Version) LessThan(o Version) bool { return v.Compare(o) < 0 }

func (v Version) GreaterThan(o Version) bool { return v.Compare(o) > 0 }

func (v Version) Equal(o Version) bool { return v.Compare(o) == 0 }

func (v Version) IsZero() bool { return v.Major == 0 && v.Minor == 0 }
