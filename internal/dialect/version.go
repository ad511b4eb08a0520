package dialect

import (
	"fmt"
	"strconv"
	"strings"
)

// Flavor distinguishes MySQL from MariaDB servers.
type Flavor int

const (
	FlavorMySQL Flavor = iota
	FlavorMariaDB
)

func (f Flavor) String() string {
	if f == FlavorMariaDB {
		return "mariadb"
	}
	return "mysql"
}

// Version is a server flavor and release number.
type Version struct {
	Flavor Flavor
	Major  int
	Minor  int
	Patch  int
}

// ParseVersion parses "mysql-8.0.35", "mariadb-10.11" or a bare "8.0.35"
// (MySQL assumed). Missing minor and patch numbers default to zero.
// Server banners such as "10.11.6-MariaDB-log" are accepted as well.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return Version{}, fmt.Errorf("empty server version")
	}

	v := Version{Flavor: FlavorMySQL}
	switch {
	case strings.HasPrefix(s, "mysql-"):
		s = strings.TrimPrefix(s, "mysql-")
	case strings.HasPrefix(s, "mariadb-"):
		v.Flavor = FlavorMariaDB
		s = strings.TrimPrefix(s, "mariadb-")
	case strings.Contains(s, "mariadb"):
		v.Flavor = FlavorMariaDB
	}
	// Drop banner suffixes ("-log", "-mariadb-1:10.11...").
	if i := strings.IndexByte(s, '-'); i >= 0 {
		s = s[:i]
	}

	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		return Version{}, fmt.Errorf("invalid server version %q", s)
	}
	nums := [3]int{}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("invalid server version %q", s)
		}
		nums[i] = n
	}
	v.Major, v.Minor, v.Patch = nums[0], nums[1], nums[2]
	return v, nil
}

// AtLeast reports whether v is o or newer. Versions of different flavors
// never compare as newer.
func (v Version) AtLeast(o Version) bool {
	if v.Flavor != o.Flavor {
		return false
	}
	if v.Major != o.Major {
		return v.Major > o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor > o.Minor
	}
	return v.Patch >= o.Patch
}

// String renders v in the form ParseVersion accepts.
func (v Version) String() string {
	return fmt.Sprintf("%s-%d.%d.%d", v.Flavor, v.Major, v.Minor, v.Patch)
}
