package relational

import (
	"strconv"
	"unicode"
	"unicode/utf8"
)

// Aliases is the set of table aliases allocated in one translation. It is
// an immutable value: Next returns a new set and leaves the receiver as it
// was, so a binder can thread it through recursive calls.
type Aliases struct {
	used map[string]struct{}
}

// NewAliases returns a set with the given aliases already taken.
func NewAliases(reserved ...string) Aliases {
	used := make(map[string]struct{}, len(reserved))
	for _, r := range reserved {
		used[r] = struct{}{}
	}
	return Aliases{used: used}
}

// Next allocates an alias for a table named name: its first letter in lower
// case, followed by 0, 1, ... when that letter is taken.
func (a Aliases) Next(name string) (string, Aliases) {
	prefix := "t"
	if r, _ := utf8.DecodeRuneInString(name); unicode.IsLetter(r) {
		prefix = string(unicode.ToLower(r))
	}
	alias := prefix
	for i := 0; a.Has(alias); i++ {
		alias = prefix + strconv.Itoa(i)
	}
	used := make(map[string]struct{}, len(a.used)+1)
	for k := range a.used {
		used[k] = struct{}{}
	}
	used[alias] = struct{}{}
	return alias, Aliases{used: used}
}

// Has reports whether alias is taken.
func (a Aliases) Has(alias string) bool {
	_, ok := a.used[alias]
	return ok
}

// Len returns the number of allocated aliases.
func (a Aliases) Len() int { return len(a.used) }
