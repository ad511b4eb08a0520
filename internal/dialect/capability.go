package dialect

// Capability is a SQL feature that depends on the server version.
type Capability string

const (
	CapLateral         Capability = "LATERAL"
	CapWindowFunctions Capability = "WINDOW_FUNCTIONS"
	CapJSONTable       Capability = "JSON_TABLE"
	CapIntersect       Capability = "INTERSECT"
	CapExcept          Capability = "EXCEPT"
)

// Capabilities lists every known capability in a stable order.
var Capabilities = []Capability{
	CapLateral,
	CapWindowFunctions,
	CapJSONTable,
	CapIntersect,
	CapExcept,
}

// minVersions holds the first release supporting each capability per
// flavor. A missing entry means the flavor never supports it.
var minVersions = map[Capability]map[Flavor]Version{
	CapLateral: {
		FlavorMySQL: {FlavorMySQL, 8, 0, 14},
	},
	CapWindowFunctions: {
		FlavorMySQL:   {FlavorMySQL, 8, 0, 0},
		FlavorMariaDB: {FlavorMariaDB, 10, 2, 0},
	},
	CapJSONTable: {
		FlavorMySQL:   {FlavorMySQL, 8, 0, 4},
		FlavorMariaDB: {FlavorMariaDB, 10, 6, 0},
	},
	CapIntersect: {
		FlavorMySQL:   {FlavorMySQL, 8, 0, 31},
		FlavorMariaDB: {FlavorMariaDB, 10, 3, 0},
	},
	CapExcept: {
		FlavorMySQL:   {FlavorMySQL, 8, 0, 31},
		FlavorMariaDB: {FlavorMariaDB, 10, 3, 0},
	},
}

// MinVersion returns the first release of flavor f that supports c.
func MinVersion(c Capability, f Flavor) (Version, bool) {
	v, ok := minVersions[c][f]
	return v, ok
}

// supportedBy reports whether version v supports c.
func supportedBy(c Capability, v Version) bool {
	first, ok := MinVersion(c, v.Flavor)
	return ok && v.AtLeast(first)
}
