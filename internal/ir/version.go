package ir

// Version constants for the query IR and translator.
const (
	// IRVersion is the query IR schema version. It is folded into every
	// structural hash so cached plans never survive an IR change.
	IRVersion = "1"

	// TranslatorVersion is the querylift translator version.
	TranslatorVersion = "0.1.0"
)
