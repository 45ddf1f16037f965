package utils

import "strings"

// stateAbbreviations maps USPS two-letter codes to full state names for the
// 50 states plus DC. Lookups are case-insensitive and bidirectional.
var stateAbbreviations = map[string]string{
	"AL": "Alabama",
	"AK": "Alaska",
	"AZ": "Arizona",
	"AR": "Arkansas",
	"CA": "California",
	"CO": "Colorado",
	"CT": "Connecticut",
	"DE": "Delaware",
	"DC": "District of Columbia",
	"FL": "Florida",
	"GA": "Georgia",
	"HI": "Hawaii",
	"ID": "Idaho",
	"IL": "Illinois",
	"IN": "Indiana",
	"IA": "Iowa",
	"KS": "Kansas",
	"KY": "Kentucky",
	"LA": "Louisiana",
	"ME": "Maine",
	"MD": "Maryland",
	"MA": "Massachusetts",
	"MI": "Michigan",
	"MN": "Minnesota",
	"MS": "Mississippi",
	"MO": "Missouri",
	"MT": "Montana",
	"NE": "Nebraska",
	"NV": "Nevada",
	"NH": "New Hampshire",
	"NJ": "New Jersey",
	"NM": "New Mexico",
	"NY": "New York",
	"NC": "North Carolina",
	"ND": "North Dakota",
	"OH": "Ohio",
	"OK": "Oklahoma",
	"OR": "Oregon",
	"PA": "Pennsylvania",
	"RI": "Rhode Island",
	"SC": "South Carolina",
	"SD": "South Dakota",
	"TN": "Tennessee",
	"TX": "Texas",
	"UT": "Utah",
	"VT": "Vermont",
	"VA": "Virginia",
	"WA": "Washington",
	"WV": "West Virginia",
	"WI": "Wisconsin",
	"WY": "Wyoming",
}

// stateNames is the reverse lookup, lowercase full name to USPS code.
var stateNames = func() map[string]string {
	m := make(map[string]string, len(stateAbbreviations))
	for abbr, name := range stateAbbreviations {
		m[strings.ToLower(name)] = abbr
	}
	return m
}()

// NormalizeState returns the USPS abbreviation for a state token when it is
// recognized (either form), otherwise the trimmed input unchanged.
func NormalizeState(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	upper := strings.ToUpper(s)
	if _, ok := stateAbbreviations[upper]; ok {
		return upper
	}
	if abbr, ok := stateNames[strings.ToLower(s)]; ok {
		return abbr
	}
	return s
}

// StateEquivalent reports whether two state tokens refer to the same state:
// identical strings, or abbreviation vs. full name in either direction,
// case-insensitively.
func StateEquivalent(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	if strings.EqualFold(a, b) {
		return true
	}
	return strings.EqualFold(NormalizeState(a), NormalizeState(b))
}
