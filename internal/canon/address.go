package canon

import (
	"regexp"
	"strings"
)

var (
	rePunct   = regexp.MustCompile(`[^A-Za-z0-9\s]`)
	reAddress = regexp.MustCompile(`^\d+\s+[A-Za-z0-9\s,.-]+$`)
	reZIP     = regexp.MustCompile(`\b(\d{5})(?:-\d{4})?\s*$`)
)

// ValidAddress is the cheap street-address shape check applied before any
// lookup: a house number, whitespace, then street text.
func ValidAddress(s string) bool {
	return reAddress.MatchString(strings.TrimSpace(s))
}

// Standardize trims and collapses whitespace. It is what the records lookup
// falls back to when no standardization service is configured.
func Standardize(s string) string {
	return collapseSpaces(strings.TrimSpace(s))
}

// SplitOneLine breaks "123 Main St, Springfield, IL 62704" into its parts.
// Missing parts come back empty.
func SplitOneLine(addr string) (line1, city, state, zip string) {
	parts := strings.Split(Standardize(addr), ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	line1 = parts[0]
	if len(parts) > 1 {
		city = parts[1]
	}
	if len(parts) > 2 {
		tail := strings.Join(parts[2:], " ")
		if m := reZIP.FindStringSubmatchIndex(tail); m != nil {
			zip = tail[m[2]:m[3]]
			tail = strings.TrimSpace(tail[:m[0]])
		}
		state = tail
	}
	return line1, city, state, zip
}

// Key returns the canonical property key of a one-line address.
func Key(addr string) string {
	_, _, _, _, key := Canonicalize(SplitOneLine(addr))
	return key
}

// Canonicalize normalizes an address and computes a stable property key.
// Unit/suite designators are dropped so the key identifies the parcel.
func Canonicalize(line1, city, state, zip string) (normLine1, normCity, normState, normZip, propertyKey string) {
	n1 := strings.TrimSpace(strings.ToUpper(line1))
	n1 = stripUnit(n1)
	n1 = rePunct.ReplaceAllString(n1, " ")
	n1 = abbreviateSuffix(n1)
	n1 = collapseSpaces(n1)

	c := collapseSpaces(rePunct.ReplaceAllString(strings.ToUpper(strings.TrimSpace(city)), " "))
	st := strings.ToUpper(strings.TrimSpace(state))
	if len(st) > 2 {
		st = stateAbbrev(st)
	}
	z := trimZIP(zip)

	key := strings.ToLower(n1 + "|" + c + "|" + st + "|" + z)
	return n1, c, st, z, key
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func trimZIP(z string) string {
	z = strings.TrimSpace(z)
	if len(z) >= 5 {
		return z[:5]
	}
	return z
}

func stripUnit(s string) string {
	toks := []string{" APT ", " UNIT ", " STE ", " SUITE ", " #"}
	up := " " + s + " "
	for _, t := range toks {
		if i := strings.Index(up, t); i >= 0 {
			return strings.TrimSpace(up[:i])
		}
	}
	return strings.TrimSpace(s)
}

var suffixes = []struct{ long, short string }{
	{"STREET", "ST"},
	{"ROAD", "RD"},
	{"AVENUE", "AVE"},
	{"BOULEVARD", "BLVD"},
	{"DRIVE", "DR"},
	{"LANE", "LN"},
	{"COURT", "CT"},
	{"CIRCLE", "CIR"},
	{"TERRACE", "TER"},
	{"PLACE", "PL"},
	{"PARKWAY", "PKWY"},
	{"HIGHWAY", "HWY"},
}

// abbreviateSuffix applies USPS-style street suffixes on whole words only.
func abbreviateSuffix(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		for _, sfx := range suffixes {
			if w == sfx.long {
				words[i] = sfx.short
				break
			}
		}
	}
	return strings.Join(words, " ")
}

var states = map[string]string{
	"ALABAMA": "AL", "ALASKA": "AK", "ARIZONA": "AZ", "ARKANSAS": "AR", "CALIFORNIA": "CA", "COLORADO": "CO",
	"CONNECTICUT": "CT", "DELAWARE": "DE", "FLORIDA": "FL", "GEORGIA": "GA", "HAWAII": "HI", "IDAHO": "ID",
	"ILLINOIS": "IL", "INDIANA": "IN", "IOWA": "IA", "KANSAS": "KS", "KENTUCKY": "KY", "LOUISIANA": "LA",
	"MAINE": "ME", "MARYLAND": "MD", "MASSACHUSETTS": "MA", "MICHIGAN": "MI", "MINNESOTA": "MN",
	"MISSISSIPPI": "MS", "MISSOURI": "MO", "MONTANA": "MT", "NEBRASKA": "NE", "NEVADA": "NV",
	"NEW HAMPSHIRE": "NH", "NEW JERSEY": "NJ", "NEW MEXICO": "NM", "NEW YORK": "NY", "NORTH CAROLINA": "NC",
	"NORTH DAKOTA": "ND", "OHIO": "OH", "OKLAHOMA": "OK", "OREGON": "OR", "PENNSYLVANIA": "PA",
	"RHODE ISLAND": "RI", "SOUTH CAROLINA": "SC", "SOUTH DAKOTA": "SD", "TENNESSEE": "TN", "TEXAS": "TX",
	"UTAH": "UT", "VERMONT": "VT", "VIRGINIA": "VA", "WASHINGTON": "WA", "WEST VIRGINIA": "WV",
	"WISCONSIN": "WI", "WYOMING": "WY",
}

func stateAbbrev(s string) string {
	if v, ok := states[s]; ok {
		return v
	}
	return s
}
