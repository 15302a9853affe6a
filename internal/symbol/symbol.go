// Package symbol decomposes compact options tickers such as NIFTY250930P25800.
package symbol

import "strings"

// OptionType classifies an options contract.
type OptionType string

const (
	Put  OptionType = "PUT"
	Call OptionType = "CALL"
)

// expiryLen is the width of the YYMMDD expiry that precedes the type marker.
const expiryLen = 6

// Info holds the components of an options ticker.
type Info struct {
	IndexName   string
	ExpiryDate  string
	OptionType  OptionType
	StrikePrice string
}

// Complete reports whether every component is populated.
func (i Info) Complete() bool {
	return i.IndexName != "" && i.ExpiryDate != "" && i.OptionType != "" && i.StrikePrice != ""
}

// Candidate reports whether s carries a type marker worth parsing.
func Candidate(s string) bool {
	return strings.ContainsAny(s, "PC")
}

// Parse splits s into index, expiry, type and strike.
//
// A P anywhere in the ticker wins over C. The ticker must split on the marker
// into exactly two non-empty parts, and the part before the marker must hold
// at least the six expiry characters. Anything else returns false.
func Parse(s string) (Info, bool) {
	var (
		marker string
		kind   OptionType
	)
	switch {
	case strings.Contains(s, "P"):
		marker, kind = "P", Put
	case strings.Contains(s, "C"):
		marker, kind = "C", Call
	default:
		return Info{}, false
	}

	parts := strings.Split(s, marker)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Info{}, false
	}

	prefix := parts[0]
	if len(prefix) < expiryLen {
		return Info{}, false
	}

	cut := len(prefix) - expiryLen
	return Info{
		IndexName:   prefix[:cut],
		ExpiryDate:  prefix[cut:],
		OptionType:  kind,
		StrikePrice: parts[1],
	}, true
}
