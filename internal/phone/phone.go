// Package phone holds the single canonical phone-number normalization used at
// every ingress point: bot contact sharing, CRM sync, provider webhooks and
// config. Comparisons elsewhere must be exact matches of normalized values,
// never substring checks.
package phone

import "strings"

// Normalize reduces a raw phone string to the canonical local form
// "0XXXXXXXXX" (digits only, ten characters, leading zero).
//
// Accepted inputs include "+380 93 006 35 85", "380930063585", "930063585"
// and "0930063585"; all normalize to "0930063585". Numbers that do not look
// like a Ukrainian subscriber number are returned digits-only, unchanged
// otherwise, so they can still be compared and logged.
func Normalize(raw string) string {
	d := digits(raw)
	switch {
	case strings.HasPrefix(d, "380") && len(d) == 12:
		return "0" + d[3:]
	case len(d) == 9:
		return "0" + d
	default:
		return d
	}
}

// ToProviderFormat converts a number to the form the telephony provider's
// callback API accepts, which coincides with the canonical local form.
func ToProviderFormat(raw string) string {
	return Normalize(raw)
}

// Same reports whether two raw numbers denote the same subscriber.
func Same(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	return na != "" && na == nb
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
