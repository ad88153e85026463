// Package phone normalizes Brazilian WhatsApp phone numbers so that
// formatting differences never block a conversation↔lead match.
package phone

import (
	"strings"
)

const countryCode = "55"

// Canonical strips everything but digits.
func Canonical(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Variants returns the de-duplicated set of equivalent representations of a
// number: the canonical form, with and without the 55 country code, and the
// 8/9-digit mobile forms (the extra leading 9 after the area code).
func Variants(s string) []string {
	canonical := Canonical(s)
	if canonical == "" {
		return nil
	}

	seen := map[string]bool{}
	var out []string
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}

	add(canonical)

	// Country code on/off.
	if strings.HasPrefix(canonical, countryCode) && len(canonical) >= 12 {
		add(canonical[len(countryCode):])
	} else if len(canonical) >= 10 && len(canonical) <= 11 {
		add(countryCode + canonical)
	}

	// Ninth-digit forms for every variant collected so far.
	for _, v := range append([]string(nil), out...) {
		add(withNinthDigit(v))
		add(withoutNinthDigit(v))
	}

	return out
}

// Matches reports whether two numbers refer to the same line under any of
// their variant representations.
func Matches(a, b string) bool {
	bs := map[string]bool{}
	for _, v := range Variants(b) {
		bs[v] = true
	}
	for _, v := range Variants(a) {
		if bs[v] {
			return true
		}
	}
	return false
}

// withNinthDigit inserts the mobile 9 after the area code on 10-digit local
// or 12-digit international numbers.
func withNinthDigit(v string) string {
	switch {
	case strings.HasPrefix(v, countryCode) && len(v) == 12:
		return v[:4] + "9" + v[4:]
	case !strings.HasPrefix(v, countryCode) && len(v) == 10:
		return v[:2] + "9" + v[2:]
	}
	return ""
}

// withoutNinthDigit drops the mobile 9 on 11-digit local or 13-digit
// international numbers.
func withoutNinthDigit(v string) string {
	switch {
	case strings.HasPrefix(v, countryCode) && len(v) == 13 && v[4] == '9':
		return v[:4] + v[5:]
	case !strings.HasPrefix(v, countryCode) && len(v) == 11 && v[2] == '9':
		return v[:2] + v[3:]
	}
	return ""
}
