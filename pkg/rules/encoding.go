package rules

import (
	"net/url"
	"strings"
)

// encodedWidth is the number of units a percent-encoded rune occupies.
const encodedWidth = 3

// EncodedLength returns the destination-encoded length of a slash-separated
// relative path. Space, '#', '%', '&', '+' and every non-ASCII rune count as
// three units; everything else counts as one.
func EncodedLength(rel string) int {
	n := 0

	for _, r := range rel {
		n += RuneWidth(r)
	}

	return n
}

// RuneWidth returns the encoded width of a single rune.
func RuneWidth(r rune) int {
	switch {
	case r == ' ', r == '#', r == '%', r == '&', r == '+':
		return encodedWidth
	case r > 0x7f:
		return encodedWidth
	default:
		return 1
	}
}

// DestinationLength derives the encoded prefix length from a destination
// library URL such as "https://contoso.sharepoint.com/sites/Team/Shared Documents".
// The prefix is the scheme, host and encoded path followed by one separator.
// An empty or unparsable URL yields 0.
func DestinationLength(destination string) int {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return 0
	}

	u, err := url.Parse(destination)
	if err != nil || u.Host == "" {
		return 0
	}

	n := len(u.Scheme) + len("://") + len(u.Host)
	n += EncodedLength(strings.TrimRight(u.Path, "/"))

	return n + 1
}
