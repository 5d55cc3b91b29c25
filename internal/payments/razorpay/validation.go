package razorpay

import "strings"

const (
	// KeyIDPrefixLive is the prefix of live-mode API key ids.
	KeyIDPrefixLive = "rzp_live_"
	// KeyIDPrefixTest is the prefix of test-mode API key ids.
	KeyIDPrefixTest = "rzp_test_"
)

func hasAllowedPrefix(value string, prefixes ...string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return false
	}

	for _, prefix := range prefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}

	return false
}

// IsKeyID reports whether the value looks like a Razorpay API key id.
func IsKeyID(value string) bool {
	return hasAllowedPrefix(value, KeyIDPrefixLive, KeyIDPrefixTest)
}

// IsLiveKeyID reports whether the key id belongs to live mode.
func IsLiveKeyID(value string) bool {
	return hasAllowedPrefix(value, KeyIDPrefixLive)
}
