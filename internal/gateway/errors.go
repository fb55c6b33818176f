package gateway

import "strings"

// quotaSignatures are substrings that mark a provider failure as a
// rate-limit/quota condition across the supported backends.
var quotaSignatures = []string{
	"429",
	"quota",
	"rate limit",
	"rate_limit",
	"ratelimit",
	"resource_exhausted",
	"too many requests",
}

// IsQuotaError reports whether an error looks like a rate-limit or quota
// failure. Used at the boundary to pick the "high traffic" user message.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range quotaSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
