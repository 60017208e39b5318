package upstream

import (
	"net/http"
	"strings"
)

// Kind is one entry of the error taxonomy in spec.md §4.5.
type Kind string

const (
	KindInvalidAuth    Kind = "invalid_auth"
	KindForbiddenRegion Kind = "forbidden_region"
	KindBadRequest     Kind = "bad_request"
	KindNotFoundModel  Kind = "not_found_model"
	KindRateLimited    Kind = "rate_limited"
	KindBilling        Kind = "billing"
	KindContextLength  Kind = "context_length"
	KindUpstreamError  Kind = "upstream_error"
	KindCancelled      Kind = "cancelled"
	KindInternal       Kind = "internal"
)

// classification is one ordered phrase-to-kind rule; the classifier tries
// them top-to-bottom and the first substring match wins.
type classification struct {
	kind     Kind
	status   int
	phrases  []string
}

// Order matches spec.md §4.5's table exactly: evaluated top-to-bottom, first
// match wins.
var classifications = []classification{
	{KindInvalidAuth, http.StatusUnauthorized, []string{"invalid api key", "invalid x-api-key", "incorrect api key", "unauthorized", "authentication"}},
	{KindForbiddenRegion, http.StatusForbidden, []string{"unsupported_country_region_territory", "country, region, or territory not supported"}},
	{KindBadRequest, http.StatusBadRequest, []string{"bad request", "invalid_request_error", "invalid request"}},
	{KindNotFoundModel, http.StatusBadRequest, []string{"model not found", "does not exist", "unknown model", "model_not_found"}},
	{KindRateLimited, http.StatusTooManyRequests, []string{"rate limit", "rate_limit_exceeded", "too many requests"}},
	{KindBilling, http.StatusPaymentRequired, []string{"billing", "quota", "insufficient_quota", "exceeded your current quota"}},
	{KindContextLength, http.StatusBadRequest, []string{"context length", "context_length_exceeded", "maximum context length"}},
	{KindCancelled, 499, []string{"context canceled", "context deadline exceeded", "client disconnected"}},
}

// Classify inspects an error message substring-wise (case-insensitive)
// against the fixed, ordered phrase list of spec.md §4.5; the first match
// wins. Unknown errors pass the message through unaltered as KindUpstreamError
// (or KindInternal if fromLocal is true).
func Classify(message string, fromLocal bool) (Kind, int, string) {
	lower := strings.ToLower(message)
	for _, c := range classifications {
		for _, phrase := range c.phrases {
			if strings.Contains(lower, phrase) {
				return c.kind, c.status, message
			}
		}
	}
	if fromLocal {
		return KindInternal, http.StatusInternalServerError, message
	}
	return KindUpstreamError, http.StatusBadGateway, message
}
