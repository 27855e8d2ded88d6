package mutator

import (
	"fmt"

	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

// MutateAuth derives one test case per enabled auth rule, each carrying a
// full replacement header set.
func MutateAuth(req *types.Request, rules []types.MutationRule) []types.TestCase {
	var cases []types.TestCase

	for _, rule := range rules {
		headers := copyHeaderMap(req.Headers)
		var (
			description  string
			payloadValue string
		)

		switch p := rule.Params.(type) {
		case types.HeaderSetParams:
			headers[p.HeaderName] = p.Value
			description = fmt.Sprintf("Set invalid token in %s header", p.HeaderName)
			payloadValue = p.Value
		case types.HeaderRemoveParams:
			// Removing an absent header leaves the set byte-identical,
			// but the probe is still recorded: an auth-required endpoint
			// reached with no credential is a meaningful test.
			delete(headers, p.HeaderName)
			description = fmt.Sprintf("Remove %s header", p.HeaderName)
			payloadValue = "<removed>"
		case types.CookieParams:
			// The Cookie header is replaced outright, not merged with
			// existing cookies. Any other session state the baseline
			// carried in Cookie is dropped.
			headers["Cookie"] = p.CookieName + "=" + p.Value
			description = fmt.Sprintf("Set fixed session cookie %s=%s", p.CookieName, p.Value)
			payloadValue = p.Value
		default:
			continue
		}

		cases = append(cases, types.TestCase{
			FlowID:          req.FlowID,
			RequestID:       req.ID,
			Type:            rule.Type,
			Category:        types.CategoryAuth,
			Description:     description,
			PayloadValue:    payloadValue,
			ModifiedHeaders: headers,
		})
	}

	return cases
}

func copyHeaderMap(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
