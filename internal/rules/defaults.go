package rules

import (
	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

// defaultRules returns the seed rule set for a category. Unknown
// categories have no defaults.
func defaultRules(category string) []types.MutationRule {
	switch category {
	case types.CategoryNumeric:
		return []types.MutationRule{
			{
				Category:    types.CategoryNumeric,
				Type:        types.RuleIDIncrement,
				Params:      types.DeltaParams{Delta: 1},
				Enabled:     true,
				Description: "Increment numeric IDs in URL paths, query parameters and JSON bodies.",
			},
			{
				Category:    types.CategoryNumeric,
				Type:        types.RuleIDDecrement,
				Params:      types.DeltaParams{Delta: 1},
				Enabled:     true,
				Description: "Decrement numeric IDs in URL paths, query parameters and JSON bodies.",
			},
			{
				Category:    types.CategoryNumeric,
				Type:        types.RuleLargeNumber,
				Params:      types.FixedNumberParams{Value: 999999999},
				Enabled:     true,
				Description: "Replace numeric values with a large number.",
			},
			{
				Category:    types.CategoryNumeric,
				Type:        types.RuleZeroValue,
				Params:      types.FixedNumberParams{Value: 0},
				Enabled:     true,
				Description: "Replace numeric values with zero.",
			},
		}
	case types.CategoryString:
		return []types.MutationRule{
			{
				Category: types.CategoryString,
				Type:     types.RuleSQLInjection,
				Params: types.StringPayloadParams{
					Position: types.PositionAppend,
					Payloads: []string{"' OR 1=1--", "' UNION SELECT NULL,NULL,NULL--"},
				},
				Enabled:     true,
				Description: "Append common SQL injection strings.",
			},
			{
				Category: types.CategoryString,
				Type:     types.RuleXSSString,
				Params: types.StringPayloadParams{
					Position: types.PositionAppend,
					Payloads: []string{"<script>alert(1)</script>", `" onmouseover="alert(1)"`},
				},
				Enabled:     true,
				Description: "Append common XSS strings.",
			},
			{
				Category: types.CategoryString,
				Type:     types.RulePathTraversal,
				Params: types.StringPayloadParams{
					Position: types.PositionPrepend,
					Payloads: []string{"../", `..\`},
				},
				Enabled:     true,
				Description: "Prepend path traversal sequences.",
			},
		}
	case types.CategoryAuth:
		return []types.MutationRule{
			{
				Category:    types.CategoryAuth,
				Type:        types.RuleInvalidToken,
				Params:      types.HeaderSetParams{HeaderName: "Authorization", Value: "Bearer invalid_token"},
				Enabled:     true,
				Description: "Replace the Authorization header with an invalid token.",
			},
			{
				Category:    types.CategoryAuth,
				Type:        types.RuleNoToken,
				Params:      types.HeaderRemoveParams{HeaderName: "Authorization"},
				Enabled:     true,
				Description: "Remove the Authorization header.",
			},
			{
				Category:    types.CategoryAuth,
				Type:        types.RuleSessionFixation,
				Params:      types.CookieParams{CookieName: "JSESSIONID", Value: "fixed_session_id"},
				Enabled:     true,
				Description: "Set a fixed session ID cookie, replacing the Cookie header.",
			},
		}
	case types.CategoryParameter:
		return []types.MutationRule{
			{
				Category:    types.CategoryParameter,
				Type:        types.RuleChangeBoolean,
				Params:      types.CandidateParams{Values: []string{"true", "false", "1", "0"}},
				Enabled:     true,
				Description: "Toggle boolean parameter values.",
			},
			{
				Category:    types.CategoryParameter,
				Type:        types.RuleChangeEnum,
				Params:      types.CandidateParams{Values: []string{"admin", "user", "guest"}},
				Enabled:     true,
				Description: "Change enum parameter values to common roles.",
			},
			{
				Category:    types.CategoryParameter,
				Type:        types.RuleNullByteInjection,
				Params:      types.SuffixParams{Suffix: "%00"},
				Enabled:     true,
				Description: "Append a null byte to parameter values.",
			},
		}
	case types.CategorySequence:
		return []types.MutationRule{
			{
				Category:    types.CategorySequence,
				Type:        types.RuleReorderRequests,
				Params:      types.ReorderParams{Pairs: [][2]int{{1, 2}, {2, 1}}},
				Enabled:     true,
				Description: "Reorder pairs of requests within a flow.",
			},
			{
				Category:    types.CategorySequence,
				Type:        types.RuleSkipRequest,
				Params:      types.SkipParams{Indices: []int{0}},
				Enabled:     true,
				Description: "Skip specific requests in a flow.",
			},
			{
				Category:    types.CategorySequence,
				Type:        types.RuleRepeatRequest,
				Params:      types.RepeatParams{Index: 0, Times: 2},
				Enabled:     true,
				Description: "Repeat a specific request multiple times.",
			},
		}
	}
	return nil
}
