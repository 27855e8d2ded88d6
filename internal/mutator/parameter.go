package mutator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

// MutateParameter derives parameter test cases from query values and JSON
// leaves: boolean toggles, enum substitution and null byte suffixing.
func MutateParameter(req *types.Request, rules []types.MutationRule) []types.TestCase {
	var cases []types.TestCase

	forEachQueryValue(req.URL, func(param string, idx int, value string, rewrite queryRewriter) {
		for _, rule := range rules {
			modified, ok := applyParameterRule(rule, value)
			if !ok {
				continue
			}
			modifiedURL, err := rewrite(modified)
			if err != nil {
				continue
			}
			cases = append(cases, types.TestCase{
				FlowID:       req.FlowID,
				RequestID:    req.ID,
				Type:         rule.Type,
				Category:     types.CategoryParameter,
				Description:  fmt.Sprintf("Parameter mutation in query param %s: %q -> %q", param, value, modified),
				PayloadValue: modified,
				ModifiedURL:  modifiedURL,
			})
		}
	})

	forEachJSONLeaf(req, func(leaf jsonLeaf, tree any) {
		for _, rule := range rules {
			candidate, payload, ok := applyParameterRuleJSON(rule, leaf.value)
			if !ok {
				continue
			}
			body, err := patchLeaf(tree, leaf.path, candidate)
			if err != nil {
				continue
			}
			cases = append(cases, types.TestCase{
				FlowID:       req.FlowID,
				RequestID:    req.ID,
				Type:         rule.Type,
				Category:     types.CategoryParameter,
				Description:  fmt.Sprintf("Parameter mutation in JSON body at %s: %s -> %s", pathString(leaf.path), leafString(leaf.value), payload),
				PayloadValue: payload,
				ModifiedBody: body,
			})
		}
	})

	return cases
}

// applyParameterRule computes the mutated string for a query value.
func applyParameterRule(rule types.MutationRule, value string) (string, bool) {
	switch p := rule.Params.(type) {
	case types.CandidateParams:
		if rule.Type == types.RuleChangeBoolean && !isBooleanish(value) {
			return "", false
		}
		return firstDiffering(p.Values, value)
	case types.SuffixParams:
		return value + p.Suffix, true
	}
	return "", false
}

// applyParameterRuleJSON computes the mutated value for a JSON leaf.
// Boolean toggles pick from the rule's candidate list against the leaf's
// string form, keeping the leaf a real boolean when the candidate parses
// as one; enum and null byte rules apply to string leaves only.
func applyParameterRuleJSON(rule types.MutationRule, value any) (any, string, bool) {
	switch p := rule.Params.(type) {
	case types.CandidateParams:
		if rule.Type == types.RuleChangeBoolean {
			if b, ok := value.(bool); ok {
				candidate, ok := firstDiffering(p.Values, strconv.FormatBool(b))
				if !ok {
					return nil, "", false
				}
				if parsed, err := strconv.ParseBool(candidate); err == nil {
					return parsed, candidate, true
				}
				return candidate, candidate, true
			}
			s, ok := value.(string)
			if !ok || !isBooleanish(s) {
				return nil, "", false
			}
			modified, ok := firstDiffering(p.Values, s)
			return modified, modified, ok
		}
		s, ok := value.(string)
		if !ok {
			return nil, "", false
		}
		modified, ok := firstDiffering(p.Values, s)
		return modified, modified, ok
	case types.SuffixParams:
		s, ok := value.(string)
		if !ok {
			return nil, "", false
		}
		return s + p.Suffix, s + p.Suffix, true
	}
	return nil, "", false
}

// firstDiffering returns the first candidate that differs from the
// current value case-insensitively.
func firstDiffering(candidates []string, current string) (string, bool) {
	for _, c := range candidates {
		if !strings.EqualFold(c, current) {
			return c, true
		}
	}
	return "", false
}

func isBooleanish(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false", "1", "0":
		return true
	}
	return false
}
