package mutator

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

// MutateNumeric derives numeric test cases from the baseline: one per
// (site, enabled numeric rule) pair. Sites are pure unsigned-integer URL
// path segments, query parameter values, and numeric leaves at any depth
// of a JSON body.
func MutateNumeric(req *types.Request, rules []types.MutationRule) []types.TestCase {
	var cases []types.TestCase

	// Path segments. The raw URL is split on '/' so scheme and host
	// segments are scanned too; neither ever looks like a bare integer.
	segments := strings.Split(req.URL, "/")
	for i, segment := range segments {
		if !isIntegerLiteral(segment) {
			continue
		}
		original, err := strconv.ParseInt(segment, 10, 64)
		if err != nil {
			continue
		}
		for _, rule := range rules {
			modified, ok := applyNumericRule(rule, original)
			if !ok {
				continue
			}
			patched := make([]string, len(segments))
			copy(patched, segments)
			patched[i] = strconv.FormatInt(modified, 10)
			cases = append(cases, types.TestCase{
				FlowID:       req.FlowID,
				RequestID:    req.ID,
				Type:         rule.Type,
				Category:     types.CategoryNumeric,
				Description:  fmt.Sprintf("Numeric mutation in path segment %d: %d -> %d", i, original, modified),
				PayloadValue: strconv.FormatInt(modified, 10),
				ModifiedURL:  strings.Join(patched, "/"),
			})
		}
	}

	// Query parameter values.
	cases = append(cases, mutateNumericQuery(req, rules)...)

	// JSON body leaves.
	cases = append(cases, mutateNumericJSON(req, rules)...)

	return cases
}

func mutateNumericQuery(req *types.Request, rules []types.MutationRule) []types.TestCase {
	var cases []types.TestCase
	forEachQueryValue(req.URL, func(param string, idx int, value string, rewrite queryRewriter) {
		if !isIntegerLiteral(value) {
			return
		}
		original, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return
		}
		for _, rule := range rules {
			modified, ok := applyNumericRule(rule, original)
			if !ok {
				continue
			}
			modifiedURL, err := rewrite(strconv.FormatInt(modified, 10))
			if err != nil {
				continue
			}
			cases = append(cases, types.TestCase{
				FlowID:       req.FlowID,
				RequestID:    req.ID,
				Type:         rule.Type,
				Category:     types.CategoryNumeric,
				Description:  fmt.Sprintf("Numeric mutation in query param %s: %d -> %d", param, original, modified),
				PayloadValue: strconv.FormatInt(modified, 10),
				ModifiedURL:  modifiedURL,
			})
		}
	})
	return cases
}

func mutateNumericJSON(req *types.Request, rules []types.MutationRule) []types.TestCase {
	var cases []types.TestCase
	forEachJSONLeaf(req, func(leaf jsonLeaf, tree any) {
		num, ok := leaf.value.(json.Number)
		if !ok {
			return
		}
		for _, rule := range rules {
			candidate, payload, ok := applyNumericRuleJSON(rule, num)
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
				Category:     types.CategoryNumeric,
				Description:  fmt.Sprintf("Numeric mutation in JSON body at %s: %s -> %s", pathString(leaf.path), num.String(), payload),
				PayloadValue: payload,
				ModifiedBody: body,
			})
		}
	})
	return cases
}

// applyNumericRule computes the mutated value for an integer site.
func applyNumericRule(rule types.MutationRule, original int64) (int64, bool) {
	switch p := rule.Params.(type) {
	case types.DeltaParams:
		if rule.Type == types.RuleIDDecrement {
			return original - p.Delta, true
		}
		return original + p.Delta, true
	case types.FixedNumberParams:
		return p.Value, true
	}
	return 0, false
}

// applyNumericRuleJSON computes the mutated value for a JSON numeric
// leaf, preserving integer-vs-float arithmetic. Returns the candidate to
// place in the tree and its audit representation.
func applyNumericRuleJSON(rule types.MutationRule, num json.Number) (any, string, bool) {
	switch p := rule.Params.(type) {
	case types.DeltaParams:
		delta := p.Delta
		if rule.Type == types.RuleIDDecrement {
			delta = -delta
		}
		if i, err := num.Int64(); err == nil {
			v := i + delta
			return json.Number(strconv.FormatInt(v, 10)), strconv.FormatInt(v, 10), true
		}
		f, err := num.Float64()
		if err != nil {
			return nil, "", false
		}
		v := f + float64(delta)
		s := strconv.FormatFloat(v, 'g', -1, 64)
		return json.Number(s), s, true
	case types.FixedNumberParams:
		s := strconv.FormatInt(p.Value, 10)
		return json.Number(s), s, true
	}
	return nil, "", false
}

// isIntegerLiteral reports whether s is a pure unsigned base-10 integer
// literal. Signs, decimals and leading zeros are excluded: "007" is an
// opaque identifier, not a number to do arithmetic on.
func isIntegerLiteral(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) == 1 || s[0] != '0'
}

// queryRewriter rebuilds the request URL with one query value replaced.
type queryRewriter func(newValue string) (string, error)

// forEachQueryValue visits every query parameter value of the URL in
// deterministic order, handing the visitor a rewriter for that site.
func forEachQueryValue(rawURL string, visit func(param string, idx int, value string, rewrite queryRewriter)) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	values, err := url.ParseQuery(parsed.RawQuery)
	if err != nil {
		return
	}

	params := make([]string, 0, len(values))
	for param := range values {
		params = append(params, param)
	}
	sort.Strings(params)

	for _, param := range params {
		for idx, value := range values[param] {
			param, idx, value := param, idx, value
			visit(param, idx, value, func(newValue string) (string, error) {
				rewritten := url.Values{}
				for k, vs := range values {
					cp := make([]string, len(vs))
					copy(cp, vs)
					rewritten[k] = cp
				}
				rewritten[param][idx] = newValue
				u := *parsed
				u.RawQuery = rewritten.Encode()
				return u.String(), nil
			})
		}
	}
}

// forEachJSONLeaf parses the request body as JSON (when the request is
// declared application/json) and visits every leaf. Malformed or
// non-JSON bodies yield no sites.
func forEachJSONLeaf(req *types.Request, visit func(leaf jsonLeaf, tree any)) {
	if len(req.Body) == 0 || !isJSONRequest(req) {
		return
	}
	tree, ok := parseJSONBody(req.Body)
	if !ok {
		return
	}
	for _, leaf := range collectLeaves(tree) {
		visit(leaf, tree)
	}
}

func isJSONRequest(req *types.Request) bool {
	for k, v := range req.Headers {
		if strings.EqualFold(k, "Content-Type") && strings.Contains(strings.ToLower(v), "application/json") {
			return true
		}
	}
	return false
}
