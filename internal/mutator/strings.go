package mutator

import (
	"fmt"

	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

// MutateString derives string test cases: one per (site, enabled string
// rule, payload literal) triple. Sites are query parameter values and
// JSON string leaves; the literal is concatenated at the rule's position.
func MutateString(req *types.Request, rules []types.MutationRule) []types.TestCase {
	var cases []types.TestCase

	forEachQueryValue(req.URL, func(param string, idx int, value string, rewrite queryRewriter) {
		for _, rule := range rules {
			p, ok := rule.Params.(types.StringPayloadParams)
			if !ok {
				continue
			}
			for _, payload := range p.Payloads {
				modified := concatAt(value, payload, p.Position)
				modifiedURL, err := rewrite(modified)
				if err != nil {
					continue
				}
				cases = append(cases, types.TestCase{
					FlowID:       req.FlowID,
					RequestID:    req.ID,
					Type:         rule.Type,
					Category:     types.CategoryString,
					Description:  fmt.Sprintf("String mutation in query param %s: %q -> %q", param, value, modified),
					PayloadValue: modified,
					ModifiedURL:  modifiedURL,
				})
			}
		}
	})

	forEachJSONLeaf(req, func(leaf jsonLeaf, tree any) {
		value, ok := leaf.value.(string)
		if !ok {
			return
		}
		for _, rule := range rules {
			p, ok := rule.Params.(types.StringPayloadParams)
			if !ok {
				continue
			}
			for _, payload := range p.Payloads {
				modified := concatAt(value, payload, p.Position)
				body, err := patchLeaf(tree, leaf.path, modified)
				if err != nil {
					continue
				}
				cases = append(cases, types.TestCase{
					FlowID:       req.FlowID,
					RequestID:    req.ID,
					Type:         rule.Type,
					Category:     types.CategoryString,
					Description:  fmt.Sprintf("String mutation in JSON body at %s: %q -> %q", pathString(leaf.path), value, modified),
					PayloadValue: modified,
					ModifiedBody: body,
				})
			}
		}
	})

	return cases
}

func concatAt(value, payload, position string) string {
	if position == types.PositionPrepend {
		return payload + value
	}
	return value + payload
}
