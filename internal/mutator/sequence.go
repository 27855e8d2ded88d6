package mutator

import (
	"encoding/json"
	"fmt"

	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

// MutateSequence derives flow-level test cases by reordering, skipping or
// repeating requests. Each case encodes the full replay order as a JSON
// array of request IDs in PayloadValue. Reorder and skip rules emit one
// case per configured pair or index, each applied to a fresh copy of the
// baseline order.
func MutateSequence(requests []types.Request, rules []types.MutationRule) []types.TestCase {
	if len(requests) == 0 {
		return nil
	}

	ids := make([]int64, len(requests))
	for i, r := range requests {
		ids[i] = r.ID
	}
	flowID := requests[0].FlowID
	anchorID := requests[0].ID

	var cases []types.TestCase
	for _, rule := range rules {
		switch p := rule.Params.(type) {
		case types.ReorderParams:
			for _, pair := range p.Pairs {
				order := swapPair(ids, pair)
				if order == nil {
					continue
				}
				cases = appendSequenceCase(cases, flowID, anchorID, rule.Type,
					fmt.Sprintf("Reorder requests: swap positions %d and %d", pair[0], pair[1]), order)
			}
		case types.SkipParams:
			for _, index := range p.Indices {
				order := dropIndex(ids, index)
				if order == nil {
					continue
				}
				cases = appendSequenceCase(cases, flowID, anchorID, rule.Type,
					fmt.Sprintf("Skip request at index %d", index), order)
			}
		case types.RepeatParams:
			order := repeatID(ids, p.Index, p.Times)
			if order == nil {
				continue
			}
			cases = appendSequenceCase(cases, flowID, anchorID, rule.Type,
				fmt.Sprintf("Repeat request at index %d %d times", p.Index, p.Times), order)
		}
	}
	return cases
}

func appendSequenceCase(cases []types.TestCase, flowID, anchorID int64, ruleType, description string, order []int64) []types.TestCase {
	payload, err := json.Marshal(order)
	if err != nil {
		return cases
	}
	return append(cases, types.TestCase{
		FlowID:       flowID,
		RequestID:    anchorID,
		Type:         ruleType,
		Category:     types.CategorySequence,
		Description:  description,
		PayloadValue: string(payload),
	})
}

// swapPair swaps the requests at one 1-based position pair on a copy of
// the baseline order. Pairs touching positions outside the flow produce
// no case.
func swapPair(ids []int64, pair [2]int) []int64 {
	a, b := pair[0]-1, pair[1]-1
	if a < 0 || b < 0 || a >= len(ids) || b >= len(ids) {
		return nil
	}
	order := append([]int64(nil), ids...)
	order[a], order[b] = order[b], order[a]
	return order
}

// dropIndex removes the request at one 0-based index from a copy of the
// baseline order. Indices outside the flow produce no case.
func dropIndex(ids []int64, index int) []int64 {
	if index < 0 || index >= len(ids) {
		return nil
	}
	order := make([]int64, 0, len(ids)-1)
	order = append(order, ids[:index]...)
	return append(order, ids[index+1:]...)
}

// repeatID issues the request at the 0-based index times in total, the
// extra copies inserted immediately after the original.
func repeatID(ids []int64, index, times int) []int64 {
	if index < 0 || index >= len(ids) {
		return nil
	}
	order := make([]int64, 0, len(ids)+times-1)
	for i, id := range ids {
		order = append(order, id)
		if i == index {
			for n := 1; n < times; n++ {
				order = append(order, id)
			}
		}
	}
	return order
}
