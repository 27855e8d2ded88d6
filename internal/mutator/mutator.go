// Package mutator generates test cases from recorded baseline requests by
// applying category-scoped mutation rules.
package mutator

import (
	"github.com/MohammedMogeab/anomaly-detector/internal/rules"
	"github.com/MohammedMogeab/anomaly-detector/internal/store"
	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

// Generator produces and persists test cases for recorded requests and
// flows. Generation is deterministic: the same baseline and rule set
// yield the same cases in the same order.
type Generator struct {
	store    store.Store
	catalog  *rules.Catalog
	settings *store.Settings
}

// NewGenerator creates a test case generator.
func NewGenerator(s store.Store, catalog *rules.Catalog) *Generator {
	return &Generator{
		store:    s,
		catalog:  catalog,
		settings: store.NewSettings(s),
	}
}

// requestCategories are the per-request mutation categories, applied in a
// fixed order so generated case IDs are stable across runs.
var requestCategories = []string{
	types.CategoryNumeric,
	types.CategoryString,
	types.CategoryAuth,
	types.CategoryParameter,
}

// GenerateForRequest generates and persists test cases for one recorded
// request across all enabled per-request categories.
func (g *Generator) GenerateForRequest(requestID int64) ([]types.TestCase, error) {
	req, err := g.store.GetRequest(requestID)
	if err != nil {
		return nil, &types.PayloadGenerationError{Op: "get request", Err: err}
	}

	var cases []types.TestCase
	for _, category := range requestCategories {
		if !g.settings.CategoryEnabled(category) {
			continue
		}
		ruleSet, err := g.catalog.ListRules(category, true)
		if err != nil {
			return nil, &types.PayloadGenerationError{Op: "list " + category + " rules", Err: err}
		}
		cases = append(cases, generateForCategory(req, category, ruleSet)...)
	}

	if err := g.persist(cases); err != nil {
		return nil, err
	}
	return cases, nil
}

// GenerateForFlow generates and persists test cases for every request in
// the flow, plus flow-level sequence cases.
func (g *Generator) GenerateForFlow(flowID int64) ([]types.TestCase, error) {
	requests, err := g.store.GetRequests(flowID)
	if err != nil {
		return nil, &types.PayloadGenerationError{Op: "get flow requests", Err: err}
	}

	var cases []types.TestCase
	for i := range requests {
		reqCases, err := g.GenerateForRequest(requests[i].ID)
		if err != nil {
			return nil, err
		}
		cases = append(cases, reqCases...)
	}

	seqCases, err := g.GenerateForFlowSequence(flowID, requests)
	if err != nil {
		return nil, err
	}
	return append(cases, seqCases...), nil
}

// GenerateForFlowSequence generates and persists the flow-level sequence
// cases. Flows with fewer than two requests yield only repeat cases, and
// empty flows yield none.
func (g *Generator) GenerateForFlowSequence(flowID int64, requests []types.Request) ([]types.TestCase, error) {
	if !g.settings.CategoryEnabled(types.CategorySequence) {
		return nil, nil
	}
	if requests == nil {
		var err error
		requests, err = g.store.GetRequests(flowID)
		if err != nil {
			return nil, &types.PayloadGenerationError{Op: "get flow requests", Err: err}
		}
	}
	ruleSet, err := g.catalog.ListRules(types.CategorySequence, true)
	if err != nil {
		return nil, &types.PayloadGenerationError{Op: "list sequence rules", Err: err}
	}
	cases := MutateSequence(requests, ruleSet)
	if err := g.persist(cases); err != nil {
		return nil, err
	}
	return cases, nil
}

func generateForCategory(req *types.Request, category string, ruleSet []types.MutationRule) []types.TestCase {
	switch category {
	case types.CategoryNumeric:
		return MutateNumeric(req, ruleSet)
	case types.CategoryString:
		return MutateString(req, ruleSet)
	case types.CategoryAuth:
		return MutateAuth(req, ruleSet)
	case types.CategoryParameter:
		return MutateParameter(req, ruleSet)
	}
	return nil
}

func (g *Generator) persist(cases []types.TestCase) error {
	for i := range cases {
		id, err := g.store.AddTestCase(&cases[i])
		if err != nil {
			return &types.PayloadGenerationError{Op: "persist test case", Err: err}
		}
		cases[i].ID = id
	}
	return nil
}
