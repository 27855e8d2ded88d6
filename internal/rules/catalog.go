// Package rules manages the catalog of mutation rules, seeding each
// category with defaults the first time it is queried empty.
package rules

import (
	"sync"

	"github.com/MohammedMogeab/anomaly-detector/internal/store"
	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

// seededKey marks a category as having been seeded. Once set, an empty
// category stays empty: deleting all rules in a category is an explicit
// operator opt-out, not a request to restore defaults.
func seededKey(category string) string {
	return "rules_seeded_" + category
}

// Catalog serves mutation rules per category. Seeding is lazy and
// happens at most once per category.
type Catalog struct {
	mu    sync.Mutex
	store store.Store
}

// NewCatalog creates a rule catalog backed by the given store.
func NewCatalog(s store.Store) *Catalog {
	return &Catalog{store: s}
}

// ListRules returns the rules for a category, seeding defaults if the
// category has never held rules. Category names are open identifiers;
// querying a category with no defaults simply returns an empty list.
func (c *Catalog) ListRules(category string, enabledOnly bool) ([]types.MutationRule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rules, err := c.store.GetPayloadRules(category, false)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		seeded, err := c.store.GetConfig(seededKey(category))
		if err != nil {
			return nil, err
		}
		if seeded == "" {
			if err := c.seed(category); err != nil {
				return nil, err
			}
			rules, err = c.store.GetPayloadRules(category, false)
			if err != nil {
				return nil, err
			}
		}
	}

	if !enabledOnly {
		return rules, nil
	}
	enabled := rules[:0]
	for _, r := range rules {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	return enabled, nil
}

// AddRule adds an operator-defined rule and marks the category as seeded
// so defaults never overwrite explicit configuration.
func (c *Catalog) AddRule(rule *types.MutationRule) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, err := c.store.AddPayloadRule(rule)
	if err != nil {
		return 0, err
	}
	if err := c.store.SetConfig(seededKey(rule.Category), "1"); err != nil {
		return 0, err
	}
	return id, nil
}

// SetRuleEnabled toggles a rule's enabled flag.
func (c *Catalog) SetRuleEnabled(id int64, enabled bool) error {
	return c.store.SetRuleEnabled(id, enabled)
}

// ClearCategory removes every rule in a category and suppresses future
// re-seeding for it.
func (c *Catalog) ClearCategory(category string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.DeletePayloadRules(category); err != nil {
		return err
	}
	return c.store.SetConfig(seededKey(category), "1")
}

func (c *Catalog) seed(category string) error {
	for _, r := range defaultRules(category) {
		rule := r
		if _, err := c.store.AddPayloadRule(&rule); err != nil {
			return err
		}
	}
	return c.store.SetConfig(seededKey(category), "1")
}
