package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Store.Backend) {
	case "sqlite", "memgraph", "memory":
	default:
		errs = append(errs, fmt.Errorf("store.backend: unsupported backend %q", c.Store.Backend))
	}
	if v := c.Batch.MinScoreValue(); v < 0 || v > 1 {
		errs = append(errs, fmt.Errorf("batch.min_score: %v outside [0,1]", v))
	}
	if c.Scoring.ConflictThreshold >= c.Scoring.MatchThreshold {
		errs = append(errs, fmt.Errorf("scoring: conflict_threshold %v must be below match_threshold %v",
			c.Scoring.ConflictThreshold, c.Scoring.MatchThreshold))
	}
	if c.Scoring.NameBoost < 0 || c.Scoring.NameBoost > 1 {
		errs = append(errs, fmt.Errorf("scoring.name_boost: %v outside [0,1]", c.Scoring.NameBoost))
	}
	if c.Adjudication.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("adjudication.requests_per_second: must not be negative"))
	}
	if c.Adjudication.Enabled && strings.Count(c.Adjudication.Prompt, "%s") != 3 {
		errs = append(errs, errors.New("adjudication.prompt: expected three %s placeholders (profile, contact, rule context)"))
	}
	if c.CRM.ClientID != "" && c.CRM.TokenURL == "" {
		errs = append(errs, errors.New("crm.token_url: required with crm.client_id"))
	}
	switch strings.ToLower(c.Clusters.Method) {
	case "components", "lpa":
	default:
		errs = append(errs, fmt.Errorf("clusters.method: unsupported method %q", c.Clusters.Method))
	}
	if len(c.Schemas.CRM.ID) == 0 {
		errs = append(errs, errors.New("schemas.crm.id: at least one identifier key is required"))
	}

	return errors.Join(errs...)
}
