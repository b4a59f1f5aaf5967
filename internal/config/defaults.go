package config

const (
	DefaultWorkers             = 8
	DefaultMinScore            = 0.3
	DefaultBlockPrefixLen      = 3
	DefaultFullCompareMaxPairs = 5000
	DefaultNameBoost           = 0.2
	DefaultMatchThreshold      = 0.8
	DefaultConflictThreshold   = 0.3
	DefaultAITimeoutSeconds    = 30
	DefaultAIMaxConcurrent     = 4
	DefaultCRMTimeoutSeconds   = 15
)

// DefaultJudgePrompt receives the two records and the rule context, in that order.
const DefaultJudgePrompt = `You are a contact duplicate detection expert. Decide whether a professional network profile and a CRM contact describe the same person.

<PROFILE>
%s
</PROFILE>

<CRM CONTACT>
%s
</CRM CONTACT>

<RULE BASED COMPARISON>
%s
</RULE BASED COMPARISON>

Confidence levels:
- HIGH: very likely the same person (name and company match, or a unique identifier matches)
- MEDIUM: probably the same person (name and some professional details match)
- LOW: possibly the same person (partial matches)
- NONE: different people (major conflicts or no significant matches)

Return a JSON object with keys "confidence" (one of HIGH, MEDIUM, LOW, NONE) and "reasoning" (one or two sentences).
Example: {"confidence": "MEDIUM", "reasoning": "Same name and employer, titles differ."}`

// DefaultProfileSchema matches the professional network export and scraped profiles.
func DefaultProfileSchema() SourceSchema {
	return SourceSchema{
		ID:           []string{"URL", "profile_url", "id"},
		FirstName:    []string{"First Name", "firstName", "first_name"},
		LastName:     []string{"Last Name", "lastName", "last_name"},
		FullName:     []string{"full_name", "Full Name", "name"},
		Email:        []string{"Email Address", "email", "emailAddress"},
		Organization: []string{"Company", "company", "companyName"},
		Title:        []string{"Position", "headline", "title"},
		Position:     []string{"current_position"},
	}
}

// DefaultCRMSchema matches Dynamics contact entities.
func DefaultCRMSchema() SourceSchema {
	return SourceSchema{
		ID:           []string{"contactid"},
		FirstName:    []string{"firstname"},
		LastName:     []string{"lastname"},
		FullName:     []string{"fullname"},
		Email:        []string{"emailaddress1", "emailaddress2"},
		Organization: []string{"companyname", "parentcustomerid"},
		Title:        []string{"jobtitle"},
	}
}

// DefaultMergeFields maps profile keys onto the CRM keys they may update.
func DefaultMergeFields() map[string]string {
	return map[string]string{
		"First Name":    "firstname",
		"Last Name":     "lastname",
		"Email Address": "emailaddress1",
		"Company":       "companyname",
		"Position":      "jobtitle",
		"URL":           "mc_linkedin",
		"summary":       "description",
	}
}

// Default returns a fully defaulted configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset value.
func (c *Config) ApplyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = "ollama"
		if c.LLM.Model == "" {
			c.LLM.Model = "mistral-small:24b"
		}
		if c.LLM.BaseURL == "" {
			c.LLM.BaseURL = "http://localhost:11434"
		}
	}
	if c.Memgraph.URI == "" {
		c.Memgraph.URI = "bolt://localhost:7687"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "sqlite"
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = "contactsync.db"
	}
	if c.CRM.TimeoutSeconds <= 0 {
		c.CRM.TimeoutSeconds = DefaultCRMTimeoutSeconds
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.File != "" {
		if c.Logging.MaxSizeMB <= 0 {
			c.Logging.MaxSizeMB = 50
		}
		if c.Logging.MaxBackups <= 0 {
			c.Logging.MaxBackups = 3
		}
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Scoring.MatchThreshold == 0 {
		c.Scoring.MatchThreshold = DefaultMatchThreshold
	}
	if c.Scoring.ConflictThreshold == 0 {
		c.Scoring.ConflictThreshold = DefaultConflictThreshold
	}
	if c.Scoring.NameBoost == 0 {
		c.Scoring.NameBoost = DefaultNameBoost
	}
	if c.Batch.Workers <= 0 {
		c.Batch.Workers = DefaultWorkers
	}
	if c.Batch.MinScore == nil {
		v := DefaultMinScore
		c.Batch.MinScore = &v
	}
	if c.Batch.BlockPrefixLen <= 0 {
		c.Batch.BlockPrefixLen = DefaultBlockPrefixLen
	}
	if c.Batch.FullCompareMaxPairs == 0 {
		c.Batch.FullCompareMaxPairs = DefaultFullCompareMaxPairs
	}
	if c.Adjudication.TimeoutSeconds <= 0 {
		c.Adjudication.TimeoutSeconds = DefaultAITimeoutSeconds
	}
	if c.Adjudication.MaxConcurrent <= 0 {
		c.Adjudication.MaxConcurrent = DefaultAIMaxConcurrent
	}
	if c.Adjudication.Prompt == "" {
		c.Adjudication.Prompt = DefaultJudgePrompt
	}
	c.Schemas.Profile = c.Schemas.Profile.withDefaults(DefaultProfileSchema())
	c.Schemas.CRM = c.Schemas.CRM.withDefaults(DefaultCRMSchema())
	if len(c.Merge.Fields) == 0 {
		c.Merge.Fields = DefaultMergeFields()
	}
	if c.Merge.Append == nil {
		c.Merge.Append = []string{"description"}
	}
	if c.Clusters.Method == "" {
		c.Clusters.Method = "components"
	}
}

func (s SourceSchema) withDefaults(def SourceSchema) SourceSchema {
	pick := func(v, d []string) []string {
		if len(v) == 0 {
			return d
		}
		return v
	}
	return SourceSchema{
		ID:           pick(s.ID, def.ID),
		FirstName:    pick(s.FirstName, def.FirstName),
		LastName:     pick(s.LastName, def.LastName),
		FullName:     pick(s.FullName, def.FullName),
		Email:        pick(s.Email, def.Email),
		Organization: pick(s.Organization, def.Organization),
		Title:        pick(s.Title, def.Title),
		Position:     pick(s.Position, def.Position),
	}
}
