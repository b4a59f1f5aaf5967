package normalize

import (
	"strings"

	"github.com/agenthands/contactsync/internal/config"
	"github.com/agenthands/contactsync/internal/core/model"
)

// SourceSchema names the keys a source uses for each canonical field.
type SourceSchema = config.SourceSchema

// ProfileSchema is the default schema for professional network profiles.
func ProfileSchema() SourceSchema { return config.DefaultProfileSchema() }

// CRMSchema is the default schema for CRM contacts.
func CRMSchema() SourceSchema { return config.DefaultCRMSchema() }

// Normalizer maps raw records of one source onto model.NormalizedRecord.
// It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	schema SourceSchema
}

func New(schema SourceSchema) *Normalizer {
	return &Normalizer{schema: schema}
}

func (n *Normalizer) Schema() SourceSchema {
	return n.schema
}

// Identifier returns the record's source identifier, or "" when it has none.
func (n *Normalizer) Identifier(r model.Record) string {
	return r.String(n.schema.ID...)
}

// Normalize never fails: unknown or empty fields come back absent.
func (n *Normalizer) Normalize(r model.Record) model.NormalizedRecord {
	first := FoldName(r.String(n.schema.FirstName...))
	last := FoldText(r.String(n.schema.LastName...))
	full := FoldName(r.String(n.schema.FullName...))

	if first == "" && last == "" && full != "" {
		if tokens := strings.Fields(full); len(tokens) >= 2 {
			first, last = tokens[0], tokens[len(tokens)-1]
		}
	}
	switch {
	case first != "" && last != "":
		full = first + " " + last
	case full == "":
		full = strings.TrimSpace(first + " " + last)
	}

	title := FoldText(r.String(n.schema.Title...))
	org := FoldOrganization(r.String(n.schema.Organization...))
	if title == "" || org == "" {
		if pt, po, ok := SplitPosition(r.String(n.schema.Position...)); ok {
			if title == "" {
				title = FoldText(pt)
			}
			if org == "" {
				org = FoldOrganization(po)
			}
		}
	}

	return model.NormalizedRecord{
		FullName:     model.NewField(full),
		FirstName:    model.NewField(first),
		LastName:     model.NewField(last),
		Email:        model.NewField(FoldEmail(r.String(n.schema.Email...))),
		Organization: model.NewField(org),
		Title:        model.NewField(title),
	}
}

// SplitPosition splits "Title at Company" on the last " at " or " @ ".
func SplitPosition(position string) (title, org string, ok bool) {
	lower := strings.ToLower(position)
	idx, sepLen := strings.LastIndex(lower, " at "), len(" at ")
	if i := strings.LastIndex(lower, " @ "); i > idx {
		idx, sepLen = i, len(" @ ")
	}
	if idx < 0 {
		return "", "", false
	}
	title = strings.TrimSpace(position[:idx])
	org = strings.TrimSpace(position[idx+sepLen:])
	if org == "" {
		return "", "", false
	}
	return title, org, true
}
