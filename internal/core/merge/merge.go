package merge

import (
	"slices"
	"sort"
	"strings"

	"github.com/agenthands/contactsync/internal/config"
	"github.com/agenthands/contactsync/internal/core/model"
)

// FieldMapping maps profile keys onto the CRM keys they may update.
type FieldMapping struct {
	Fields map[string]string
	// Append lists CRM keys whose value is extended rather than replaced.
	Append []string
}

func DefaultMapping() FieldMapping {
	return FieldMapping{
		Fields: config.DefaultMergeFields(),
		Append: []string{"description"},
	}
}

func FromConfig(cfg config.MergeConfig) FieldMapping {
	if len(cfg.Fields) == 0 {
		m := DefaultMapping()
		if cfg.Append != nil {
			m.Append = cfg.Append
		}
		return m
	}
	return FieldMapping{Fields: cfg.Fields, Append: cfg.Append}
}

// Propose returns the CRM fields that the profile would fill or change.
// A field is included when the profile has a value and the CRM value is
// empty or differs beyond case and surrounding space. Append fields gain the
// profile text after a blank line unless they already contain it. When two
// profile keys target the same CRM key the first in sorted order wins.
func Propose(profile, crm model.Record, m FieldMapping) map[string]any {
	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	updates := make(map[string]any)
	for _, pk := range keys {
		ck := m.Fields[pk]
		if ck == "" {
			continue
		}
		if _, taken := updates[ck]; taken {
			continue
		}
		pv := profile.String(pk)
		if pv == "" {
			continue
		}
		cv := crm.String(ck)

		if slices.Contains(m.Append, ck) {
			switch {
			case cv == "":
				updates[ck] = pv
			case !strings.Contains(cv, pv):
				updates[ck] = cv + "\n\n" + pv
			}
			continue
		}
		if cv == "" || !strings.EqualFold(cv, pv) {
			updates[ck] = pv
		}
	}
	return updates
}
