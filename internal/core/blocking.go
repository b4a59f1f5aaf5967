package core

import (
	"sort"
	"strings"

	"github.com/agenthands/contactsync/internal/core/model"
)

// Shared mailbox providers say nothing about who employs a person.
var freemailDomains = map[string]struct{}{
	"gmail.com": {}, "googlemail.com": {}, "yahoo.com": {}, "hotmail.com": {},
	"outlook.com": {}, "live.com": {}, "msn.com": {}, "icloud.com": {}, "me.com": {},
	"aol.com": {}, "gmx.de": {}, "gmx.net": {}, "web.de": {}, "t-online.de": {},
	"proton.me": {}, "protonmail.com": {}, "mail.ru": {}, "yandex.ru": {},
}

type pair struct {
	profile int
	contact int
}

// blockingKeys returns the cheap proxy keys a record is indexed under.
func blockingKeys(n model.NormalizedRecord, prefixLen int) []string {
	keys := make([]string, 0, 4)
	if n.LastName.Present {
		keys = append(keys, "ln:"+runePrefix(n.LastName.Value, prefixLen))
	} else if n.FullName.Present {
		fields := strings.Fields(n.FullName.Value)
		keys = append(keys, "ln:"+runePrefix(fields[len(fields)-1], prefixLen))
	}
	if n.Email.Present {
		keys = append(keys, "em:"+n.Email.Value)
		if d := n.EmailDomain(); d != "" {
			if _, free := freemailDomains[d]; !free {
				keys = append(keys, "dom:"+d)
			}
		}
	}
	if n.Organization.Present {
		keys = append(keys, "org:"+strings.Fields(n.Organization.Value)[0])
	}
	return keys
}

func runePrefix(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

// buildPairs compares everything when the cross product is small enough and
// otherwise only pairs sharing at least one blocking key. Pairs come back
// ordered by profile, then contact.
func buildPairs(profiles, contacts []model.NormalizedRecord, prefixLen, fullCompareMax int) []pair {
	total := len(profiles) * len(contacts)
	if total == 0 {
		return nil
	}
	if fullCompareMax >= 0 && total <= fullCompareMax {
		pairs := make([]pair, 0, total)
		for i := range profiles {
			for j := range contacts {
				pairs = append(pairs, pair{i, j})
			}
		}
		return pairs
	}

	index := make(map[string][]int)
	for j, c := range contacts {
		for _, k := range blockingKeys(c, prefixLen) {
			index[k] = append(index[k], j)
		}
	}

	var pairs []pair
	for i, p := range profiles {
		seen := make(map[int]struct{})
		for _, k := range blockingKeys(p, prefixLen) {
			for _, j := range index[k] {
				seen[j] = struct{}{}
			}
		}
		matched := make([]int, 0, len(seen))
		for j := range seen {
			matched = append(matched, j)
		}
		sort.Ints(matched)
		for _, j := range matched {
			pairs = append(pairs, pair{i, j})
		}
	}
	return pairs
}
