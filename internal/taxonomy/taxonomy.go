// Package taxonomy holds the digital competency framework and the subject
// profiles used to match lesson text against it. Both are immutable once
// built and safe for concurrent reads.
package taxonomy

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundRequirement replaces the requirement text of a code that does not
// exist for the requested tier.
const NotFoundRequirement = "Không tìm thấy mã trong khung NLS"

var (
	ErrUnknownCode    = errors.New("competency code not found")
	ErrUnknownTier    = errors.New("unknown tier")
	ErrUnknownSubject = errors.New("unknown subject")
)

// Tier is a grade band under which a competency code applies.
type Tier string

const (
	TierTC1 Tier = "TC1"
	TierTC2 Tier = "TC2"
)

// ParseTier accepts tiers case-insensitively.
func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToUpper(strings.TrimSpace(s))) {
	case TierTC1:
		return TierTC1, nil
	case TierTC2:
		return TierTC2, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
}

func (t Tier) String() string { return string(t) }

// CompetencyEntry is one requirement of the framework.
type CompetencyEntry struct {
	Code        string `json:"code" yaml:"code"`
	Tier        Tier   `json:"tier" yaml:"tier"`
	Domain      string `json:"domain,omitempty" yaml:"domain"`
	Description string `json:"description" yaml:"description"`
}

// Table is the read-only competency table, keyed by tier then code.
type Table struct {
	order   []Tier
	entries map[Tier][]CompetencyEntry
	index   map[Tier]map[string]int
	domains map[string]string
}

// NewTable validates entries and builds the table. Entry order per tier is kept.
func NewTable(entries []CompetencyEntry, domains map[string]string) (*Table, error) {
	t := &Table{
		entries: make(map[Tier][]CompetencyEntry),
		index:   make(map[Tier]map[string]int),
		domains: make(map[string]string, len(domains)),
	}

	for k, v := range domains {
		t.domains[k] = v
	}

	for i, entry := range entries {
		entry.Code = strings.TrimSpace(entry.Code)
		entry.Description = strings.TrimSpace(entry.Description)

		if entry.Code == "" {
			return nil, fmt.Errorf("entry %d: code is required", i)
		}
		tier, err := ParseTier(string(entry.Tier))
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", entry.Code, err)
		}
		entry.Tier = tier
		if entry.Description == "" {
			return nil, fmt.Errorf("entry %s: description is required", entry.Code)
		}

		codes, ok := t.index[tier]
		if !ok {
			codes = make(map[string]int)
			t.index[tier] = codes
			t.order = append(t.order, tier)
		}
		if _, dup := codes[entry.Code]; dup {
			return nil, fmt.Errorf("entry %s: duplicate code in tier %s", entry.Code, tier)
		}

		codes[entry.Code] = len(t.entries[tier])
		t.entries[tier] = append(t.entries[tier], entry)
	}

	return t, nil
}

// Lookup returns the entry for code within tier only. Codes that exist under
// a different tier are reported as unknown.
func (t *Table) Lookup(tier Tier, code string) (CompetencyEntry, error) {
	code = strings.TrimSpace(code)
	if codes, ok := t.index[tier]; ok {
		if idx, ok := codes[code]; ok {
			return t.entries[tier][idx], nil
		}
	}
	return CompetencyEntry{}, fmt.Errorf("%w: %q in tier %s", ErrUnknownCode, code, tier)
}

// Requirement returns the requirement text for code or NotFoundRequirement.
func (t *Table) Requirement(tier Tier, code string) (string, bool) {
	entry, err := t.Lookup(tier, code)
	if err != nil {
		return NotFoundRequirement, false
	}
	return entry.Description, true
}

// Entries returns a copy of the tier's entries in table order.
func (t *Table) Entries(tier Tier) []CompetencyEntry {
	src := t.entries[tier]
	out := make([]CompetencyEntry, len(src))
	copy(out, src)
	return out
}

func (t *Table) Tiers() []Tier {
	out := make([]Tier, len(t.order))
	copy(out, t.order)
	return out
}

// Domain returns the framework area name for a domain id.
func (t *Table) Domain(id string) string {
	return t.domains[id]
}

func (t *Table) Len() int {
	n := 0
	for _, entries := range t.entries {
		n += len(entries)
	}
	return n
}
