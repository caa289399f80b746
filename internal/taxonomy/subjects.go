package taxonomy

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/nls-advisor/internal/util"
)

// SubjectProfile configures matching for one school subject.
type SubjectProfile struct {
	Name    string   `json:"name" yaml:"name" mapstructure:"name"`
	Aliases []string `json:"aliases,omitempty" yaml:"aliases" mapstructure:"aliases"`
	// Triggers are lowercased terms naming digital tools used in the subject.
	Triggers     []string        `json:"triggers,omitempty" yaml:"triggers" mapstructure:"triggers"`
	DefaultCode  string          `json:"default_code,omitempty" yaml:"default-code" mapstructure:"default-code"`
	TierDefaults map[Tier]string `json:"tier_defaults,omitempty" yaml:"tier-defaults" mapstructure:"tier-defaults"`
	Action       string          `json:"action,omitempty" yaml:"action" mapstructure:"action"`
}

// DefaultCodeFor returns the fallback code for tier, or "" when none is declared.
func (p SubjectProfile) DefaultCodeFor(tier Tier) string {
	if code := strings.TrimSpace(p.TierDefaults[tier]); code != "" {
		return code
	}
	return strings.TrimSpace(p.DefaultCode)
}

func (p SubjectProfile) normalized() (SubjectProfile, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return p, fmt.Errorf("subject name is required")
	}

	triggers := make([]string, 0, len(p.Triggers))
	for _, term := range p.Triggers {
		if term = util.Fold(strings.TrimSpace(term)); term != "" {
			triggers = append(triggers, term)
		}
	}
	p.Triggers = triggers

	if len(p.TierDefaults) > 0 {
		defaults := make(map[Tier]string, len(p.TierDefaults))
		for tier, code := range p.TierDefaults {
			parsed, err := ParseTier(string(tier))
			if err != nil {
				return p, fmt.Errorf("subject %s: %w", p.Name, err)
			}
			defaults[parsed] = strings.TrimSpace(code)
		}
		p.TierDefaults = defaults
	}

	p.Action = strings.TrimSpace(p.Action)
	return p, nil
}

// Profiles is the ordered, read-only set of subject profiles.
type Profiles struct {
	items []SubjectProfile
	keys  map[string]int
}

// NewProfiles builds the set. A later profile with the same name replaces an
// earlier one in place, which is how config overrides apply on top of the
// built-in profiles.
func NewProfiles(profiles ...SubjectProfile) (*Profiles, error) {
	p := &Profiles{keys: make(map[string]int)}

	for _, profile := range profiles {
		profile, err := profile.normalized()
		if err != nil {
			return nil, err
		}

		key := util.Unaccent(profile.Name)
		if idx, ok := p.keys[key]; ok {
			p.items[idx] = profile
		} else {
			p.keys[key] = len(p.items)
			p.items = append(p.items, profile)
		}
	}

	for idx, profile := range p.items {
		for _, alias := range profile.Aliases {
			key := util.Unaccent(alias)
			if key == "" {
				continue
			}
			if _, taken := p.keys[key]; !taken {
				p.keys[key] = idx
			}
		}
	}

	return p, nil
}

// Get finds a profile by name or alias, ignoring case and diacritics.
func (p *Profiles) Get(name string) (SubjectProfile, error) {
	if idx, ok := p.keys[util.Unaccent(name)]; ok {
		return p.items[idx], nil
	}
	return SubjectProfile{}, fmt.Errorf("%w: %q", ErrUnknownSubject, name)
}

func (p *Profiles) Names() []string {
	names := make([]string, 0, len(p.items))
	for _, item := range p.items {
		names = append(names, item.Name)
	}
	return names
}

func (p *Profiles) All() []SubjectProfile {
	out := make([]SubjectProfile, len(p.items))
	copy(out, p.items)
	return out
}

// With returns a new set where overrides replace or extend the receiver.
func (p *Profiles) With(overrides ...SubjectProfile) (*Profiles, error) {
	return NewProfiles(append(p.All(), overrides...)...)
}

// DecodeProfiles decodes subject overrides coming from generic config maps.
// Unknown keys are rejected so that typos do not silently disable a trigger list.
func DecodeProfiles(raw any) ([]SubjectProfile, error) {
	if raw == nil {
		return nil, nil
	}

	var profiles []SubjectProfile
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &profiles,
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode subject profiles: %w", err)
	}

	return profiles, nil
}
