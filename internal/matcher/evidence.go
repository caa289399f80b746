package matcher

import (
	"fmt"
	"strings"

	"github.com/spigell/nls-advisor/internal/util"
)

// evidence picks the first sentence fragment that mentions a trigger term.
// Without one it suggests where the subject's first tool could fit.
func (m *Matcher) evidence(text string, triggers []string) string {
	for _, fragment := range strings.Split(text, ".") {
		folded := util.Fold(fragment)
		for _, term := range triggers {
			if term == "" || !strings.Contains(folded, util.Fold(term)) {
				continue
			}
			return util.Excerpt(strings.Join(strings.Fields(fragment), " "), m.cfg.EvidenceRunes)
		}
	}

	for _, term := range triggers {
		if term != "" {
			return fmt.Sprintf("Có thể tích hợp %s vào hoạt động này.", term)
		}
	}

	return ""
}
