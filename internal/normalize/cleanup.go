// =============================================================================
// Sales Normalizer - Cell Cleanup Rules
// =============================================================================
//
// Vendors sometimes export cells that need a small, vendor-specific touch
// before the field normalizer can read them: decimal commas, stray prefixes
// on EANs, padded quantities. Cleanup rules are declared per vendor in YAML
// and applied to raw product cells in order.
//
// =============================================================================

package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ginjaninja78/sales-normalizer/internal/config"
)

var (
	digitsRe     = regexp.MustCompile(`\d+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Cleaner applies compiled cleanup rules to raw cell values. A Cleaner is
// immutable once built and safe for concurrent use.
type Cleaner struct {
	steps map[string][]step
}

type step struct {
	action config.CleanupAction
	re     *regexp.Regexp
}

// NewCleaner validates and compiles rules. A nil Cleaner is valid and leaves
// every value unchanged.
func NewCleaner(rules []config.CleanupRule) (*Cleaner, error) {
	c := &Cleaner{steps: make(map[string][]step)}
	for _, rule := range rules {
		for _, action := range rule.Actions {
			s := step{action: action}
			switch action.Type {
			case "trim", "replace", "extract_digits", "remove_leading_zeros",
				"normalize_whitespace", "lookup", "if_empty_use_default":
			case "regex_replace":
				if action.Find != "" {
					re, err := regexp.Compile(action.Find)
					if err != nil {
						return nil, fmt.Errorf("field %s: invalid regex pattern: %w", rule.Field, err)
					}
					s.re = re
				}
			default:
				return nil, fmt.Errorf("field %s: unknown cleanup type: %s", rule.Field, action.Type)
			}
			c.steps[rule.Field] = append(c.steps[rule.Field], s)
		}
	}
	return c, nil
}

// Clean applies the rules for field to value.
func (c *Cleaner) Clean(field, value string) string {
	if c == nil {
		return value
	}
	for _, s := range c.steps[field] {
		value = s.apply(value)
	}
	return value
}

func (s step) apply(value string) string {
	action := s.action
	switch action.Type {
	case "trim":
		return strings.TrimSpace(value)

	case "replace":
		if action.Find == "" {
			return value
		}
		return strings.ReplaceAll(value, action.Find, action.Value)

	case "regex_replace":
		if s.re == nil {
			return value
		}
		return s.re.ReplaceAllString(value, action.Value)

	case "extract_digits":
		return strings.Join(digitsRe.FindAllString(value, -1), "")

	case "remove_leading_zeros":
		trimmed := strings.TrimLeft(value, "0")
		if trimmed == "" && value != "" {
			return "0"
		}
		return trimmed

	case "normalize_whitespace":
		return strings.TrimSpace(whitespaceRe.ReplaceAllString(value, " "))

	case "lookup":
		if replacement, ok := action.LookupTable[value]; ok {
			return replacement
		}
		return value

	case "if_empty_use_default":
		if strings.TrimSpace(value) == "" {
			return action.Value
		}
		return value
	}
	return value
}
