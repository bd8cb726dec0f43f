package orchestrator

import (
	"regexp"
	"strings"
)

// SilenceMarker is the directive an agent emits to decline its turn. It can
// appear anywhere in the response; once seen, the turn resolves as silent.
const SilenceMarker = "[SILENCE]"

// imageDirectivePattern matches a single inline image request of the form
// [GEN_IMG: scene text]. The scene text runs to the closing bracket.
var imageDirectivePattern = regexp.MustCompile(`\[GEN_IMG:\s*([^\]]*)\]`)

const imageDirectivePrefix = "[GEN_IMG:"

// ContainsSilence reports whether the text carries the silence directive.
func ContainsSilence(text string) bool {
	return strings.Contains(text, SilenceMarker)
}

// ExtractImageDirective scans text for one inline image directive. It
// returns the visible content with the directive stripped and trimmed, the
// extracted scene text, and whether a well-formed directive was found.
//
// A directive that is opened but never closed (the model stopped
// mid-directive) is stripped from the visible content and ignored rather
// than leaked to the user.
func ExtractImageDirective(text string) (cleaned, scene string, ok bool) {
	if match := imageDirectivePattern.FindStringSubmatch(text); match != nil {
		cleaned = strings.TrimSpace(strings.Replace(text, match[0], "", 1))
		scene = strings.TrimSpace(match[1])
		if scene == "" {
			return cleaned, "", false
		}
		return cleaned, scene, true
	}

	// Malformed fallback: unclosed directive at the tail of the text.
	if idx := strings.Index(text, imageDirectivePrefix); idx >= 0 {
		return strings.TrimSpace(text[:idx]), "", false
	}

	return text, "", false
}
