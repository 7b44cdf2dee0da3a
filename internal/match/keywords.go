package match

import (
	"loom/internal/project"
	"loom/internal/textutil"
)

// stopWords removes common function words plus the generic visual-prompt
// jargon that appears in nearly every scene and carries no matching signal.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"being": {}, "have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {}, "will": {},
	"would": {}, "could": {}, "should": {}, "may": {}, "might": {}, "shall": {}, "can": {},
	"to": {}, "of": {}, "in": {}, "for": {}, "on": {}, "with": {}, "at": {}, "by": {}, "from": {},
	"and": {}, "or": {}, "but": {}, "not": {}, "no": {}, "nor": {}, "so": {}, "yet": {},
	"as": {}, "if": {}, "then": {}, "than": {}, "that": {}, "this": {}, "these": {}, "those": {},
	"his": {}, "her": {}, "its": {}, "their": {}, "your": {}, "our": {}, "my": {},
	"he": {}, "she": {}, "it": {}, "they": {}, "we": {}, "you": {}, "i": {},
	"him": {}, "them": {}, "us": {}, "me": {}, "who": {}, "whom": {}, "which": {},
	"what": {}, "where": {}, "when": {}, "how": {}, "why": {},
	"all": {}, "each": {}, "every": {}, "both": {}, "few": {}, "more": {},
	"other": {}, "some": {}, "such": {}, "only": {}, "own": {}, "same": {},
	"up": {}, "out": {}, "off": {}, "over": {}, "under": {}, "into": {},
	"about": {}, "between": {}, "through": {}, "during": {}, "before": {}, "after": {},
	"pixar": {}, "disney": {}, "3d": {}, "animation": {}, "rendered": {}, "style": {},
	"quality": {}, "detailed": {}, "ultra": {}, "4k": {}, "cinematic": {},
	"shot": {}, "medium": {}, "close": {}, "wide": {}, "angle": {}, "camera": {},
}

// extractKeywords builds the keyword set from narration plus prompt text.
func extractKeywords(narration string, prompt project.PromptFields) map[string]struct{} {
	words := textutil.Words(narration + " " + prompt.Text())
	keywords := make(map[string]struct{}, len(words))
	for _, word := range words {
		if _, stop := stopWords[word]; stop {
			continue
		}
		keywords[word] = struct{}{}
	}
	return keywords
}
