package guard

import (
	"sort"
	"strings"
)

// OperationGuard denies tasks whose verb or text mentions a restricted token.
//
// Matching is by substring on folded text, so "Remove-Item", "rm -rf" and
// "please dеlete it" (Cyrillic е) all hit. The price is false positives such
// as a file called "firmware.txt" when "rm" is restricted.
type OperationGuard struct {
	tokens []string
}

// NewOperationGuard folds, deduplicates and sorts tokens. Empty tokens are
// dropped.
func NewOperationGuard(tokens []string) OperationGuard {
	seen := make(map[string]struct{}, len(tokens))
	folded := make([]string, 0, len(tokens))
	for _, t := range tokens {
		f := strings.TrimSpace(foldText(t))
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		folded = append(folded, f)
	}
	sort.Strings(folded)
	return OperationGuard{tokens: folded}
}

// Check tests the declared verb first, then the raw task text.
func (g OperationGuard) Check(taskText, verb string) Decision {
	if tok, ok := g.match(verb); ok {
		return Deny(ReasonRestrictedOperation, "operation %q is prohibited", tok)
	}
	if tok, ok := g.match(taskText); ok {
		return Deny(ReasonRestrictedOperation, "task text mentions prohibited operation %q", tok)
	}
	return Allow()
}

func (g OperationGuard) match(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	f := foldText(s)
	for _, tok := range g.tokens {
		if strings.Contains(f, tok) {
			return tok, true
		}
	}
	return "", false
}

// Tokens returns the folded restricted tokens in sorted order.
func (g OperationGuard) Tokens() []string {
	return append([]string(nil), g.tokens...)
}
