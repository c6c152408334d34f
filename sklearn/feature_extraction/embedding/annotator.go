// Package embedding encodes documents as the average of their token
// embedding vectors, wrapped as sparse rows so the block can be stacked
// with the other feature blocks.
package embedding

import (
	"context"
	"regexp"
	"strings"
)

// PronounLemma は代名詞に付与される見出し語 (spaCy v2 と同じ)
const PronounLemma = "-PRON-"

// Token is one annotated token.
type Token struct {
	Text  string
	Lemma string
}

// Annotator splits a document into tokens carrying a base form.
type Annotator interface {
	Annotate(ctx context.Context, doc string) ([]Token, error)
}

// wordOrPunct は単語 (アポストロフィ含む) または記号1文字に分割する
var wordOrPunct = regexp.MustCompile(`[\p{L}\p{N}_]+(?:'[\p{L}]+)?|[^\s\p{L}\p{N}_]`)

var pronouns = map[string]struct{}{
	"i": {}, "me": {}, "my": {}, "mine": {}, "myself": {},
	"you": {}, "your": {}, "yours": {}, "yourself": {}, "yourselves": {},
	"he": {}, "him": {}, "his": {}, "himself": {},
	"she": {}, "her": {}, "hers": {}, "herself": {},
	"it": {}, "its": {}, "itself": {},
	"we": {}, "us": {}, "our": {}, "ours": {}, "ourselves": {},
	"they": {}, "them": {}, "their": {}, "theirs": {}, "themselves": {},
}

var irregular = map[string]string{
	"am": "be", "is": "be", "are": "be", "was": "be", "were": "be", "been": "be", "being": "be",
	"has": "have", "had": "have", "having": "have",
	"does": "do", "did": "do", "done": "do",
	"went": "go", "gone": "go",
	"made": "make", "got": "get", "bought": "buy", "worn": "wear", "wore": "wear",
	"children": "child", "men": "man", "women": "woman", "feet": "foot",
}

// RuleAnnotator is a dependency-free English annotator: regexp
// tokenization plus a small suffix-stripping lemmatizer. Personal pronouns
// get PronounLemma.
type RuleAnnotator struct{}

// Annotate tokenizes doc.
func (RuleAnnotator) Annotate(_ context.Context, doc string) ([]Token, error) {
	words := wordOrPunct.FindAllString(doc, -1)
	out := make([]Token, len(words))
	for i, w := range words {
		out[i] = Token{Text: w, Lemma: Lemmatize(w)}
	}
	return out, nil
}

// Lemmatize returns the base form of word.
func Lemmatize(word string) string {
	w := strings.ToLower(word)
	if i := strings.IndexByte(w, '\''); i > 0 {
		w = w[:i]
	}
	if _, ok := pronouns[w]; ok {
		return PronounLemma
	}
	if l, ok := irregular[w]; ok {
		return l
	}
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "sses"):
		return w[:len(w)-2]
	case len(w) > 3 && strings.HasSuffix(w, "s") &&
		!strings.HasSuffix(w, "ss") && !strings.HasSuffix(w, "us") && !strings.HasSuffix(w, "is"):
		return w[:len(w)-1]
	}
	return w
}
