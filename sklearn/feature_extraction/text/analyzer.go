// Package text は scikit-learn の CountVectorizer / TfidfVectorizer 互換の
// テキスト特徴抽出を提供する。
//
// 語彙はアルファベット順に並ぶため、同じ入力からは常に同じ列順が得られる。
package text

import (
	"regexp"
	"strings"
)

// tokenPattern は sklearn の既定 (?u)\b\w\w+\b と同じく2文字以上の単語を拾う
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Analyzer splits a document into word n-grams.
type Analyzer struct {
	Lowercase bool
	StopWords StopWords
	NGramMin  int
	NGramMax  int
}

// Tokenize returns word tokens of doc, lowercased if configured, with stop
// words removed.
func (a Analyzer) Tokenize(doc string) []string {
	if a.Lowercase {
		doc = strings.ToLower(doc)
	}
	tokens := tokenPattern.FindAllString(doc, -1)
	if len(a.StopWords) == 0 {
		return tokens
	}
	kept := tokens[:0]
	for _, t := range tokens {
		if !a.StopWords.Contains(t) {
			kept = append(kept, t)
		}
	}
	return kept
}

// Analyze returns every n-gram of doc for n in [NGramMin, NGramMax].
// Stop words are removed before n-grams are formed.
func (a Analyzer) Analyze(doc string) []string {
	tokens := a.Tokenize(doc)
	lo, hi := a.NGramMin, a.NGramMax
	if lo < 1 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}
	if hi == 1 {
		return tokens
	}
	out := make([]string, 0, len(tokens)*(hi-lo+1))
	if lo == 1 {
		out = append(out, tokens...)
		lo = 2
	}
	for n := lo; n <= hi; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}
