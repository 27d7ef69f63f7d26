package drafting

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

var (
	wordPattern    = regexp.MustCompile(`[A-Za-z0-9][A-Za-z0-9'’-]*`)
	sentenceEnd    = regexp.MustCompile(`[.!?]+["”’)]*(\s+|$)`)
	paragraphBreak = regexp.MustCompile(`\n\s*\n`)
)

// Grade is the Flesch–Kincaid grade level of text, rounded to one decimal.
// Text without words scores 0.
func Grade(text string) float64 {
	sentences, words, syllables := 0, 0, 0
	for _, s := range splitSentences(text) {
		ws := wordPattern.FindAllString(s, -1)
		if len(ws) == 0 {
			continue
		}
		sentences++
		words += len(ws)
		for _, w := range ws {
			syllables += Syllables(w)
		}
	}
	if words == 0 {
		return 0
	}
	g := 0.39*float64(words)/float64(sentences) + 11.8*float64(syllables)/float64(words) - 15.59
	return math.Round(g*10) / 10
}

// Syllables estimates the syllable count of an English word from its vowel groups.
// Numbers and other tokens without letters count as one.
func Syllables(word string) int {
	w := strings.ToLower(strings.TrimFunc(word, func(r rune) bool { return !unicode.IsLetter(r) }))
	if strings.IndexFunc(w, unicode.IsLetter) < 0 {
		return 1
	}
	if len(w) <= 3 {
		return 1
	}

	count := 0
	prev := false
	for i, r := range w {
		v := isVowel(r) || (r == 'y' && i > 0)
		if v && !prev {
			count++
		}
		prev = v
	}

	n := len(w)
	switch {
	case strings.HasSuffix(w, "le") && !isVowel(rune(w[n-3])):
		// table, little
	case strings.HasSuffix(w, "e"):
		count--
	case strings.HasSuffix(w, "ed") && !strings.ContainsRune("td", rune(w[n-3])):
		count--
	case strings.HasSuffix(w, "es") && !strings.ContainsRune("sxzhcg", rune(w[n-3])):
		count--
	}
	return max(count, 1)
}

func isVowel(r rune) bool {
	return strings.ContainsRune("aeiou", r)
}

// splitSentences breaks text into sentences. Paragraph breaks and heading lines end a
// sentence even without terminal punctuation.
func splitSentences(text string) []string {
	var out []string
	for _, p := range paragraphs(text) {
		for _, s := range sentenceEnd.Split(p, -1) {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// paragraphs splits a body on blank lines, dropping empty ones.
func paragraphs(body string) []string {
	var out []string
	for _, p := range paragraphBreak.Split(strings.TrimSpace(body), -1) {
		if p = strings.Join(strings.Fields(p), " "); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func wordCount(s string) int {
	return len(wordPattern.FindAllString(s, -1))
}
