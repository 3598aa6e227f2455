package similarity

import "strings"

// Porter2 (Snowball English) stemmer. Words containing anything other than
// lowercase ASCII letters and apostrophes are returned unchanged.

var stemExceptions = map[string]string{
	"skis": "ski", "skies": "sky", "dying": "die", "lying": "lie", "tying": "tie",
	"idly": "idl", "gently": "gentl", "ugly": "ugli", "early": "earli",
	"only": "onli", "singly": "singl",
	"sky": "sky", "news": "news", "howe": "howe",
	"atlas": "atlas", "cosmos": "cosmos", "bias": "bias", "andes": "andes",
}

var stemStopAfterStep1a = map[string]struct{}{
	"inning": {}, "outing": {}, "canning": {}, "herring": {}, "earring": {},
	"proceed": {}, "exceed": {}, "succeed": {},
}

// Stem returns the Porter2 stem of a lowercase English word.
func Stem(word string) string {
	if len(word) <= 2 || !isASCIIWord(word) {
		return word
	}
	if s, ok := stemExceptions[word]; ok {
		return s
	}

	w := strings.TrimPrefix(word, "'")
	w = markConsonantY(w)
	r1, r2 := stemRegions(w)

	w = stemStep0(w)
	w = stemStep1a(w)
	if _, ok := stemStopAfterStep1a[w]; ok {
		return w
	}
	w = stemStep1b(w, r1)
	w = stemStep1c(w)
	w = stemStep2(w, r1)
	w = stemStep3(w, r1, r2)
	w = stemStep4(w, r2)
	w = stemStep5(w, r1, r2)

	return strings.ReplaceAll(w, "Y", "y")
}

func isASCIIWord(w string) bool {
	for i := 0; i < len(w); i++ {
		c := w[i]
		if (c < 'a' || c > 'z') && c != '\'' {
			return false
		}
	}
	return true
}

// isVowel treats lowercase y as a vowel; a consonant y has been marked as Y.
func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	return false
}

// markConsonantY uppercases an initial y and every y that follows a vowel.
func markConsonantY(w string) string {
	b := []byte(w)
	for i := range b {
		if b[i] != 'y' {
			continue
		}
		if i == 0 || isVowel(b[i-1]) {
			b[i] = 'Y'
		}
	}
	return string(b)
}

// regionAfter returns the index following the first non-vowel that follows a
// vowel at or after start.
func regionAfter(w string, start int) int {
	for i := start + 1; i < len(w); i++ {
		if !isVowel(w[i]) && isVowel(w[i-1]) {
			return i + 1
		}
	}
	return len(w)
}

func stemRegions(w string) (r1, r2 int) {
	r1 = -1
	for _, prefix := range []string{"gener", "commun", "arsen"} {
		if strings.HasPrefix(w, prefix) {
			r1 = len(prefix)
			break
		}
	}
	if r1 < 0 {
		r1 = regionAfter(w, 0)
	}
	return r1, regionAfter(w, r1)
}

func endsShortSyllable(w string) bool {
	n := len(w)
	switch {
	case n == 2:
		return isVowel(w[0]) && !isVowel(w[1])
	case n > 2:
		c := w[n-1]
		return !isVowel(w[n-3]) && isVowel(w[n-2]) && !isVowel(c) && c != 'w' && c != 'x' && c != 'Y'
	}
	return false
}

func containsVowel(s string) bool {
	for i := 0; i < len(s); i++ {
		if isVowel(s[i]) {
			return true
		}
	}
	return false
}

// longestSuffix returns the longest candidate w ends with, or "".
func longestSuffix(w string, candidates ...string) string {
	best := ""
	for _, s := range candidates {
		if len(s) > len(best) && strings.HasSuffix(w, s) {
			best = s
		}
	}
	return best
}

func stemStep0(w string) string {
	if suf := longestSuffix(w, "'s'", "'s", "'"); suf != "" {
		return w[:len(w)-len(suf)]
	}
	return w
}

func stemStep1a(w string) string {
	switch suf := longestSuffix(w, "sses", "ied", "ies", "us", "ss", "s"); suf {
	case "sses":
		return w[:len(w)-2]
	case "ied", "ies":
		if len(w) > 4 {
			return w[:len(w)-2]
		}
		return w[:len(w)-1]
	case "s":
		if containsVowel(w[:len(w)-2]) {
			return w[:len(w)-1]
		}
	}
	return w
}

func isDouble(w string) bool {
	n := len(w)
	if n < 2 || w[n-1] != w[n-2] {
		return false
	}
	switch w[n-1] {
	case 'b', 'd', 'f', 'g', 'm', 'n', 'p', 'r', 't':
		return true
	}
	return false
}

func stemStep1b(w string, r1 int) string {
	suf := longestSuffix(w, "eed", "eedly", "ed", "edly", "ing", "ingly")
	switch suf {
	case "":
		return w
	case "eed", "eedly":
		if len(w)-len(suf) >= r1 {
			return w[:len(w)-len(suf)] + "ee"
		}
		return w
	}

	stem := w[:len(w)-len(suf)]
	if !containsVowel(stem) {
		return w
	}
	switch {
	case strings.HasSuffix(stem, "at"), strings.HasSuffix(stem, "bl"), strings.HasSuffix(stem, "iz"):
		return stem + "e"
	case isDouble(stem):
		return stem[:len(stem)-1]
	case endsShortSyllable(stem) && r1 >= len(stem):
		return stem + "e"
	}
	return stem
}

func stemStep1c(w string) string {
	n := len(w)
	if n > 2 && (w[n-1] == 'y' || w[n-1] == 'Y') && !isVowel(w[n-2]) {
		return w[:n-1] + "i"
	}
	return w
}

var step2Rules = map[string]string{
	"tional": "tion", "enci": "ence", "anci": "ance", "abli": "able", "entli": "ent",
	"izer": "ize", "ization": "ize", "ational": "ate", "ation": "ate", "ator": "ate",
	"alism": "al", "aliti": "al", "alli": "al", "fulness": "ful", "ousli": "ous",
	"ousness": "ous", "iveness": "ive", "iviti": "ive", "biliti": "ble", "bli": "ble",
	"ogi": "og", "fulli": "ful", "lessli": "less", "li": "",
}

var step2Suffixes = keys(step2Rules)

func stemStep2(w string, r1 int) string {
	suf := longestSuffix(w, step2Suffixes...)
	if suf == "" || len(w)-len(suf) < r1 {
		return w
	}
	stem := w[:len(w)-len(suf)]
	switch suf {
	case "ogi":
		if !strings.HasSuffix(stem, "l") {
			return w
		}
	case "li":
		if stem == "" || !strings.ContainsRune("cdeghkmnrt", rune(stem[len(stem)-1])) {
			return w
		}
	}
	return stem + step2Rules[suf]
}

var step3Rules = map[string]string{
	"tional": "tion", "ational": "ate", "alize": "al", "icate": "ic",
	"iciti": "ic", "ical": "ic", "ful": "", "ness": "", "ative": "",
}

var step3Suffixes = keys(step3Rules)

func stemStep3(w string, r1, r2 int) string {
	suf := longestSuffix(w, step3Suffixes...)
	if suf == "" || len(w)-len(suf) < r1 {
		return w
	}
	if suf == "ative" && len(w)-len(suf) < r2 {
		return w
	}
	return w[:len(w)-len(suf)] + step3Rules[suf]
}

var step4Suffixes = []string{
	"al", "ance", "ence", "er", "ic", "able", "ible", "ant", "ement",
	"ment", "ent", "ism", "ate", "iti", "ous", "ive", "ize", "ion",
}

func stemStep4(w string, r2 int) string {
	suf := longestSuffix(w, step4Suffixes...)
	if suf == "" || len(w)-len(suf) < r2 {
		return w
	}
	stem := w[:len(w)-len(suf)]
	if suf == "ion" && !strings.HasSuffix(stem, "s") && !strings.HasSuffix(stem, "t") {
		return w
	}
	return stem
}

func stemStep5(w string, r1, r2 int) string {
	n := len(w)
	switch {
	case strings.HasSuffix(w, "e"):
		stem := w[:n-1]
		if n-1 >= r2 || (n-1 >= r1 && !endsShortSyllable(stem)) {
			return stem
		}
	case strings.HasSuffix(w, "ll") && n-1 >= r2:
		return w[:n-1]
	}
	return w
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
