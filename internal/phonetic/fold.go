package phonetic

import "strings"

// foldTable maps the diacritic forms that show up in western music catalogs
// to their ASCII base letters. Deliberately small: titles outside this range
// fall through to the fuzzy scorer anyway.
var foldTable = map[rune]string{
	'à': "a", 'á': "a", 'â': "a", 'ã': "a", 'ä': "a", 'å': "a",
	'è': "e", 'é': "e", 'ê': "e", 'ë': "e",
	'ì': "i", 'í': "i", 'î': "i", 'ï': "i",
	'ò': "o", 'ó': "o", 'ô': "o", 'õ': "o", 'ö': "o", 'ø': "o",
	'ù': "u", 'ú': "u", 'û': "u", 'ü': "u",
	'ý': "y", 'ÿ': "y",
	'ñ': "n", 'ç': "c", 'ß': "ss",
	'æ': "ae", 'œ': "oe",
}

// Fold lower-cases s, strips common diacritics, and collapses interior
// whitespace. Two spellings that fold to the same string are treated as an
// exact match by the catalog resolver.
func Fold(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if repl, ok := foldTable[r]; ok {
			b.WriteString(repl)
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
