package guard

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// foldText maps s to the form restricted tokens are matched against:
// NFKC-normalized, invisible formatting characters removed, common
// cross-script homoglyphs folded to ASCII, lowercased.
//
// "ＤＥＬＥＴＥ", "de\u200blete" and "dеlete" (Cyrillic е) all fold to "delete".
func foldText(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	s = norm.NFKC.String(s)
	s = stripInvisible(s)
	s = stripConfusables(s)
	// Replacing a base character can create new composition pairs with
	// combining marks that followed it.
	s = norm.NFKC.String(s)
	return strings.ToLower(s)
}

// hasInvisible reports whether s contains a zero-width or bidi formatting
// character. Paths carrying these are rejected rather than stripped: the
// stripped string would name a different file than the one the OS opens.
func hasInvisible(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return invisibleRunes[r] }) >= 0
}

func stripInvisible(s string) string {
	return strings.Map(func(r rune) rune {
		if invisibleRunes[r] {
			return -1
		}
		return r
	}, s)
}

func stripConfusables(s string) string {
	return strings.Map(func(r rune) rune {
		if ascii, ok := confusableMap[r]; ok {
			return ascii
		}
		return r
	}, s)
}

// confusableMap maps the most common Cyrillic and Greek lookalikes to ASCII.
var confusableMap = map[rune]rune{
	// Cyrillic
	'\u0430': 'a', // а
	'\u0435': 'e', // е
	'\u0456': 'i', // і
	'\u043E': 'o', // о
	'\u0440': 'p', // р
	'\u0441': 'c', // с
	'\u0443': 'y', // у
	'\u0445': 'x', // х
	'\u0455': 's', // ѕ
	'\u0458': 'j', // ј
	'\u04BB': 'h', // һ
	'\u0410': 'A', // А
	'\u0412': 'B', // В
	'\u0415': 'E', // Е
	'\u041A': 'K', // К
	'\u041C': 'M', // М
	'\u041D': 'H', // Н
	'\u041E': 'O', // О
	'\u0420': 'P', // Р
	'\u0421': 'C', // С
	'\u0422': 'T', // Т
	'\u0425': 'X', // Х
	// Greek
	'\u03B1': 'a', // α
	'\u03B5': 'e', // ε
	'\u03B9': 'i', // ι
	'\u03BA': 'k', // κ
	'\u03BD': 'v', // ν
	'\u03BF': 'o', // ο
	'\u03C1': 'p', // ρ
	'\u03C4': 't', // τ
	'\u0391': 'A', // Α
	'\u0392': 'B', // Β
	'\u0395': 'E', // Ε
	'\u0397': 'H', // Η
	'\u0399': 'I', // Ι
	'\u039A': 'K', // Κ
	'\u039C': 'M', // Μ
	'\u039D': 'N', // Ν
	'\u039F': 'O', // Ο
	'\u03A1': 'P', // Ρ
	'\u03A4': 'T', // Τ
	'\u03A7': 'X', // Χ
	'\u03A5': 'Y', // Υ
	'\u0396': 'Z', // Ζ
	// Latin small capitals survive NFKC
	'\u1D00': 'a', // ᴀ
	'\u1D04': 'c', // ᴄ
	'\u1D05': 'd', // ᴅ
	'\u1D07': 'e', // ᴇ
	'\u029F': 'l', // ʟ
	'\u1D0D': 'm', // ᴍ
	'\u0274': 'n', // ɴ
	'\u1D0F': 'o', // ᴏ
	'\u0280': 'r', // ʀ
	'\u1D1B': 't', // ᴛ
	'\u1D1C': 'u', // ᴜ
	'\u1D20': 'v', // ᴠ
}

// invisibleRunes are zero-width and bidi formatting characters.
var invisibleRunes = map[rune]bool{
	'\u200B': true, // zero-width space
	'\u200C': true, // zero-width non-joiner
	'\u200D': true, // zero-width joiner
	'\uFEFF': true, // zero-width no-break space (BOM)
	'\u00AD': true, // soft hyphen
	'\u034F': true, // combining grapheme joiner
	'\u061C': true, // arabic letter mark
	'\u180E': true, // mongolian vowel separator
	'\u2060': true, // word joiner
	'\u2061': true, // function application
	'\u2062': true, // invisible times
	'\u2063': true, // invisible separator
	'\u2064': true, // invisible plus
	'\u200E': true, // left-to-right mark
	'\u200F': true, // right-to-left mark
	'\u202A': true, // left-to-right embedding
	'\u202B': true, // right-to-left embedding
	'\u202C': true, // pop directional formatting
	'\u202D': true, // left-to-right override
	'\u202E': true, // right-to-left override
	'\u2066': true, // left-to-right isolate
	'\u2067': true, // right-to-left isolate
	'\u2068': true, // first strong isolate
	'\u2069': true, // pop directional isolate
}
