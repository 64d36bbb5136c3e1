// Package normalize cleans up values coming back from the book catalog before
// they are stored: language codes, author slugs and HTML descriptions.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/text/unicode/norm"
)

// language is one row of the lookup table: ISO 639-1, ISO 639-2 codes
// (terminological first, bibliographic second when it differs) and English name.
type language struct {
	code  string
	alpha []string
	name  string
	alias []string
}

//nolint:gochecknoglobals // Static lookup table for language normalization
var languages = []language{
	{"en", []string{"eng"}, "English", nil},
	{"es", []string{"spa"}, "Spanish", []string{"castilian"}},
	{"fr", []string{"fra", "fre"}, "French", nil},
	{"de", []string{"deu", "ger"}, "German", nil},
	{"it", []string{"ita"}, "Italian", nil},
	{"pt", []string{"por"}, "Portuguese", nil},
	{"nl", []string{"nld", "dut"}, "Dutch", []string{"flemish"}},
	{"ru", []string{"rus"}, "Russian", nil},
	{"ja", []string{"jpn"}, "Japanese", nil},
	{"zh", []string{"zho", "chi"}, "Chinese", []string{"mandarin", "cantonese"}},
	{"ko", []string{"kor"}, "Korean", nil},
	{"ar", []string{"ara"}, "Arabic", nil},
	{"hi", []string{"hin"}, "Hindi", nil},
	{"pl", []string{"pol"}, "Polish", nil},
	{"sv", []string{"swe"}, "Swedish", nil},
	{"no", []string{"nor"}, "Norwegian", []string{"bokmal"}},
	{"da", []string{"dan"}, "Danish", nil},
	{"fi", []string{"fin"}, "Finnish", nil},
	{"tr", []string{"tur"}, "Turkish", nil},
	{"el", []string{"ell", "gre"}, "Greek", nil},
	{"he", []string{"heb"}, "Hebrew", nil},
	{"cs", []string{"ces", "cze"}, "Czech", nil},
	{"hu", []string{"hun"}, "Hungarian", nil},
	{"ro", []string{"ron", "rum"}, "Romanian", nil},
	{"th", []string{"tha"}, "Thai", nil},
	{"vi", []string{"vie"}, "Vietnamese", nil},
	{"id", []string{"ind"}, "Indonesian", nil},
	{"ms", []string{"msa", "may"}, "Malay", nil},
	{"uk", []string{"ukr"}, "Ukrainian", nil},
	{"ca", []string{"cat"}, "Catalan", nil},
	{"hr", []string{"hrv"}, "Croatian", nil},
	{"sk", []string{"slk", "slo"}, "Slovak", nil},
	{"bg", []string{"bul"}, "Bulgarian", nil},
	{"sr", []string{"srp"}, "Serbian", nil},
	{"fa", []string{"fas", "per"}, "Persian", []string{"farsi"}},
	{"bn", []string{"ben"}, "Bengali", nil},
	{"ta", []string{"tam"}, "Tamil", nil},
	{"ur", []string{"urd"}, "Urdu", nil},
	{"sw", []string{"swa"}, "Swahili", nil},
	{"af", []string{"afr"}, "Afrikaans", nil},
	{"cy", []string{"cym", "wel"}, "Welsh", nil},
	{"ga", []string{"gle"}, "Irish", []string{"gaelic"}},
	{"eu", []string{"eus", "baq"}, "Basque", nil},
	{"is", []string{"isl", "ice"}, "Icelandic", nil},
	{"la", []string{"lat"}, "Latin", nil},
	{"eo", []string{"epo"}, "Esperanto", nil},
	{"tl", []string{"tgl", "fil"}, "Tagalog", []string{"filipino"}},
}

//nolint:gochecknoglobals // Built once from the table above
var (
	byCode  = map[string]*language{}
	byAlias = map[string]string{}
)

func init() {
	for i := range languages {
		l := &languages[i]
		byCode[l.code] = l
		byAlias[strings.ToLower(l.name)] = l.code
		for _, a := range l.alpha {
			byAlias[a] = l.code
		}
		for _, a := range l.alias {
			byAlias[a] = l.code
		}
	}
}

// LanguageCode converts a language representation to an ISO 639-1 code.
// It accepts 2- and 3-letter codes, locale tags ("en-US", "pt_BR") and English
// names. Unrecognized values yield "".
func LanguageCode(raw string) string {
	s := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(raw, "\x00", "")))
	if s == "" {
		return ""
	}

	if idx := strings.IndexAny(s, "-_"); idx > 0 {
		s = s[:idx]
	}

	if _, ok := byCode[s]; ok {
		return s
	}
	return byAlias[s]
}

// LanguageCodeOr is LanguageCode with a fallback for unrecognized input.
func LanguageCodeOr(raw, fallback string) string {
	if code := LanguageCode(raw); code != "" {
		return code
	}
	return fallback
}

// Language returns the English display name for a language ("deu" -> "German").
func Language(raw string) string {
	if l, ok := byCode[LanguageCode(raw)]; ok {
		return l.name
	}
	return ""
}

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

// Slug lower-cases and hyphenates a name, folding accents to ASCII.
// "Ursula K. Le Guin" -> "ursula-k-le-guin", "Gabriel García Márquez" -> "gabriel-garcia-marquez".
func Slug(s string) string {
	s = norm.NFKD.String(s)
	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)
	s = nonAlphanumeric.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

// Description converts a catalog HTML description to markdown. Plain text passes
// through unchanged apart from whitespace trimming. If conversion fails the
// input is returned trimmed.
func Description(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.ContainsAny(raw, "<&") {
		return raw
	}
	md, err := htmltomarkdown.ConvertString(raw)
	if err != nil {
		return raw
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(md, "\n\n"))
}

//nolint:gochecknoglobals // Static replacer
var isbnSeparators = strings.NewReplacer("-", "", " ", "")

// ISBN strips hyphens and spaces and upper-cases a trailing check digit X so
// the result can be handed to an ISBN validator.
func ISBN(raw string) string {
	return strings.ToUpper(isbnSeparators.Replace(strings.TrimSpace(raw)))
}
