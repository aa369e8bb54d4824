package resolver

import (
	"strings"

	"golang.org/x/text/language"
)

// Servers report ISO 639-2/B codes for a handful of languages, which the
// tag parser does not know as aliases.
var bibliographic = map[string]string{
	"alb": "sq",
	"arm": "hy",
	"baq": "eu",
	"bur": "my",
	"chi": "zh",
	"cze": "cs",
	"dut": "nl",
	"fre": "fr",
	"geo": "ka",
	"ger": "de",
	"gre": "el",
	"ice": "is",
	"mac": "mk",
	"mao": "mi",
	"may": "ms",
	"per": "fa",
	"rum": "ro",
	"slo": "sk",
	"tib": "bo",
	"wel": "cy",
}

// baseLanguage returns the base language subtag of code, e.g. "en" for
// "eng", "en" and "en-US". Unknown codes are returned lower cased.
func baseLanguage(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" || code == "und" {
		return ""
	}
	if alias, ok := bibliographic[code]; ok {
		return alias
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	base, conf := tag.Base()
	if conf == language.No {
		return code
	}
	return base.String()
}

// sameLanguage reports whether two language codes name the same base language.
// An empty code never matches.
func sameLanguage(a, b string) bool {
	ba, bb := baseLanguage(a), baseLanguage(b)
	return ba != "" && ba == bb
}
