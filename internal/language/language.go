package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"dubber/internal/services"
)

// Target is a language the backend can dub into.
type Target struct {
	Code  string
	Label string
	Note  string
	tag   language.Tag
}

// Native returns the language name in its own script, e.g. "español".
func (t Target) Native() string {
	if name := display.Self.Name(t.tag); name != "" {
		return name
	}
	return t.Label
}

type entry struct {
	target Target
	alt3   string   // ISO 639-2/B code when it differs from the terminology code
	words  []string // full word forms accepted on the command line
}

var targets = []entry{
	{Target{Code: "en", Label: "English", Note: "English is the default target language."}, "", []string{"english"}},
	{Target{Code: "es", Label: "Spanish", Note: "Spanish is one of the most widely spoken languages in the world."}, "", []string{"spanish", "espanol", "español"}},
	{Target{Code: "fr", Label: "French", Note: "French is known for its elegant pronunciation and is spoken in many countries."}, "fre", []string{"french"}},
	{Target{Code: "de", Label: "German", Note: "German is known for its precision and is widely used in business."}, "ger", []string{"german", "deutsch"}},
	{Target{Code: "it", Label: "Italian", Note: "Italian is a musical language with expressive gestures."}, "", []string{"italian"}},
	{Target{Code: "pt", Label: "Portuguese", Note: "Portuguese is spoken in Portugal, Brazil, and parts of Africa."}, "", []string{"portuguese"}},
	{Target{Code: "ru", Label: "Russian", Note: "Russian uses the Cyrillic alphabet and has complex grammar."}, "", []string{"russian"}},
	{Target{Code: "ja", Label: "Japanese", Note: "Japanese uses three writing systems and has unique sentence structure."}, "", []string{"japanese"}},
	{Target{Code: "ko", Label: "Korean", Note: "Korean has a unique alphabet called Hangul that is scientifically designed."}, "", []string{"korean"}},
	{Target{Code: "zh-CN", Label: "Chinese (Simplified)", Note: "Chinese (Simplified) is the most spoken language in the world."}, "chi", []string{"chinese", "mandarin"}},
}

// Index maps built at init time.
var (
	byBase map[language.Base]*entry
	byCode map[string]*entry
	byWord map[string]*entry
)

func init() {
	byBase = make(map[language.Base]*entry, len(targets))
	byCode = make(map[string]*entry, len(targets)*3)
	byWord = make(map[string]*entry, len(targets)*2)
	for i := range targets {
		e := &targets[i]
		e.target.tag = language.MustParse(e.target.Code)
		base, _ := e.target.tag.Base()
		byBase[base] = e
		byCode[strings.ToLower(e.target.Code)] = e
		byCode[base.ISO3()] = e
		if e.alt3 != "" {
			byCode[e.alt3] = e
		}
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

// Supported lists the dubbing targets in presentation order.
func Supported() []Target {
	out := make([]Target, 0, len(targets))
	for _, e := range targets {
		out = append(out, e.target)
	}
	return out
}

// Lookup resolves a code, BCP 47 tag, ISO 639-2 code, or English word to a
// supported target.
func Lookup(input string) (Target, bool) {
	e := lookup(input)
	if e == nil {
		return Target{}, false
	}
	return e.target, true
}

func lookup(input string) *entry {
	code := strings.ToLower(strings.TrimSpace(input))
	if code == "" {
		return nil
	}
	code = strings.ReplaceAll(code, "_", "-")
	if e, ok := byCode[code]; ok {
		return e
	}
	if e, ok := byWord[code]; ok {
		return e
	}
	tag, err := language.Parse(code)
	if err != nil {
		return nil
	}
	base, conf := tag.Base()
	if conf != language.Exact {
		return nil
	}
	e, ok := byBase[base]
	if !ok {
		return nil
	}
	if base.String() == "zh" && !simplifiedChinese(tag) {
		return nil
	}
	return e
}

// simplifiedChinese reports whether a Chinese tag resolves to the Hans
// script, which is the only Chinese variant the backend produces.
func simplifiedChinese(tag language.Tag) bool {
	script, conf := tag.Script()
	if conf == language.Exact {
		return script.String() == "Hans"
	}
	region, conf := tag.Region()
	if conf == language.Exact {
		switch region.String() {
		case "TW", "HK", "MO":
			return false
		}
	}
	return true
}

// Normalize converts user input to the canonical backend code, returning a
// validation error for anything the backend does not support.
func Normalize(input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", services.Wrap(services.ErrValidation, "language", "normalize", "target language required", nil)
	}
	target, ok := Lookup(input)
	if !ok {
		return "", services.Wrap(services.ErrValidation, "language", "normalize",
			fmt.Sprintf("unsupported target language %q (supported: %s)", strings.TrimSpace(input), strings.Join(Codes(), ", ")), nil)
	}
	return target.Code, nil
}

// Codes returns the canonical codes of all supported targets.
func Codes() []string {
	out := make([]string, 0, len(targets))
	for _, e := range targets {
		out = append(out, e.target.Code)
	}
	return out
}

// DisplayName returns a human-readable language name for any recognized code.
// Returns "Unknown" for empty input. Tags outside the supported list fall
// back to their English name, then to the uppercased input.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	if e := lookup(trimmed); e != nil {
		return e.target.Label
	}
	if tag, err := language.Parse(trimmed); err == nil {
		if name := display.English.Tags().Name(tag); name != "" {
			return name
		}
	}
	return strings.ToUpper(trimmed)
}

// ExtractFromTags extracts and normalizes the language from stream metadata tags.
// Checks common tag keys: language, LANGUAGE, Language, language_ietf, lang, LANG.
func ExtractFromTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	keys := []string{"language", "LANGUAGE", "Language", "language_ietf", "lang", "LANG"}
	for _, key := range keys {
		if value, ok := tags[key]; ok {
			value = strings.TrimSpace(strings.ReplaceAll(value, "\u0000", ""))
			if value != "" && !strings.EqualFold(value, "und") {
				return strings.ToLower(value)
			}
		}
	}
	return ""
}
