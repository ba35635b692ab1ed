package resonance

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	LocaleEnglish = "en"
	LocaleChinese = "zh"
)

var disclaimers = map[string]string{
	LocaleEnglish: "This reading is a reflective prompt, not a prediction or professional advice. Every decision remains yours.",
	LocaleChinese: "本解读仅供自我觉察参考，不构成预测或专业建议，所有决定由你自己做出。",
}

// Disclaimer returns the fixed disclaimer for a locale, English when the
// locale is unknown.
func Disclaimer(locale string) string {
	if d, ok := disclaimers[locale]; ok {
		return d
	}
	return disclaimers[LocaleEnglish]
}

// AdvisoryContext carries the values substituted into a template.
type AdvisoryContext struct {
	Upper   Trigram
	Lower   Trigram
	Moving  int
	Score   int
	Vibe    VibeState
	Mode    Mode
	Variant Variant
	Locale  string
}

// Advisory is rendered card text.
type Advisory struct {
	Title      string   `json:"title"`
	Oracle     string   `json:"oracle"`
	Supported  []string `json:"supported"`
	Blocked    []string `json:"blocked"`
	Adjustment string   `json:"adjustment"`
	Disclaimer string   `json:"disclaimer"`
}

// RenderAdvisory fills the template placeholders. The disclaimer is always
// attached verbatim, whatever the template says.
func RenderAdvisory(tpl CardTemplate, ctx AdvisoryContext) Advisory {
	r := strings.NewReplacer(
		"{{upper}}", ctx.Upper.Label(ctx.Locale),
		"{{lower}}", ctx.Lower.Label(ctx.Locale),
		"{{moving}}", strconv.Itoa(ctx.Moving),
		"{{score}}", strconv.Itoa(ctx.Score),
		"{{vibe}}", string(ctx.Vibe),
		"{{Vibe}}", cases.Title(language.English).String(string(ctx.Vibe)),
		"{{mode}}", string(ctx.Mode),
		"{{variant}}", string(ctx.Variant),
		"{{element}}", string(ctx.Lower.Element()),
	)
	return Advisory{
		Title:      r.Replace(tpl.Title),
		Oracle:     r.Replace(tpl.Oracle),
		Supported:  replaceAll(r, tpl.Supported),
		Blocked:    replaceAll(r, tpl.Blocked),
		Adjustment: r.Replace(tpl.Adjustment),
		Disclaimer: Disclaimer(ctx.Locale),
	}
}

func replaceAll(r *strings.Replacer, items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = r.Replace(s)
	}
	return out
}
