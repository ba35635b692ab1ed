package resonance

import (
	"strings"
	"testing"
)

func TestSelectCardTemplate(t *testing.T) {
	mirror := Pair{Upper: Qian, Lower: Qian}
	plain := Pair{Upper: Qian, Lower: Kun}
	tests := []struct {
		name string
		mode Mode
		vibe VibeState
		pair Pair
		want string
	}{
		{name: "member mirror override", mode: ModeMember, vibe: VibeHigh, pair: mirror, want: "member.high.mirror"},
		{name: "member plain", mode: ModeMember, vibe: VibeHigh, pair: plain, want: "member.high"},
		{name: "anonymous exact", mode: ModeAnonymous, vibe: VibeLow, pair: plain, want: "anonymous.low"},
		{name: "anonymous falls back to any mode", mode: ModeAnonymous, vibe: VibeMedium, pair: mirror, want: "any.medium"},
		{name: "guest uses any mode", mode: ModeGuest, vibe: VibeHigh, pair: plain, want: "any.high"},
		{name: "unknown vibe uses default", mode: ModeMember, vibe: VibeState("storm"), pair: plain, want: "default"},
		{name: "unknown mode still produces card", mode: Mode("vip"), vibe: VibeLow, pair: plain, want: "any.low"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := SelectCardTemplate(tc.mode, tc.vibe, tc.pair)
			if got.Key != tc.want {
				t.Fatalf("SelectCardTemplate() = %q, want %q", got.Key, tc.want)
			}
		})
	}
}

func TestRenderAdvisoryAlwaysCarriesDisclaimer(t *testing.T) {
	templates := []CardTemplate{defaultTemplate, {Key: "bare"}}
	for _, tpl := range cardTemplates {
		templates = append(templates, tpl)
	}
	for _, locale := range []string{LocaleEnglish, LocaleChinese, "fr", ""} {
		for _, tpl := range templates {
			adv := RenderAdvisory(tpl, AdvisoryContext{
				Upper: Li, Lower: Kan, Moving: 2, Score: 42,
				Vibe: VibeMedium, Mode: ModeMember, Variant: VariantTrigram, Locale: locale,
			})
			if adv.Disclaimer != Disclaimer(locale) || adv.Disclaimer == "" {
				t.Fatalf("template %s locale %q: disclaimer %q", tpl.Key, locale, adv.Disclaimer)
			}
			for _, text := range append([]string{adv.Title, adv.Oracle, adv.Adjustment}, adv.Supported...) {
				if strings.Contains(text, "{{") {
					t.Fatalf("template %s left a placeholder: %q", tpl.Key, text)
				}
			}
		}
	}
}

func TestRenderAdvisorySubstitutes(t *testing.T) {
	tpl := CardTemplate{
		Title:  "{{Vibe}} day",
		Oracle: "{{upper}}/{{lower}} line {{moving}} score {{score}} {{mode}} {{variant}} {{element}}",
	}
	adv := RenderAdvisory(tpl, AdvisoryContext{
		Upper: Li, Lower: Kan, Moving: 4, Score: 77,
		Vibe: VibeHigh, Mode: ModeGuest, Variant: VariantTriFactor, Locale: LocaleChinese,
	})
	if adv.Title != "High day" {
		t.Fatalf("title = %q", adv.Title)
	}
	want := "离/坎 line 4 score 77 guest v3-tri-factor water"
	if adv.Oracle != want {
		t.Fatalf("oracle = %q, want %q", adv.Oracle, want)
	}
	if adv.Disclaimer != disclaimers[LocaleChinese] {
		t.Fatalf("expected chinese disclaimer, got %q", adv.Disclaimer)
	}
}
