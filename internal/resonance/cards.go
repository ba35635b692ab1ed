package resonance

import "dreamcatcher/internal/domain"

// Mode is the caller's access tier.
type Mode string

const (
	ModeGuest     Mode = "guest"
	ModeAnonymous Mode = "anonymous"
	ModeMember    Mode = "member"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeGuest, ModeAnonymous, ModeMember:
		return Mode(s), nil
	}
	return "", domain.Validationf("unsupported mode %q", s)
}

// CardTemplate is static card text with placeholders.
type CardTemplate struct {
	Key        string
	Title      string
	Oracle     string
	Supported  []string
	Blocked    []string
	Adjustment string
}

type templateKey struct {
	mode Mode      // "" matches any mode
	vibe VibeState // "" matches any vibe
	pair PairKind  // "" matches any pair
}

var defaultTemplate = CardTemplate{
	Key:        "default",
	Title:      "{{upper}} over {{lower}}",
	Oracle:     "The pattern of {{upper}} over {{lower}} asks for quiet attention. Line {{moving}} is where change gathers.",
	Supported:  []string{"observation", "rest"},
	Blocked:    []string{"haste"},
	Adjustment: "Take one small step and notice how it feels.",
}

var cardTemplates = map[templateKey]CardTemplate{
	{vibe: VibeLow}: {
		Key:        "any.low",
		Title:      "Gathering strength",
		Oracle:     "{{upper}} presses on {{lower}}. Energy is low at {{score}}; this is a time to conserve.",
		Supported:  []string{"rest", "reflection", "simple routines"},
		Blocked:    []string{"big commitments", "confrontation"},
		Adjustment: "Postpone what can wait and protect your sleep.",
	},
	{vibe: VibeMedium}: {
		Key:        "any.medium",
		Title:      "Steady current ({{Vibe}})",
		Oracle:     "{{upper}} and {{lower}} move side by side. A {{vibe}} flow of {{score}} favours patient work.",
		Supported:  []string{"planning", "follow-through", "conversation"},
		Blocked:    []string{"impulsive spending"},
		Adjustment: "Finish one open task before starting another.",
	},
	{vibe: VibeHigh}: {
		Key:        "any.high",
		Title:      "Open gate",
		Oracle:     "{{upper}} lifts {{lower}}. Resonance is high at {{score}}; momentum is on your side.",
		Supported:  []string{"starting", "asking", "creative work"},
		Blocked:    []string{"overcommitting"},
		Adjustment: "Choose the one thing that matters most and begin it today.",
	},
	{mode: ModeAnonymous, vibe: VibeLow}: {
		Key:        "anonymous.low",
		Title:      "Quiet harbour",
		Oracle:     "A {{vibe}} tide of {{score}}. {{lower}} rests beneath {{upper}}; let the day pass gently.",
		Supported:  []string{"rest", "journaling"},
		Blocked:    []string{"arguments", "risky decisions"},
		Adjustment: "Write down one worry and leave it for tomorrow.",
	},
	{mode: ModeAnonymous, vibe: VibeHigh}: {
		Key:        "anonymous.high",
		Title:      "Bright window",
		Oracle:     "{{upper}} over {{lower}} opens a bright window at {{score}}. Line {{moving}} carries the spark.",
		Supported:  []string{"outreach", "learning"},
		Blocked:    []string{"procrastination"},
		Adjustment: "Send the message you have been drafting.",
	},
	{mode: ModeMember, vibe: VibeLow}: {
		Key:        "member.low",
		Title:      "Root and reserve",
		Oracle:     "Your {{element}} core meets {{upper}} at {{score}}. Line {{moving}} marks where strain builds.",
		Supported:  []string{"recovery", "boundaries", "review"},
		Blocked:    []string{"new obligations", "late nights"},
		Adjustment: "Decline one request today and use the time to recharge.",
	},
	{mode: ModeMember, vibe: VibeMedium}: {
		Key:        "member.medium",
		Title:      "Measured pace",
		Oracle:     "{{upper}} over {{lower}} reads {{score}} under {{variant}}. Your {{element}} nature holds steady.",
		Supported:  []string{"collaboration", "budgeting", "practice"},
		Blocked:    []string{"shortcuts"},
		Adjustment: "Schedule the next step where line {{moving}} points.",
	},
	{mode: ModeMember, vibe: VibeHigh}: {
		Key:        "member.high",
		Title:      "Full resonance",
		Oracle:     "{{upper}} amplifies your {{element}} core. Resonance {{score}}; line {{moving}} is the door.",
		Supported:  []string{"launching", "negotiating", "bold asks"},
		Blocked:    []string{"scattered focus"},
		Adjustment: "Commit publicly to one goal while the current is strong.",
	},
	{mode: ModeMember, vibe: VibeLow, pair: PairMirror}: {
		Key:        "member.low.mirror",
		Title:      "Doubled stillness",
		Oracle:     "{{upper}} doubled: the pattern repeats itself at {{score}}. What stalls now has stalled before.",
		Supported:  []string{"pattern review", "rest"},
		Blocked:    []string{"repeating old choices"},
		Adjustment: "Name the loop you keep returning to and skip one round of it.",
	},
	{mode: ModeMember, vibe: VibeMedium, pair: PairMirror}: {
		Key:        "member.medium.mirror",
		Title:      "Echo",
		Oracle:     "{{upper}} doubled echoes at {{score}}. Steady repetition builds skill.",
		Supported:  []string{"habits", "practice"},
		Blocked:    []string{"novelty for its own sake"},
		Adjustment: "Repeat yesterday's best action on purpose.",
	},
	{mode: ModeMember, vibe: VibeHigh, pair: PairMirror}: {
		Key:        "member.high.mirror",
		Title:      "Pure tone",
		Oracle:     "{{upper}} doubled rings clear at {{score}}. Inner and outer are aligned.",
		Supported:  []string{"decisive action", "leadership"},
		Blocked:    []string{"second-guessing"},
		Adjustment: "Act on your first clear instinct today.",
	},
}

// SelectCardTemplate picks the most specific template for the inputs:
// (mode, vibe, pair kind), then (mode, vibe), then (any mode, vibe), then
// the default. It always returns a template.
func SelectCardTemplate(mode Mode, vibe VibeState, pair Pair) CardTemplate {
	candidates := []templateKey{
		{mode: mode, vibe: vibe, pair: pair.Kind()},
		{mode: mode, vibe: vibe},
		{vibe: vibe},
	}
	for _, key := range candidates {
		if tpl, ok := cardTemplates[key]; ok {
			return tpl
		}
	}
	return defaultTemplate
}
