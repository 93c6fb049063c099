package vision

import (
	"fmt"
	"strings"
)

// Labels are the model's output classes, in output index order.
var Labels = []string{
	"Albino_Golden",
	"Blue_Diamond",
	"Brilliant_Turquoise",
	"Brown",
	"Checkerboard",
	"Cobalt",
	"Ghost",
	"Heckel",
	"Marlboro",
	"Millennium_Golden",
	"Panda",
	"Pigeon_Blood",
	"Red_Melon",
	"Red_Spotted_Green",
	"Red_Turquoise",
	"Ring_Leopard",
	"Snakeskin",
	"Tangerine",
	"Tiger_Turkish",
	"White_Butterfly",
	"Wild",
}

var descriptions = map[string]string{
	"albinogolden":       "Albino Golden Discus shows a pale yellow-gold body with red eyes and little to no dark pigment.",
	"bluediamond":        "Blue Diamond Discus is characterized by its striking solid blue coloration and reflective scales, a highly sought-after variety.",
	"brilliantturquoise": "Brilliant Turquoise Discus carries dense turquoise striations that cover most of the body.",
	"brown":              "Brown Discus is the wild-type colour form with a warm brown body and nine faint vertical bars.",
	"checkerboard":       "Checkerboard Discus has a vibrant body with white mosaic-like patterns. Highly valued in the ornamental fish trade.",
	"cobalt":             "Cobalt Discus shows an intense blue-green body with fine horizontal lines over the flanks.",
	"ghost":              "Ghost Discus has a washed-out, almost translucent body with faint patterning.",
	"heckel":             "Heckel Discus is recognised by its bold, dark fifth vertical bar across the body.",
	"marlboro":           "Marlboro Discus is a solid red variety whose colour deepens with age.",
	"millenniumgolden":   "Millennium Golden Discus is a bright gold variety with minimal dark markings.",
	"panda":              "Panda Discus has a pale body with dark patches around the eyes and fins.",
	"pigeonblood":        "Pigeon Blood Discus features a rich red base color with white spotting patterns, known for colour similar to pigeon blood.",
	"redmelon":           "Red Melon Discus is a solid orange-red variety with a clean, even body colour.",
	"redspottedgreen":    "Red Spotted Green Discus is a wild-caught type with red dots over a green body.",
	"redturquoise":       "Red Turquoise Discus mixes red base colouring with turquoise striations.",
	"ringleopard":        "Ring Leopard Discus exhibits red rings and spots over a turquoise base, like a leopard's pattern.",
	"snakeskin":          "Snakeskin Discus has a distinctive pattern resembling snake scales, with many thin vertical bars.",
	"tangerine":          "Tangerine Discus shows a warm orange body with a golden sheen.",
	"tigerturkish":       "Tiger Turkish Discus has tight, wavy red lines over a turquoise body, like tiger stripes.",
	"whitebutterfly":     "White Butterfly Discus is a white-bodied variety with long, flowing fins.",
	"wild":               "Wild Discus are naturally occurring forms with muted colours and regional patterns.",
}

// CanonicalKey folds a label so "Blue_Diamond", "blue diamond" and
// "Blue-Diamond" look up the same entry.
func CanonicalKey(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(label) {
		switch r {
		case '_', ' ', '-':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DisplayName turns a model label into a human readable name.
func DisplayName(label string) string {
	return strings.TrimSpace(strings.ReplaceAll(label, "_", " "))
}

// DescriptionFor returns the catalog description, or a generated one for
// labels the catalog does not know.
func DescriptionFor(label string) string {
	if d, ok := descriptions[CanonicalKey(label)]; ok {
		return d
	}
	name := DisplayName(label)
	if name == "" {
		return "No description available."
	}
	return fmt.Sprintf("%s Discus is a discus variety without a catalog description yet.", name)
}
