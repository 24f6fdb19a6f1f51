package llm

import "strings"

// Tag emotivi ammessi dal contratto
const (
	EmotionExcited     = "excited"
	EmotionEncouraging = "encouraging"
	EmotionCritical    = "critical"
	EmotionNeutral     = "neutral"
	EmotionSympathetic = "sympathetic"
)

// emotionKeywords: la prima categoria che matcha vince, nell'ordine
// di dichiarazione. L'ordine è parte del contratto ed è fissato nei test.
var emotionKeywords = []struct {
	tag      string
	keywords []string
}{
	{EmotionExcited, []string{
		"incredible", "outstanding", "dominated", "phenomenal", "amazing",
		"spectacular", "carried the game", "crushed",
	}},
	{EmotionSympathetic, []string{
		"tough loss", "unlucky", "hard game", "rough match", "don't be discouraged",
		"heads up", "it happens",
	}},
	{EmotionCritical, []string{
		"must improve", "serious mistake", "costly error", "avoid this",
		"fell behind", "major weakness", "needs work",
	}},
	{EmotionEncouraging, []string{
		"keep it up", "good job", "well played", "solid", "nice work",
		"improving", "on the right track", "great effort",
	}},
}

// MapEmotion deriva l'emotion tag dalla narrazione con una mappatura
// deterministica a parole chiave. Nessuna seconda chiamata al modello:
// stesso testo, stesso tag, sempre.
func MapEmotion(narrative string) string {
	lower := strings.ToLower(narrative)
	for _, category := range emotionKeywords {
		for _, kw := range category.keywords {
			if strings.Contains(lower, kw) {
				return category.tag
			}
		}
	}
	return EmotionNeutral
}
