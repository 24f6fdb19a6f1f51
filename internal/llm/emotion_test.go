package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapEmotion_Keywords(t *testing.T) {
	tests := []struct {
		narrative string
		expected  string
	}{
		{"You absolutely dominated the mid lane this game.", EmotionExcited},
		{"An outstanding carry performance from start to finish.", EmotionExcited},
		{"Tough loss, but the early game was well executed.", EmotionSympathetic},
		{"That was an unlucky teamfight at baron.", EmotionSympathetic},
		{"Your positioning must improve before higher ranks.", EmotionCritical},
		{"That recall was a costly error at 25 minutes.", EmotionCritical},
		{"Solid vision control throughout the match.", EmotionEncouraging},
		{"Well played around the dragon pit.", EmotionEncouraging},
		{"The match lasted thirty-two minutes.", EmotionNeutral},
		{"", EmotionNeutral},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, MapEmotion(tt.narrative), "narrative: %q", tt.narrative)
	}
}

func TestMapEmotion_Deterministic(t *testing.T) {
	narrative := "Solid laning phase, but your positioning must improve."
	first := MapEmotion(narrative)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, MapEmotion(narrative))
	}
}

func TestMapEmotion_CategoryOrderWins(t *testing.T) {
	// "dominated" (excited) e "solid" (encouraging) nello stesso testo:
	// vince la categoria dichiarata per prima
	narrative := "You dominated teamfights and kept a solid gold lead."
	assert.Equal(t, EmotionExcited, MapEmotion(narrative))
}

func TestMapEmotion_CaseInsensitive(t *testing.T) {
	assert.Equal(t, EmotionExcited, MapEmotion("INCREDIBLE performance!"))
}
