package discord

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/biodoia/goriftcoach/internal/analysis"
	"github.com/biodoia/goriftcoach/internal/llm"
)

// Colori degli embed per tono emotivo
var emotionColors = map[string]int{
	llm.EmotionExcited:     0xF1C40F,
	llm.EmotionEncouraging: 0x2ECC71,
	llm.EmotionNeutral:     0x95A5A6,
	llm.EmotionSympathetic: 0x3498DB,
	llm.EmotionCritical:    0xE67E22,
}

const errorColor = 0xE74C3C

// webhookMessage è il payload del PATCH sul messaggio originale
type webhookMessage struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds,omitempty"`
}

type embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
	Footer      *embedFooter `json:"footer,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type embedFooter struct {
	Text string `json:"text"`
}

// Renderer trasforma un AnalysisReport nel payload della chat.
// Il core tratta l'output come byte opachi.
type Renderer struct{}

// NewRenderer crea il renderer dei messaggi
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderReport costruisce l'embed dell'analisi completata
func (r *Renderer) RenderReport(report *analysis.AnalysisReport) ([]byte, error) {
	color, ok := emotionColors[report.EmotionTag]
	if !ok {
		color = emotionColors[llm.EmotionNeutral]
	}

	e := embed{
		Title:       fmt.Sprintf("Match analysis: %s (%s)", report.MatchID, report.Mode),
		Description: report.NarrativeText,
		Color:       color,
	}

	if len(report.Highlights) > 0 {
		e.Fields = append(e.Fields, embedField{
			Name:  "Highlights",
			Value: bulletList(report.Highlights),
		})
	}
	if len(report.Improvements) > 0 {
		e.Fields = append(e.Fields, embedField{
			Name:  "Work on",
			Value: bulletList(report.Improvements),
		})
	}
	if report.RequesterScore != nil {
		e.Fields = append(e.Fields, embedField{
			Name: "Your score",
			Value: fmt.Sprintf("**%.1f**/100 (#%d of %d)",
				report.RequesterScore.Overall, report.RequesterScore.Rank, len(report.PlayerScores)),
			Inline: true,
		})
	}

	footer := fmt.Sprintf("algorithm v%s", report.AlgorithmVersion)
	if report.Degraded {
		footer += " | partial analysis"
	}
	e.Footer = &embedFooter{Text: footer}

	return json.Marshal(webhookMessage{Embeds: []embed{e}})
}

// RenderError costruisce il messaggio di errore per l'utente
func (r *Renderer) RenderError(req analysis.AnalysisRequest, reason string) ([]byte, error) {
	e := embed{
		Title:       "Analysis failed",
		Description: fmt.Sprintf("Could not analyze match `%s`: %s", req.MatchID, reason),
		Color:       errorColor,
	}
	return json.Marshal(webhookMessage{Embeds: []embed{e}})
}

func bulletList(items []string) string {
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "• %s\n", item)
	}
	return strings.TrimRight(b.String(), "\n")
}
