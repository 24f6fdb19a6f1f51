package scoring

import (
	_ "embed"
	"regexp"
	"strings"
)

// I pattern vietati vivono in un data file così che la policy sia
// ispezionabile e testabile senza toccare il codice.
//
//go:embed compliance_patterns.txt
var rawCompliancePatterns string

// ComplianceFilter rifiuta le narrazioni arena che citano win rate,
// tier ranking o predizioni sui round futuri.
type ComplianceFilter struct {
	patterns []*regexp.Regexp
}

// NewComplianceFilter compila il pannello di pattern embedded.
// Un pattern malformato è un errore di programmazione: panic in fase di init.
func NewComplianceFilter() *ComplianceFilter {
	f := &ComplianceFilter{}
	for _, line := range strings.Split(rawCompliancePatterns, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		f.patterns = append(f.patterns, regexp.MustCompile(line))
	}
	return f
}

// Check restituisce i pattern violati dal testo (vuoto = conforme)
func (f *ComplianceFilter) Check(text string) []string {
	var violations []string
	for _, p := range f.patterns {
		if p.MatchString(text) {
			violations = append(violations, p.String())
		}
	}
	return violations
}

// Allowed verifica la conformità del testo
func (f *ComplianceFilter) Allowed(text string) bool {
	return len(f.Check(text)) == 0
}
