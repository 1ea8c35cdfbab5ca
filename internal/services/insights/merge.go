package insights

import "github.com/bobmcallan/vire-insights/internal/models"

// Merge joins prepared positions with annotations by normalized symbol. Every prepared position
// appears exactly once, in prepared order. When a symbol is annotated more than once the first
// annotation wins; annotations for unknown symbols are dropped.
func Merge(prepared *models.PreparedInsights, annotations []models.NarrativeAnnotation) []models.PositionAnalysis {
	out := make([]models.PositionAnalysis, 0, len(prepared.Positions))

	lookup := make(map[string]models.NarrativeAnnotation, len(annotations))
	for _, a := range annotations {
		key := models.NormalizeSymbol(a.Symbol)
		if key == "" {
			continue
		}
		if _, seen := lookup[key]; seen {
			continue
		}
		lookup[key] = a
	}

	for _, p := range prepared.Positions {
		pa := models.PositionAnalysis{PreparedPosition: p}
		if a, ok := lookup[models.NormalizeSymbol(p.Symbol)]; ok {
			a.Risks = append([]string(nil), a.Risks...)
			pa.Insights = &a
		} else {
			pa.DataGap = true
		}
		out = append(out, pa)
	}
	return out
}

// CoverageStatus derives the envelope status from merged output. An empty portfolio is ok
// since there is nothing to annotate.
func CoverageStatus(merged []models.PositionAnalysis) string {
	annotated := 0
	for _, m := range merged {
		if m.Insights != nil {
			annotated++
		}
	}
	if annotated == len(merged) {
		return models.StatusOK
	}
	return models.StatusPartial
}
