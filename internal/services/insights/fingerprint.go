package insights

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/bobmcallan/vire-insights/internal/models"
)

// Fingerprint hashes the symbol/quantity set of a portfolio. It ignores order, prices and
// every other field, so a price tick alone never changes the fingerprint.
func Fingerprint(positions []models.Position) string {
	lines := make([]string, 0, len(positions))
	for _, p := range positions {
		lines = append(lines, models.NormalizeSymbol(p.Symbol)+"|"+strconv.FormatFloat(p.Quantity, 'f', -1, 64))
	}
	sort.Strings(lines)
	return fmt.Sprintf("%016x", xxhash.Sum64String(strings.Join(lines, "\n")))
}

// KeyFor builds the cache key of an analysis request.
func KeyFor(userID string, params models.AnalysisParams, positions []models.Position) models.CacheKey {
	return models.CacheKey{
		UserID:               userID,
		HorizonMonths:        params.HorizonMonths,
		RiskProfile:          params.RiskProfile,
		Model:                params.Model,
		PortfolioFingerprint: Fingerprint(positions),
	}
}
