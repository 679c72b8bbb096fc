package sales

import (
	"sort"
	"strings"

	"github.com/sells-group/site-selection/internal/classify"
	"github.com/sells-group/site-selection/internal/geo"
)

// MunicipalitySales is the sales total of one municipality for the selected period.
type MunicipalitySales struct {
	CityMun  string        `json:"citymun"`
	Key      string        `json:"-"` // normalized name used for joins
	Total    float64       `json:"total"`
	Branches int           `json:"branches"`
	Class    string        `json:"class"`
	Color    classify.RGBA `json:"color"`
}

// Aggregate totals records per municipality for month, or over all months when
// month is empty. Names are joined by their normalized form; the first
// spelling seen is kept for display. Rows are sorted by total descending.
func Aggregate(records []Record, month string) []MunicipalitySales {
	month = strings.TrimSpace(month)
	byKey := make(map[string]*MunicipalitySales)
	branches := make(map[string]map[string]bool)

	for _, r := range records {
		if month != "" && r.Month != month {
			continue
		}
		key := geo.NormalizeName(r.CityMun)
		if key == "" {
			continue
		}
		m, ok := byKey[key]
		if !ok {
			m = &MunicipalitySales{CityMun: r.CityMun, Key: key, Class: classify.ClassNone, Color: classify.Missing}
			byKey[key] = m
			branches[key] = make(map[string]bool)
		}
		m.Total += r.Amount
		if b := strings.TrimSpace(r.Branch); b != "" {
			branches[key][strings.ToLower(b)] = true
		}
	}

	out := make([]MunicipalitySales, 0, len(byKey))
	for key, m := range byKey {
		m.Branches = len(branches[key])
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].CityMun < out[j].CityMun
	})
	return out
}

// Cutpoints computes the two percentile cutpoints over municipality totals.
func Cutpoints(munis []MunicipalitySales, lo, hi float64) classify.Percentile2 {
	totals := make([]float64, len(munis))
	for i, m := range munis {
		totals[i] = m.Total
	}
	return classify.NewPercentile2(totals, lo, hi)
}

// Classify assigns each municipality its sales class and fill color in place.
func Classify(munis []MunicipalitySales, p classify.Percentile2) {
	for i := range munis {
		munis[i].Class = p.Class(munis[i].Total)
		munis[i].Color = classify.ClassColor(munis[i].Class)
	}
}

// BranchSales is one branch in the ranking table.
type BranchSales struct {
	Rank    int     `json:"rank"`
	Branch  string  `json:"branch"`
	CityMun string  `json:"citymun"`
	Total   float64 `json:"total"`
	Months  int     `json:"months"`
}

// RankBranches totals each branch for month (all months when empty), sorted
// by total descending with a 1-based rank.
func RankBranches(records []Record, month string) []BranchSales {
	month = strings.TrimSpace(month)
	byBranch := make(map[string]*BranchSales)
	months := make(map[string]map[string]bool)

	for _, r := range records {
		if month != "" && r.Month != month {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(r.Branch))
		if key == "" {
			continue
		}
		b, ok := byBranch[key]
		if !ok {
			b = &BranchSales{Branch: strings.TrimSpace(r.Branch), CityMun: r.CityMun}
			byBranch[key] = b
			months[key] = make(map[string]bool)
		}
		b.Total += r.Amount
		months[key][r.Month] = true
	}

	out := make([]BranchSales, 0, len(byBranch))
	for key, b := range byBranch {
		b.Months = len(months[key])
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Branch < out[j].Branch
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// total sums municipality totals.
func total(munis []MunicipalitySales) float64 {
	var s float64
	for _, m := range munis {
		s += m.Total
	}
	return s
}
