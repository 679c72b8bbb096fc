package server

import (
	"math"

	"github.com/sells-group/site-selection/internal/classify"
	"github.com/sells-group/site-selection/internal/dashboard"
	"github.com/sells-group/site-selection/internal/mapview"
	"github.com/sells-group/site-selection/internal/sales"
)

// JSON cannot carry NaN, so missing values are encoded as null.
func num(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

type summaryRow struct {
	CityMun   string   `json:"citymun"`
	Barangays int      `json:"barangays"`
	Average   *float64 `json:"average"`
	Min       *float64 `json:"min"`
	Max       *float64 `json:"max"`
}

type summaryResponse struct {
	CityMun string       `json:"citymun"`
	Rows    []summaryRow `json:"rows"`
}

func toSummary(label string, rows []dashboard.MunicipalityRow) summaryResponse {
	out := summaryResponse{CityMun: label, Rows: make([]summaryRow, len(rows))}
	for i, r := range rows {
		out.Rows[i] = summaryRow{CityMun: r.CityMun, Barangays: r.Count, Average: num(r.Mean), Min: num(r.Min), Max: num(r.Max)}
	}
	return out
}

type rankRow struct {
	Rank        int      `json:"rank"`
	Barangay    string   `json:"barangay"`
	CityMun     string   `json:"citymun"`
	Score       *float64 `json:"score"`
	Competitors int      `json:"competitors"`
}

type barangaysResponse struct {
	CityMun  string    `json:"citymun"`
	ScoreMin *float64  `json:"score_min"`
	ScoreMax *float64  `json:"score_max"`
	Count    int       `json:"count"`
	Ranking  []rankRow `json:"ranking"`
	Warnings []string  `json:"warnings,omitempty"`
}

func toBarangays(res *dashboard.Result) barangaysResponse {
	out := barangaysResponse{
		CityMun:  res.Filter.Label(),
		ScoreMin: num(res.ScoreMin),
		ScoreMax: num(res.ScoreMax),
		Count:    len(res.Areas),
		Ranking:  make([]rankRow, len(res.Ranking)),
		Warnings: res.Warnings,
	}
	for i, r := range res.Ranking {
		out.Ranking[i] = rankRow{Rank: r.Rank, Barangay: r.Barangay, CityMun: r.CityMun, Score: num(r.Score), Competitors: r.Competitors}
	}
	return out
}

type cutpoints struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

type salesResponse struct {
	Month          string                    `json:"month,omitempty"`
	Months         []string                  `json:"months"`
	Cutpoints      *cutpoints                `json:"cutpoints"`
	Total          float64                   `json:"total"`
	Municipalities []sales.MunicipalitySales `json:"municipalities"`
	Branches       []sales.BranchSales       `json:"branches"`
	Trend          []sales.MonthTotal        `json:"trend"`
	Legend         []classify.LegendEntry    `json:"legend"`
	Map            mapview.Deck              `json:"map"`
	Warnings       []string                  `json:"warnings,omitempty"`
}

func toSales(res *sales.Result, deck mapview.Deck) salesResponse {
	out := salesResponse{
		Month:          res.Month,
		Months:         res.Months,
		Total:          res.Total,
		Municipalities: res.Municipalities,
		Branches:       res.Branches,
		Trend:          res.Trend,
		Legend:         res.Legend,
		Map:            deck,
		Warnings:       res.Warnings,
	}
	if res.Cutpoints.Valid() {
		out.Cutpoints = &cutpoints{Low: res.Cutpoints.LowCut, High: res.Cutpoints.HighCut}
	}
	return out
}
