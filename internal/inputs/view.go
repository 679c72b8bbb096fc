package inputs

import (
	"github.com/sells-group/site-selection/internal/classify"
	"github.com/sells-group/site-selection/internal/dashboard"
	"github.com/sells-group/site-selection/internal/sales"
)

// Classifier builds the score classifier. Relative colors use the whole
// layer's bounds so a filtered view keeps the same colors.
func (s *Scores) Classifier(scheme, schemeFile string) (classify.Classifier, error) {
	lo, hi, _ := s.Layer.ScoreBounds()
	return classify.New(scheme, schemeFile, lo, hi)
}

// Dashboard assembles the score view for f. Competitor load warnings are
// carried into the result.
func (s *Scores) Dashboard(f dashboard.Filter, scheme, schemeFile string, zoom float64) (*dashboard.Result, error) {
	cls, err := s.Classifier(scheme, schemeFile)
	if err != nil {
		return nil, err
	}
	res, err := dashboard.Build(s.Layer, s.Competitors, f, cls, dashboard.Options{Zoom: zoom})
	if err != nil {
		return nil, err
	}
	res.Warnings = append(res.Warnings, s.Warnings...)
	return res, nil
}

// Dashboard assembles the sales view for one month.
func (s *Sales) Dashboard(opts sales.Options) (*sales.Result, error) {
	res, err := sales.Build(s.Municipalities, s.Records, s.Branches, opts)
	if err != nil {
		return nil, err
	}
	res.Warnings = append(res.Warnings, s.Warnings...)
	return res, nil
}
