package classify

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Scheme names accepted by New.
const (
	SchemeFixed11   = "fixed11"
	SchemeRelative3 = "relative3"
)

// Classifier maps a value to a fill color.
type Classifier interface {
	Color(v float64) RGBA
	Legend() []LegendEntry
}

// schemeFile is the YAML layout for a custom fixed scheme:
//
//	breaks: [0.1, 0.2, ...]   # 10 ascending thresholds
//	colors: ["#a50026", ...]  # 11 colors, lowest bucket first
//	missing: "#c8c8c8b4"      # optional
type schemeFile struct {
	Breaks  []float64 `yaml:"breaks"`
	Colors  []string  `yaml:"colors"`
	Missing string    `yaml:"missing"`
}

// LoadScheme reads a fixed 11-bucket scheme from a YAML file.
func LoadScheme(path string) (*Fixed11, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "classify: read scheme %s", path)
	}

	var sf schemeFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, eris.Wrapf(err, "classify: parse scheme %s", path)
	}

	colors := RdYlGn11
	if len(sf.Colors) > 0 {
		colors = make([]RGBA, 0, len(sf.Colors))
		for _, h := range sf.Colors {
			c, err := ParseHex(h)
			if err != nil {
				return nil, err
			}
			colors = append(colors, c)
		}
	}

	breaks := sf.Breaks
	if len(breaks) == 0 {
		breaks = DefaultBreaks
	}

	f, err := NewFixed11(breaks, colors)
	if err != nil {
		return nil, eris.Wrapf(err, "classify: scheme %s", path)
	}
	if sf.Missing != "" {
		m, err := ParseHex(sf.Missing)
		if err != nil {
			return nil, err
		}
		f.missing = m
	}
	return f, nil
}

// New builds the named score classifier. lo and hi are the layer's score bounds,
// used by the relative scheme. schemePath overrides the fixed scheme when set.
func New(name, schemePath string, lo, hi float64) (Classifier, error) {
	switch name {
	case "", SchemeFixed11:
		if schemePath != "" {
			return LoadScheme(schemePath)
		}
		return DefaultFixed11(), nil
	case SchemeRelative3:
		return Relative3{Min: lo, Max: hi}, nil
	default:
		return nil, eris.Errorf("classify: unknown scheme %q", name)
	}
}
