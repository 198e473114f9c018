package chart

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SeriesDef describes one charted dataset. The first definition is the
// primary asset whose price drives the price and change regions.
type SeriesDef struct {
	Name  string `yaml:"name" json:"name"`
	Color string `yaml:"color" json:"color"`
}

type seriesFile struct {
	Series []SeriesDef `yaml:"series"`
}

// DefaultSeries returns the XMR/BTC/ETH datasets.
func DefaultSeries() []SeriesDef {
	return []SeriesDef{
		{Name: "XMR", Color: "#C95B55"},
		{Name: "BTC", Color: "#AC4740"},
		{Name: "ETH", Color: "#FFCA63"},
	}
}

// LoadSeries reads series definitions from a YAML file. An empty path yields
// DefaultSeries.
func LoadSeries(path string) ([]SeriesDef, error) {
	if path == "" {
		return DefaultSeries(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read series file")
	}

	return parseSeries(data)
}

func parseSeries(data []byte) ([]SeriesDef, error) {
	var f seriesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parse series file")
	}
	if len(f.Series) == 0 {
		return nil, errors.New("series file defines no series")
	}

	seen := make(map[string]struct{}, len(f.Series))
	for i, s := range f.Series {
		if s.Name == "" {
			return nil, errors.Errorf("series[%d].name is required", i)
		}
		if _, ok := seen[s.Name]; ok {
			return nil, errors.Errorf("series %s defined twice", s.Name)
		}
		seen[s.Name] = struct{}{}
	}

	return f.Series, nil
}

func Names(defs []SeriesDef) []string {
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}

	return names
}
