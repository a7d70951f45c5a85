package collector

import (
	"github.com/obsidianstack/kdp-exporter/exporter/internal/catalog"
	"github.com/obsidianstack/kdp-exporter/exporter/internal/kdp"
)

// Traffic types a data point is reported under.
const (
	DTypeDirty = "dirty"
	DTypeClean = "clean"
	DTypeNA    = "N/A"
)

// DType maps a data point type code to its traffic type label.
func DType(code int) string {
	switch code {
	case 0:
		return DTypeDirty
	case 2:
		return DTypeClean
	default:
		return DTypeNA
	}
}

// Sample is one classified measured-parameter reading.
type Sample struct {
	Kind      catalog.ParameterKind
	DType     string
	Direction float64
	Threshold float64
	Mult1     float64
	Mult2     float64
	Value     float64
}

// Classify joins parameter definitions with data points on
// UnitCheckID == ID. Points without a value and definitions whose short
// name is not a known kind yield nothing. Samples come out in definition
// order, then data point order.
func Classify(defs []kdp.ParameterDefinition, points []kdp.DataPoint) []Sample {
	var out []Sample
	for _, d := range defs {
		kind, known := catalog.ParameterByShortName(d.ShortName)
		for _, p := range points {
			if p.UnitCheckID != d.ID || p.Value == nil || !known {
				continue
			}
			out = append(out, Sample{
				Kind:      kind,
				DType:     DType(p.Type),
				Direction: float64(d.Direction),
				Threshold: p.Threshold,
				Mult1:     p.Mult1,
				Mult2:     p.Mult2,
				Value:     *p.Value,
			})
		}
	}
	return out
}

// emit writes the five series of every sample, labeled (resource, dtype).
func emit(set *catalog.Set, resource string, samples []Sample) {
	for _, s := range samples {
		set.Add(s.Kind.Direction, s.Direction, resource, s.DType)
		set.Add(s.Kind.Threshold, s.Threshold, resource, s.DType)
		set.Add(s.Kind.Mult1, s.Mult1, resource, s.DType)
		set.Add(s.Kind.Mult2, s.Mult2, resource, s.DType)
		set.Add(s.Kind.Value, s.Value, resource, s.DType)
	}
}
