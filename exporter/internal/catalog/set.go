package catalog

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// ContentType is the media type of the rendered document.
var ContentType = string(expfmt.NewFormat(expfmt.TypeTextPlain))

// Set holds the samples of one scrape, one gauge family per catalog entry.
// A sample added twice with the same label values replaces the earlier one,
// so every (metric, labels) pair appears at most once in the output.
//
// A Set is not safe for concurrent use. Build one per scrape.
type Set struct {
	families []*dto.MetricFamily
	index    map[string]int // sample key -> position in its family
}

// NewSet returns an empty set with a family for every catalog entry.
func NewSet() *Set {
	s := &Set{
		families: make([]*dto.MetricFamily, len(definitions)),
		index:    make(map[string]int),
	}
	for i, d := range definitions {
		s.families[i] = &dto.MetricFamily{
			Name: ptr(d.Name),
			Help: ptr(d.Help),
			Type: dto.MetricType_GAUGE.Enum(),
		}
	}
	return s
}

func ptr[T any](v T) *T { return &v }

func sampleKey(m Metric, labelValues []string) string {
	return strconv.Itoa(int(m)) + "\xff" + strings.Join(labelValues, "\xff")
}

// Add records value for m under labelValues, given in the order of the
// metric's label schema. It panics when the number of values does not match
// the schema, which is a programming error.
func (s *Set) Add(m Metric, value float64, labelValues ...string) {
	def := definitions[m]
	if len(labelValues) != len(def.Labels) {
		panic(fmt.Sprintf("catalog: %s expects %d label values, got %d", def.Name, len(def.Labels), len(labelValues)))
	}

	fam := s.families[m]
	key := sampleKey(m, labelValues)
	if i, ok := s.index[key]; ok {
		fam.Metric[i].Gauge.Value = ptr(value)
		return
	}

	pairs := make([]*dto.LabelPair, len(labelValues))
	for i, v := range labelValues {
		pairs[i] = &dto.LabelPair{Name: ptr(def.Labels[i]), Value: ptr(v)}
	}
	fam.Metric = append(fam.Metric, &dto.Metric{
		Label: pairs,
		Gauge: &dto.Gauge{Value: ptr(value)},
	})
	s.index[key] = len(fam.Metric) - 1
}

// Value returns the sample recorded for m under labelValues.
func (s *Set) Value(m Metric, labelValues ...string) (float64, bool) {
	i, ok := s.index[sampleKey(m, labelValues)]
	if !ok {
		return 0, false
	}
	return s.families[m].Metric[i].GetGauge().GetValue(), true
}

// Len returns the number of samples recorded for m.
func (s *Set) Len(m Metric) int { return len(s.families[m].Metric) }

// Samples returns the total number of samples in the set.
func (s *Set) Samples() int { return len(s.index) }

// Families returns the metric families in rendering order. The returned
// families are owned by the set.
func (s *Set) Families() []*dto.MetricFamily { return s.families }

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

// Write renders the set in the text exposition format.
func (s *Set) Write(w io.Writer) error {
	for _, fam := range s.families {
		if len(fam.Metric) == 0 {
			// expfmt refuses families without samples.
			if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n",
				fam.GetName(), helpEscaper.Replace(fam.GetHelp()), fam.GetName()); err != nil {
				return fmt.Errorf("write %s: %w", fam.GetName(), err)
			}
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, fam); err != nil {
			return fmt.Errorf("write %s: %w", fam.GetName(), err)
		}
	}
	return nil
}
