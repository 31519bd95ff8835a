package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	clientmodel "github.com/prometheus/client_model/go"
)

// WriteMetrics prints gathered counter and gauge samples, one per line
func WriteMetrics(w io.Writer, families []*clientmodel.MetricFamily) {
	fmt.Fprintf(w, "📈 Metrics:\n")
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			var value float64
			switch family.GetType() {
			case clientmodel.MetricType_COUNTER:
				value = metric.GetCounter().GetValue()
			case clientmodel.MetricType_GAUGE:
				value = metric.GetGauge().GetValue()
			default:
				continue
			}
			fmt.Fprintf(w, "  %s%s %g\n", family.GetName(), formatLabels(metric.GetLabel()), value)
		}
	}
}

func formatLabels(pairs []*clientmodel.LabelPair) string {
	if len(pairs) == 0 {
		return ""
	}
	labels := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		labels = append(labels, fmt.Sprintf("%s=%q", pair.GetName(), pair.GetValue()))
	}
	sort.Strings(labels)
	return "{" + strings.Join(labels, ",") + "}"
}
