package metrics

import "github.com/prometheus/client_golang/prometheus"

// Sum suma los valores de counters y gauges de c cuyos labels incluyen match.
// Pensado para tests y diagnósticos; no es barato.
func Sum(c prometheus.Collector, match map[string]string) float64 {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return 0
	}
	mfs, err := reg.Gather()
	if err != nil {
		return 0
	}
	var total float64
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if !matches(labels, match) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			}
		}
	}
	return total
}

func matches(labels, match map[string]string) bool {
	for k, v := range match {
		if labels[k] != v {
			return false
		}
	}
	return true
}
