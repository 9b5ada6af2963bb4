// Package metrics expone los contadores de dominio del flujo de sync.
// Las métricas HTTP genéricas viven en la capa HTTP.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var syncFlowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "sync_flows_total",
	Help: "Resultados del flujo de onboarding por provider y fase",
}, []string{"provider", "phase", "result"}) // phase: begin|callback, result: ok|conflict|rejected|error

func init() {
	if err := prometheus.DefaultRegisterer.Register(syncFlowsTotal); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			syncFlowsTotal = are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
}

// RecordFlow incrementa el contador de resultados del flujo.
func RecordFlow(provider, phase, result string) {
	syncFlowsTotal.WithLabelValues(provider, phase, result).Inc()
}
