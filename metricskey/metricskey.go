package metricskey

import "github.com/effective-security/metrics"

// Perf
var (
	// PerfSubtleOperation is perf metric
	PerfSubtleOperation = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_subtle",
		Help:         "perf_subtle provides the sample metrics of facade crypto operations",
		RequiredTags: []string{"algorithm", "action"},
	}

	// PerfProviderOperation is perf metric
	PerfProviderOperation = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_crypto_provider",
		Help:         "perf_crypto_provider provides the sample metrics of provider operations",
		RequiredTags: []string{"provider", "action"},
	}

	// PerfWrapOperation is perf metric
	PerfWrapOperation = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_subtle_wrap",
		Help:         "perf_subtle_wrap provides the sample metrics of key wrap operations",
		RequiredTags: []string{"algorithm", "format"},
	}
)

// Metrics returns slice of metrics from this repo
var Metrics = []*metrics.Describe{
	&PerfSubtleOperation,
	&PerfProviderOperation,
	&PerfWrapOperation,
}
