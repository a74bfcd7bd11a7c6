// Package stats provides a unified interface for collecting metrics.
package stats

// Metric names used throughout the module.
const (
	// Training metrics.
	MetricTrainingRuns     = "irwin_training_runs_total"
	MetricTrainingSamples  = "irwin_training_samples_total"
	MetricTrainingEpochs   = "irwin_training_epochs_total"
	MetricTrainingSeconds  = "irwin_training_seconds"
	MetricTrainingLoss     = "irwin_training_loss"
	MetricTrainingAccuracy = "irwin_training_accuracy"
	MetricValidationLoss   = "irwin_validation_loss"

	// Model lifecycle metrics.
	MetricModelsBuilt  = "irwin_models_built_total"
	MetricModelsLoaded = "irwin_models_loaded_total"
	MetricModelsSaved  = "irwin_models_saved_total"

	// Cache metrics.
	MetricCacheHits   = "irwin_cache_hits_total"
	MetricCacheMisses = "irwin_cache_misses_total"
	MetricCacheSize   = "irwin_cache_size"

	// Ingestion metrics.
	MetricAnalysedWritten  = "irwin_analysed_games_written_total"
	MetricAnalysedRejected = "irwin_analysed_batches_rejected_total"
)

var help = map[string]string{
	MetricTrainingRuns:     "Completed training runs.",
	MetricTrainingSamples:  "Samples fitted across all training runs.",
	MetricTrainingEpochs:   "Epochs fitted across all training runs.",
	MetricTrainingSeconds:  "Wall time of training runs in seconds.",
	MetricTrainingLoss:     "Training loss of the last epoch.",
	MetricTrainingAccuracy: "Training accuracy of the last epoch.",
	MetricValidationLoss:   "Validation loss of the last epoch.",
	MetricModelsBuilt:      "Networks built from scratch.",
	MetricModelsLoaded:     "Networks decoded from the model store.",
	MetricModelsSaved:      "Networks written to the model store.",
	MetricCacheHits:        "Model cache hits.",
	MetricCacheMisses:      "Model cache misses.",
	MetricCacheSize:        "Entries held by the model cache.",
	MetricAnalysedWritten:  "Analysed games handed to storage.",
	MetricAnalysedRejected: "Analysed-game batches rejected as malformed.",
}

// Help returns the description of a metric, or its name when unknown.
func Help(name string) string {
	if h, ok := help[name]; ok {
		return h
	}
	return name
}

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value float64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
