package types

// Metric names recorded by the session meter.
const (
	MetricUploadCount          = "upload_count"
	MetricUploadRowCount       = "upload_row_count"
	MetricClassifySubmitted    = "classify_submitted_count"
	MetricClassifyCompleted    = "classify_completed_count"
	MetricClassifyErrors       = "classify_error_count"
	MetricRegressionCount      = "regression_count"
	MetricModelLoadCount       = "model_load_count"
	MetricModelLoadErrors      = "model_load_error_count"
	MetricExtractionNanos      = "extraction_nanos_total"
	MetricClassifyNanos        = "classify_nanos_total"
	MetricCurrentCpuPercentage = "current_cpu_percentage"
	MetricCurrentRamPercentage = "current_ram_percentage"
	MetricPeakGoRoutinesActive = "peak_go_routines_active"
	MetricCurrentGoRoutines    = "current_go_routines_active"
)
