package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Standard Tracing Fields (Context level)
// These fields are propagated through the call chain
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldReportID is the estimate report ID
	FieldReportID = "report_id"

	// FieldJobID is the sourcing job ID
	FieldJobID = "job_id"

	// FieldTaskID is the upgrade task ID
	FieldTaskID = "task_id"

	// FieldSupplierID is the supplier candidate ID
	FieldSupplierID = "supplier_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldOwnerID is the requesting owner's ID
	FieldOwnerID = "owner_id"
)

// ============================================
// Standard Metric Fields (Entry level)
// These fields are used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"

	// FieldStep is the pipeline step name
	FieldStep = "step"
)
