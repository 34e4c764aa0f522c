package logschema

// Log schema constants for scalogram structured logs.
const (
	SchemaID    = "scalogram.log.v1"
	FieldSchema = "log_schema"

	FieldTimestamp = "ts"
	FieldLevel     = "level"
	FieldMessage   = "msg"
	FieldLogger    = "logger"
	FieldCaller    = "caller"
	FieldStack     = "stack"

	FieldComponent     = "component"
	FieldEvent         = "event"
	FieldResult        = "result"
	FieldError         = "error"
	FieldCorrelationID = "correlation_id"
	FieldModel         = "model"
	FieldDuration      = "duration"
)

// LogRecord is a generic map representation of a log entry.
type LogRecord map[string]interface{}
