package log

import (
	"errors"

	"bolso/internal/core"
)

// Field names shared by every component.
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldOperation   = "operation"
	FieldUserID      = "user_id"
	FieldMonth       = "month"
	FieldAmountCents = "amount_cents"
	FieldCategory    = "category"
	FieldCardID      = "card_id"
	FieldCount       = "count"
	FieldNotifyType  = "notification_type"
	FieldThreshold   = "threshold"
	FieldTransport   = "transport"
)

const (
	ComponentApp          = "app"
	ComponentHTTP         = "http"
	ComponentFinance      = "finance"
	ComponentStorage      = "storage"
	ComponentAMQP         = "amqp"
	ComponentWorker       = "worker"
	ComponentScheduler    = "scheduler"
	ComponentNotification = "notification"
	ComponentSheets       = "sheets"
	ComponentCache        = "cache"
	ComponentSecurity     = "security"
	ComponentRateLimit    = "rate_limit"
	ComponentTrace        = "trace"
	ComponentBackend      = "backend"
)

const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpSummary  = "summary"
	OpDispatch = "dispatch"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpRollover = "rollover"
	OpRemind   = "remind"
	OpExport   = "export"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeRemote        = "remote_error"
	ErrorTypeAuth          = "auth_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeInternal      = "internal_error"
)

// ErrorType classifies err into one of the ErrorType constants.
func ErrorType(err error) string {
	switch {
	case errors.Is(err, core.ErrValidation):
		return ErrorTypeValidation
	case errors.Is(err, core.ErrNotAuthenticated):
		return ErrorTypeAuth
	case errors.Is(err, core.ErrNotFound):
		return ErrorTypeNotFound
	case errors.Is(err, core.ErrRemoteFailure):
		return ErrorTypeRemote
	default:
		return ErrorTypeInternal
	}
}

// LogFields builds structured attributes fluently.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

// With sets an arbitrary field.
func (f LogFields) With(key string, value any) LogFields {
	f[key] = value
	return f
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error message and its taxonomy class.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = ErrorType(err)
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithUser(id core.UserID) LogFields {
	f[FieldUserID] = string(id)
	return f
}

func (f LogFields) WithMonth(m core.MonthKey) LogFields {
	f[FieldMonth] = string(m)
	return f
}

// WithExpense adds the fields describing an expense write.
func (f LogFields) WithExpense(e core.Expense) LogFields {
	f[FieldAmountCents] = e.Amount.Cents
	f[FieldCategory] = string(e.Category)
	if e.CreditCardID != "" {
		f[FieldCardID] = e.CreditCardID
	}
	return f
}

func (f LogFields) WithNotification(n core.Notification) LogFields {
	f[FieldNotifyType] = string(n.Type)
	f[FieldUserID] = string(n.UserID)
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice flattens the fields into slog key/value pairs.
func (f LogFields) ToSlice() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
