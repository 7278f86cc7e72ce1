package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldReferer    = "referer"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldErrorType  = "error_type"

	FieldPaymentID   = "payment_id"
	FieldProjectID   = "project_id"
	FieldAccountID   = "account_id"
	FieldFundCode    = "fund_code"
	FieldFundID      = "fund_id"
	FieldAmountCents = "amount_cents"
	FieldCurrency    = "currency"
	FieldPlanSource  = "plan_source"
	FieldScope       = "scope"
	FieldScenario    = "scenario"
	FieldMonths      = "months"
	FieldSheetsRef   = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentDistribute = "distribute"
	ComponentSummary    = "summary"
	ComponentProjection = "projection"
	ComponentReconcile  = "reconcile"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentSheets     = "sheets"
	ComponentCache      = "cache"
	ComponentSecurity   = "security"
	ComponentRateLimit  = "rate_limit"
	ComponentTrace      = "trace"
	ComponentBackend    = "backend"
	ComponentScheduler  = "scheduler"
)

// Operations defines standard operation names
const (
	OpDistribute = "distribute"
	OpSummarize  = "summarize"
	OpInsights   = "insights"
	OpSimulate   = "simulate"
	OpReconcile  = "reconcile"
	OpMirror     = "mirror"
	OpPublish    = "publish"
	OpValidate   = "validate"
	OpShutdown   = "shutdown"
	OpStartup    = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypePartial       = "partial_failure"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithErrorType adds the error category field
func (f LogFields) WithErrorType(t string) LogFields {
	f[FieldErrorType] = t
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithPayment adds the fields identifying a payment being distributed.
func (f LogFields) WithPayment(paymentID, projectID string, amountCents int64, currency string) LogFields {
	f[FieldPaymentID] = paymentID
	f[FieldProjectID] = projectID
	f[FieldAmountCents] = amountCents
	f[FieldCurrency] = currency
	return f
}

// WithFund adds fund identification fields
func (f LogFields) WithFund(fundID, code string) LogFields {
	f[FieldFundID] = fundID
	f[FieldFundCode] = code
	return f
}

// WithScope adds the reporting scope key
func (f LogFields) WithScope(key string) LogFields {
	f[FieldScope] = key
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent, referer string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	f[FieldReferer] = referer
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
