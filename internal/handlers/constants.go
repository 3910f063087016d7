package handlers

// HTTP header constants
const (
	HeaderContentType   = "Content-Type"
	HeaderLocation      = "Location"
	HeaderIfMatch       = "If-Match"
	HeaderIfNoneMatch   = "If-None-Match"
	HeaderETag          = "ETag"
	HeaderAllow         = "Allow"
	HeaderNotifyToken   = "X-Notification-Token"
	HeaderRefreshStatus = "X-Refresh-Status"
)

// Error codes written in the "code" member of an error envelope.
const (
	CodeBadRequest         = "BadRequest"
	CodeValidation         = "ValidationFailed"
	CodeUnauthorized       = "Unauthorized"
	CodeInvalidCredentials = "InvalidCredentials"
	CodeNotFound           = "NotFound"
	CodeMethodNotAllowed   = "MethodNotAllowed"
	CodeConflict           = "Conflict"
	CodeStaleOverwrite     = "StaleOverwrite"
	CodeSuperseded         = "Superseded"
	CodePreconditionFailed = "PreconditionFailed"
	CodeInternal           = "InternalServerError"
)

// Error message constants
const (
	ErrMsgMethodNotAllowed      = "Method not allowed"
	ErrMsgInvalidRequestBody    = "Invalid request body"
	ErrMsgInvalidQueryOptions   = "Invalid query options"
	ErrMsgProductNotFound       = "The product with id '%s' does not exist"
	ErrMsgEventNotFound         = "The event with id '%s' does not exist"
	ErrMsgPreconditionFailed    = "The product has been modified. Please refresh and try again."
	ErrMsgValidationFailed      = "Validation failed"
	ErrMsgStaleOverwrite        = "The data changed while the refresh was loading"
	ErrMsgSuperseded            = "A newer refresh replaced this one"
	ErrMsgInternalError         = "Internal error"
	ErrDetailFailedToParseJSON  = "Failed to parse JSON: %v"
	ErrDetailUnsupportedMethod  = "Method %s is not supported for %s"
	ErrDetailInvalidDateFormat  = "date must be formatted as YYYY-MM-DD"
	ErrDetailInvalidMonthFormat = "month must be formatted as YYYY-MM"
)

// Product collection actions, addressed as /products/$<name>.
const (
	ActionSort    = "sort"
	ActionSelect  = "select"
	ActionRefresh = "refresh"
)

// maxBodyBytes bounds decoded request bodies.
const maxBodyBytes = 1 << 20
