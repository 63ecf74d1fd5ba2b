package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor (matches pkg/middleware/auth.go keys)
	FieldUserID   = "user_id"
	FieldUsername = "username"

	// Connection
	FieldClientID  = "client_id"
	FieldFrameType = "frame_type"

	// Chat
	FieldMessageID  = "message_id"
	FieldTeamID     = "team_id"
	FieldReceiverID = "receiver_id"
	FieldRecipients = "recipients"
	FieldDelivered  = "delivered"
	FieldOffline    = "offline"
	FieldFailed     = "failed"

	// Service
	FieldService = "service"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
