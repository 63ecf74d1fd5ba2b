package audit

import (
	"context"

	"github.com/MahiaRaniNatarajan/smartlearn/pkg/log"
)

// Audit actions for the chat server.
const (
	ActionAuth        = "chat.auth"
	ActionAuthFailed  = "chat.auth_failed"
	ActionSupersede   = "chat.supersede"
	ActionSendMessage = "chat.send_message"
	ActionSendFailed  = "chat.send_failed"
	ActionUpload      = "chat.upload"
	ActionDisconnect  = "chat.disconnect"
)

// Field constants for audit entries.
const (
	FieldAction   = "action"
	FieldTargetID = "target_id"
	FieldDetail   = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID int64, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Int64(log.FieldUserID, userID).
		Msg(msg)
}

// LogWithTarget emits an audit entry naming the object acted on.
func LogWithTarget(ctx context.Context, action string, userID int64, targetID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Int64(log.FieldUserID, userID).
		Str(FieldTargetID, targetID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, userID int64, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Int64(log.FieldUserID, userID).
		Str(FieldDetail, detail).
		Msg(msg)
}
