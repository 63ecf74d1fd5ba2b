package handler

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/MahiaRaniNatarajan/smartlearn/internal/audit"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/domain"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/service"
	"github.com/MahiaRaniNatarajan/smartlearn/pkg/log"
	"github.com/MahiaRaniNatarajan/smartlearn/pkg/middleware"
	"github.com/MahiaRaniNatarajan/smartlearn/pkg/response"
	"github.com/MahiaRaniNatarajan/smartlearn/pkg/storage"
)

const attachmentPrefix = "attachments"

// UploadConfig bounds attachment uploads.
type UploadConfig struct {
	MaxBytes  int64
	URLExpiry time.Duration
}

type HTTPHandler struct {
	chatService    service.ChatService
	storage        storage.Storage
	authMiddleware *middleware.AuthMiddleware
	upload         UploadConfig
}

func NewHTTPHandler(
	chatService service.ChatService,
	store storage.Storage,
	authMiddleware *middleware.AuthMiddleware,
	upload UploadConfig,
) *HTTPHandler {
	return &HTTPHandler{
		chatService:    chatService,
		storage:        store,
		authMiddleware: authMiddleware,
		upload:         upload,
	}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.HealthCheck)
	r.GET("/files/*key", h.GetFile)

	api := r.Group("/api")
	api.Use(h.authMiddleware.RequireAuth())
	{
		api.GET("/messages", h.GetMessages)
		api.POST("/attachments", h.UploadAttachment)
		api.GET("/presence/:user_id", h.GetPresence)
	}
}

// GetMessages returns one page of a team or direct conversation.
func (h *HTTPHandler) GetMessages(c *gin.Context) {
	var q service.HistoryQuery

	teamID, err := optionalID(c, "teamId")
	if err != nil {
		response.BadRequest(c, "teamId must be a positive integer")
		return
	}
	receiverID, err := optionalID(c, "receiverId")
	if err != nil {
		response.BadRequest(c, "receiverId must be a positive integer")
		return
	}
	q.TeamID, q.ReceiverID = teamID, receiverID

	if after := c.Query("after"); after != "" {
		q.After, err = strconv.ParseInt(after, 10, 64)
		if err != nil || q.After < 0 {
			response.BadRequest(c, "after must be a message id")
			return
		}
	}
	if limit := c.Query("limit"); limit != "" {
		q.Limit, err = strconv.Atoi(limit)
		if err != nil || q.Limit < 1 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
	}

	requester := domain.Identity{
		UserID:   middleware.GetUserID(c),
		Username: middleware.GetUsername(c),
	}

	page, err := h.chatService.History(c.Request.Context(), requester, q)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidHistoryQuery):
			response.BadRequest(c, err.Error())
		case errors.Is(err, service.ErrNotTeamMember):
			response.Forbidden(c, err.Error())
		default:
			l := log.Ctx(c.Request.Context())
			l.Error().Err(err).Msg("failed to get chat history")
			response.InternalError(c, "failed to get chat history")
		}
		return
	}

	response.Success(c, page)
}

// UploadAttachment stores a file that a later chat frame can reference.
func (h *HTTPHandler) UploadAttachment(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	if h.upload.MaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.upload.MaxBytes+1<<20)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.TooLarge(c, "file too large")
			return
		}
		response.BadRequest(c, "file is required")
		return
	}
	if h.upload.MaxBytes > 0 && fh.Size > h.upload.MaxBytes {
		response.TooLarge(c, "file too large")
		return
	}

	name := filepath.Base(fh.Filename)
	if name == "." || name == string(filepath.Separator) {
		response.BadRequest(c, "file name is required")
		return
	}

	src, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "failed to read file")
		return
	}
	defer src.Close()

	key := attachmentPrefix + "/" + uuid.New().String() + strings.ToLower(filepath.Ext(name))
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := h.storage.Write(ctx, key, src, fh.Size, contentType); err != nil {
		l.Error().Err(err).Str("key", key).Msg("failed to store attachment")
		response.InternalError(c, "failed to store attachment")
		return
	}

	url, err := h.storage.GetURL(ctx, key, h.upload.URLExpiry)
	if err != nil {
		l.Error().Err(err).Str("key", key).Msg("failed to get attachment url")
		response.InternalError(c, "failed to store attachment")
		return
	}

	audit.LogWithTarget(ctx, audit.ActionUpload, middleware.GetUserID(c), key, "attachment uploaded")
	response.Created(c, gin.H{
		"url":  url,
		"name": name,
	})
}

// GetFile streams a stored attachment.
func (h *HTTPHandler) GetFile(c *gin.Context) {
	ctx := c.Request.Context()
	key := strings.TrimPrefix(c.Param("key"), "/")

	ok, err := h.storage.Exists(ctx, key)
	if err != nil {
		response.InternalError(c, "failed to read file")
		return
	}
	if !ok || key == "" {
		response.NotFound(c, "file not found")
		return
	}

	rc, err := h.storage.Read(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.NotFound(c, "file not found")
			return
		}
		response.InternalError(c, "failed to read file")
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}

func (h *HTTPHandler) GetPresence(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		response.BadRequest(c, "user_id must be a positive integer")
		return
	}

	status, err := h.chatService.Presence(c.Request.Context(), userID)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Int64(log.FieldUserID, userID).Msg("failed to get presence")
		response.InternalError(c, "failed to get presence")
		return
	}

	response.Success(c, status)
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": h.chatService.ConnectionCount(),
	})
}

func optionalID(c *gin.Context, name string) (*int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.New("invalid id")
	}
	return &id, nil
}
