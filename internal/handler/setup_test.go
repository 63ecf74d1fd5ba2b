package handler

import (
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MahiaRaniNatarajan/smartlearn/internal/auth"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/config"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/delivery"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/domain"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/hub"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/kafka"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/persist"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/presence"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/repository"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/router"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/service"
	"github.com/MahiaRaniNatarajan/smartlearn/pkg/jwt"
	"github.com/MahiaRaniNatarajan/smartlearn/pkg/middleware"
	"github.com/MahiaRaniNatarajan/smartlearn/pkg/storage"
)

const testTeamID int64 = 10

var testUsers = []domain.Identity{
	{UserID: 1, Username: "alice"},
	{UserID: 2, Username: "bob"},
	{UserID: 3, Username: "carol"},
}

type testApp struct {
	hub    *hub.Hub
	jwt    *jwt.Manager
	db     *gorm.DB
	svc    service.ChatService
	engine *gin.Engine
	server *httptest.Server
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&domain.UserModel{}, &domain.TeamMemberModel{}, &domain.MessageModel{}))
	for _, u := range testUsers {
		require.NoError(t, db.Create(&domain.UserModel{ID: u.UserID, Username: u.Username, Email: u.Username + "@example.com"}).Error)
		require.NoError(t, db.Create(&domain.TeamMemberModel{TeamID: testTeamID, UserID: u.UserID}).Error)
	}

	manager, err := jwt.NewManager("test-secret", time.Hour, "")
	require.NoError(t, err)

	store := repository.NewGormMessageRepository(db)
	members := repository.NewGormMembershipRepository(db)
	h := hub.NewHub()

	svc := service.NewChatService(service.Deps{
		Hub:       h,
		Verifier:  auth.NewJWTVerifier(manager),
		Router:    router.New(members, router.Config{EchoToSender: true, MaxContentLength: 100}),
		Gateway:   persist.NewGateway(store, time.Second),
		Fanout:    delivery.NewFanout(h),
		Store:     store,
		Members:   members,
		Directory: presence.NewLocalDirectory("test:0"),
		Producer:  kafka.NopProducer{},
	}, service.Config{HistoryLimit: 100, HistoryMaxLimit: 500})

	files, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	engine := gin.New()
	NewHTTPHandler(svc, files, middleware.NewAuthMiddleware(manager), UploadConfig{MaxBytes: 1024, URLExpiry: time.Hour}).
		RegisterRoutes(engine)

	wsCfg := config.WebSocketConfig{
		PingInterval:   time.Second,
		PongWait:       5 * time.Second,
		WriteWait:      time.Second,
		MaxMessageSize: 16384,
		SendBuffer:     16,
	}
	wsRouter := mux.NewRouter()
	NewWSHandler(svc, wsCfg).RegisterRoutes(wsRouter)
	server := httptest.NewServer(wsRouter)
	t.Cleanup(server.Close)

	return &testApp{hub: h, jwt: manager, db: db, svc: svc, engine: engine, server: server}
}

func (a *testApp) token(t *testing.T, id domain.Identity) string {
	t.Helper()
	token, err := a.jwt.GenerateToken(id.UserID, id.Username)
	require.NoError(t, err)
	return token
}
