package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MahiaRaniNatarajan/smartlearn/internal/config"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/domain"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/hub"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *testApp) do(t *testing.T, r *http.Request, id *domain.Identity) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	if id != nil {
		r.Header.Set("Authorization", "Bearer "+a.token(t, *id))
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, r)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

// post sends a chat frame on behalf of id through the service, the way the
// WebSocket handler does.
func (a *testApp) post(t *testing.T, id domain.Identity, frame *domain.ChatFrame) {
	t.Helper()
	c := hub.NewClient("http-test", nil, config.WebSocketConfig{SendBuffer: 64})
	require.NoError(t, c.Session.Authenticate(id))
	require.NoError(t, a.svc.HandleChat(context.Background(), c, frame))
}

func ptr(v int64) *int64 { return &v }

func TestHTTP_GetMessages_RequiresAuth(t *testing.T) {
	app := newTestApp(t)

	w, env := app.do(t, httptest.NewRequest(http.MethodGet, "/api/messages?teamId=10", nil), nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.False(t, env.Success)
}

func TestHTTP_GetMessages_Team(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t)
	alice, bob := testUsers[0], testUsers[1]

	for i := 0; i < 3; i++ {
		app.post(t, alice, &domain.ChatFrame{Content: fmt.Sprintf("m%d", i), TeamID: ptr(testTeamID)})
	}

	w, env := app.do(t, httptest.NewRequest(http.MethodGet, "/api/messages?teamId=10&limit=2", nil), &bob)
	req.Equal(http.StatusOK, w.Code)
	req.True(env.Success)

	var page struct {
		Messages []struct {
			ID         int64  `json:"id"`
			Content    string `json:"content"`
			SenderName string `json:"senderName"`
		} `json:"messages"`
		NextCursor int64 `json:"next_cursor"`
		HasMore    bool  `json:"has_more"`
	}
	req.NoError(json.Unmarshal(env.Data, &page))
	req.Len(page.Messages, 2)
	req.Equal("m0", page.Messages[0].Content)
	req.Equal("alice", page.Messages[0].SenderName)
	req.True(page.HasMore)
	req.Equal(page.Messages[1].ID, page.NextCursor)

	url := fmt.Sprintf("/api/messages?teamId=10&after=%d", page.NextCursor)
	_, env = app.do(t, httptest.NewRequest(http.MethodGet, url, nil), &bob)
	req.NoError(json.Unmarshal(env.Data, &page))
	req.Len(page.Messages, 1)
	req.Equal("m2", page.Messages[0].Content)
	req.False(page.HasMore)
}

func TestHTTP_GetMessages_Direct(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t)
	alice, bob := testUsers[0], testUsers[1]

	app.post(t, alice, &domain.ChatFrame{Content: "hey bob", ReceiverID: ptr(bob.UserID)})

	w, env := app.do(t, httptest.NewRequest(http.MethodGet, "/api/messages?receiverId=1", nil), &bob)
	req.Equal(http.StatusOK, w.Code)

	var page struct {
		Messages []struct {
			Content    string `json:"content"`
			ReceiverID int64  `json:"receiverId"`
		} `json:"messages"`
	}
	req.NoError(json.Unmarshal(env.Data, &page))
	req.Len(page.Messages, 1)
	req.Equal("hey bob", page.Messages[0].Content)
	req.Equal(bob.UserID, page.Messages[0].ReceiverID)
}

func TestHTTP_GetMessages_BadRequests(t *testing.T) {
	app := newTestApp(t)
	alice := testUsers[0]

	cases := map[string]int{
		"/api/messages":                         http.StatusBadRequest,
		"/api/messages?teamId=10&receiverId=2":  http.StatusBadRequest,
		"/api/messages?teamId=abc":              http.StatusBadRequest,
		"/api/messages?teamId=10&limit=0":       http.StatusBadRequest,
		"/api/messages?receiverId=2&after=-1":   http.StatusBadRequest,
		"/api/messages?teamId=99":               http.StatusForbidden,
		"/api/messages?teamId=10&limit=1000000": http.StatusOK,
	}

	for url, status := range cases {
		t.Run(url, func(t *testing.T) {
			w, _ := app.do(t, httptest.NewRequest(http.MethodGet, url, nil), &alice)
			require.Equal(t, status, w.Code)
		})
	}
}

func TestHTTP_UploadAndFetchAttachment(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t)
	alice := testUsers[0]

	// Given a small file upload
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "notes.txt")
	req.NoError(err)
	_, err = part.Write([]byte("chapter 1 summary"))
	req.NoError(err)
	req.NoError(mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/attachments", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())

	// When it is posted
	w, env := app.do(t, r, &alice)

	// Then it is stored and served back under its url
	req.Equal(http.StatusCreated, w.Code)
	var out struct {
		URL  string `json:"url"`
		Name string `json:"name"`
	}
	req.NoError(json.Unmarshal(env.Data, &out))
	req.Equal("notes.txt", out.Name)
	req.Contains(out.URL, "/files/attachments/")

	get := httptest.NewRecorder()
	app.engine.ServeHTTP(get, httptest.NewRequest(http.MethodGet, out.URL, nil))
	req.Equal(http.StatusOK, get.Code)
	req.Equal("chapter 1 summary", get.Body.String())
}

func TestHTTP_UploadTooLarge(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t)
	alice := testUsers[0]

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "big.bin")
	req.NoError(err)
	_, err = part.Write(bytes.Repeat([]byte("x"), 2048))
	req.NoError(err)
	req.NoError(mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/attachments", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())

	w, _ := app.do(t, r, &alice)
	req.Equal(http.StatusRequestEntityTooLarge, w.Code)
}

func TestHTTP_MissingFile(t *testing.T) {
	app := newTestApp(t)

	w, _ := app.do(t, httptest.NewRequest(http.MethodGet, "/files/attachments/nope.txt", nil), nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w, _ = app.do(t, httptest.NewRequest(http.MethodGet, "/files/../../etc/passwd", nil), nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHTTP_PresenceAndHealth(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t)
	alice, bob := testUsers[0], testUsers[1]

	conn := app.dial(t)
	app.login(t, conn, alice)

	w, env := app.do(t, httptest.NewRequest(http.MethodGet, "/api/presence/1", nil), &bob)
	req.Equal(http.StatusOK, w.Code)
	var status struct {
		UserID int64 `json:"user_id"`
		Online bool  `json:"online"`
		Local  bool  `json:"local"`
	}
	req.NoError(json.Unmarshal(env.Data, &status))
	req.Equal(int64(1), status.UserID)
	req.True(status.Online)
	req.True(status.Local)

	_, env = app.do(t, httptest.NewRequest(http.MethodGet, "/api/presence/2", nil), &bob)
	req.NoError(json.Unmarshal(env.Data, &status))
	req.False(status.Online)

	w, _ = app.do(t, httptest.NewRequest(http.MethodGet, "/api/presence/abc", nil), &bob)
	req.Equal(http.StatusBadRequest, w.Code)

	health := httptest.NewRecorder()
	app.engine.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/health", nil))
	req.Equal(http.StatusOK, health.Code)
	req.JSONEq(`{"status":"ok","connections":1}`, health.Body.String())
}
