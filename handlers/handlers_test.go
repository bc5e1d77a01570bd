package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/karthikraju391/pairchat/chat"
	"github.com/karthikraju391/pairchat/media"
	"github.com/karthikraju391/pairchat/models"
	"github.com/karthikraju391/pairchat/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "handler-secret"

type fakeUploader struct {
	names []string
	data  []byte
}

func (f *fakeUploader) Upload(_ context.Context, name string, r io.Reader) (string, error) {
	f.names = append(f.names, name)
	f.data, _ = io.ReadAll(r)
	return "https://res.cloudinary.com/demo/image/upload/" + name + ".jpg", nil
}

type fixture struct {
	app      *fiber.App
	client   *store.Client
	hub      *store.Hub
	uploader *fakeUploader
	handler  *Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tree, err := store.OpenPebble("chats", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tree.Close() })

	hub := store.NewHub()
	client := store.NewClient(tree, hub)
	up := &fakeUploader{}
	h := &Handler{Store: client, Media: up, Location: time.UTC}
	return &fixture{app: NewApp(h, secret), client: client, hub: hub, uploader: up, handler: h}
}

func token(t *testing.T, userID string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func (f *fixture) do(t *testing.T, req *http.Request, userID string) (*http.Response, []byte) {
	t.Helper()
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, httptest.NewRequest("GET", "/health", nil), "")
	assert.Equal(t, 200, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	f.client.Close()
	resp, _ = f.do(t, httptest.NewRequest("GET", "/health", nil), "")
	assert.Equal(t, 503, resp.StatusCode)
}

func TestHistoryRequiresToken(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, httptest.NewRequest("GET", "/api/v1/conversations/u2/messages", nil), "")
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHistoryIsOrderedAndClassified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := models.ConversationKey{OwnerID: "u1", PartnerID: "u2"}
	require.NoError(t, f.client.Send(ctx, key, models.Message{ID: "0001", SenderID: "u1", ReceiverID: "u2", Text: "hi", Timestamp: 1}))
	require.NoError(t, f.client.Send(ctx, key.Mirror(), models.Message{ID: "0002", SenderID: "u2", ReceiverID: "u1", Text: "hey", Timestamp: 2}))

	// u2's copy: the first message is theirs, the reply is mine
	resp, body := f.do(t, httptest.NewRequest("GET", "/api/v1/conversations/u1/messages", nil), "u2")
	require.Equal(t, 200, resp.StatusCode)

	var out struct {
		Messages []struct {
			ID   string    `json:"id"`
			Side chat.Side `json:"side"`
			Text string    `json:"text"`
		} `json:"messages"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Messages, 2)
	assert.Equal(t, 2, out.Total)
	assert.Equal(t, "0001", out.Messages[0].ID)
	assert.Equal(t, chat.Theirs, out.Messages[0].Side)
	assert.Equal(t, "0002", out.Messages[1].ID)
	assert.Equal(t, chat.Mine, out.Messages[1].Side)

	resp, body = f.do(t, httptest.NewRequest("GET", "/api/v1/conversations/u1/messages?page=2&page_size=1", nil), "u2")
	require.Equal(t, 200, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "0002", out.Messages[0].ID)
}

func TestHistoryRejectsBadPartner(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, httptest.NewRequest("GET", "/api/v1/conversations/u.2/messages", nil), "u1")
	assert.Equal(t, 400, resp.StatusCode)
}

func photoRequest(t *testing.T, username string, withFile bool) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if username != "" {
		require.NoError(t, w.WriteField("username", username))
	}
	if withFile {
		fw, err := w.CreateFormFile("photo", "me.jpg")
		require.NoError(t, err)
		_, _ = fw.Write([]byte("\xff\xd8jpeg bytes"))
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest("POST", "/api/v1/profile/photo", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUploadProfilePhoto(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, photoRequest(t, "ada", true), "u1")
	require.Equal(t, 201, resp.StatusCode, string(body))
	require.Len(t, f.uploader.names, 1)
	assert.Equal(t, []byte("\xff\xd8jpeg bytes"), f.uploader.data)

	var p models.Profile
	require.NoError(t, json.Unmarshal(body, &p))
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "ada", p.Username)
	assert.Contains(t, p.ImageURL, f.uploader.names[0])

	resp, body = f.do(t, httptest.NewRequest("GET", "/api/v1/profile/u1", nil), "u2")
	require.Equal(t, 200, resp.StatusCode)
	var got models.Profile
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, p, got)
}

func TestUploadProfilePhotoValidation(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, photoRequest(t, "", true), "u1")
	assert.Equal(t, 400, resp.StatusCode)
	resp, _ = f.do(t, photoRequest(t, "ada", false), "u1")
	assert.Equal(t, 400, resp.StatusCode)
	assert.Empty(t, f.uploader.names)

	f.handler.Media = media.Disabled{}
	resp, _ = f.do(t, photoRequest(t, "ada", true), "u1")
	assert.Equal(t, 503, resp.StatusCode)
}

func TestGetProfileMissing(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, httptest.NewRequest("GET", "/api/v1/profile/nobody", nil), "u1")
	assert.Equal(t, 404, resp.StatusCode)
	assert.Contains(t, string(body), "Profile not found")
}

func TestChatRequiresUpgrade(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, httptest.NewRequest("GET", "/chat/u2", nil), "u1")
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)

	resp, _ = f.do(t, httptest.NewRequest("GET", "/chat/u2", nil), "")
	assert.Equal(t, 400, resp.StatusCode)
}
