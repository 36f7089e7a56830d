package llmChat

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Nexoracode/khadamat/internal/api/speech"
	"github.com/Nexoracode/khadamat/internal/types"
)

func setupChatHandlerTest() (http.Handler, *ServiceImpl, *chatMocks) {
	svc, m := setupChatServiceTest(time.Second)
	h := NewHandlerImpl(svc, nil, svc.logger)

	r := chi.NewRouter()
	r.Post("/chat/sessions", h.CreateSession)
	r.Get("/chat/sessions/{sessionID}/messages", h.GetSession)
	r.Post("/chat/sessions/{sessionID}/messages", h.SendMessage)
	r.Put("/chat/sessions/{sessionID}/location", h.SetLocation)
	r.Delete("/chat/sessions/{sessionID}/location", h.ClearLocation)
	r.Delete("/chat/sessions/{sessionID}", h.EndSession)
	r.Get("/chat/sessions/{sessionID}/ws", h.TranscriptFeed)
	r.Get("/chat/audio/{ref}", h.GetAudio)
	return r, svc, m
}

func createSession(t *testing.T, router http.Handler) types.ChatSessionResponse {
	t.Helper()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/chat/sessions", nil))
	require.Equal(t, http.StatusCreated, rr.Code)
	var resp types.ChatSessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestHandlerImpl_CreateSession(t *testing.T) {
	router, _, _ := setupChatHandlerTest()
	resp := createSession(t, router)

	require.Len(t, resp.Messages, 1)
	assert.Equal(t, Greeting, resp.Messages[0].Text)
	assert.False(t, resp.Pending)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/chat/sessions/"+resp.ID.String()+"/messages", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandlerImpl_UnknownSession(t *testing.T) {
	router, _, _ := setupChatHandlerTest()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/chat/sessions/not-a-uuid/messages", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/chat/sessions/6f1c1a55-0b4e-4a7e-9d38-0e7a3c1b2d4f/messages", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerImpl_SendMessage(t *testing.T) {
	t.Run("text message", func(t *testing.T) {
		router, _, m := setupChatHandlerTest()
		session := createSession(t, router)

		m.gateway.On("Converse", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(types.AIReply{Text: "پاسخ", Solution: "راه‌حل", RecommendationType: types.RecommendationNone})
		m.resolver.On("Resolve", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		m.synthesizer.On("Synthesize", mock.Anything, "راه‌حل").Return(speech.EncodeWAV(make([]byte, 4800), 24000))

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/chat/sessions/"+session.ID.String()+"/messages",
			bytes.NewBufferString(`{"text":"شیر آب چکه می‌کند"}`)))
		require.Equal(t, http.StatusOK, rr.Code)

		var resp types.ChatSessionResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Len(t, resp.Messages, 3)
		model := resp.Messages[2]
		assert.Equal(t, "پاسخ", model.Text)
		require.NotNil(t, model.AudioRef)

		audio := httptest.NewRecorder()
		router.ServeHTTP(audio, httptest.NewRequest(http.MethodGet, "/chat/audio/"+*model.AudioRef, nil))
		require.Equal(t, http.StatusOK, audio.Code)
		assert.Equal(t, "audio/wav", audio.Header().Get("Content-Type"))
		assert.Equal(t, "100", audio.Header().Get("X-Audio-Duration-Ms"))
		assert.Equal(t, speech.WAVHeaderSize+4800, audio.Body.Len())
	})

	t.Run("inline location is stored", func(t *testing.T) {
		router, svc, m := setupChatHandlerTest()
		session := createSession(t, router)

		m.gateway.On("Converse", mock.Anything, "کمک کاربر در لوکیشن 35.7, 51.4 قرار دارد.", mock.Anything, mock.Anything).
			Return(types.AIReply{Text: "t", RecommendationType: types.RecommendationNone})
		m.resolver.On("Resolve", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/chat/sessions/"+session.ID.String()+"/messages",
			bytes.NewBufferString(`{"text":"کمک","location":{"lat":35.7,"lng":51.4}}`)))
		require.Equal(t, http.StatusOK, rr.Code)

		s, err := svc.GetSession(context.Background(), session.ID)
		require.NoError(t, err)
		assert.Equal(t, &types.GeoPoint{Lat: 35.7, Lng: 51.4}, s.Location())
		m.gateway.AssertExpectations(t)
	})

	t.Run("voice message", func(t *testing.T) {
		router, _, m := setupChatHandlerTest()
		session := createSession(t, router)
		clip := speech.EncodeWAV(make([]byte, 320), 16000)

		m.gateway.On("Converse", mock.Anything, mock.Anything, mock.Anything,
			mock.MatchedBy(func(a *types.AudioInput) bool { return a != nil && bytes.Equal(a.Data, clip) })).
			Return(types.AIReply{Text: "t", RecommendationType: types.RecommendationNone})
		m.resolver.On("Resolve", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		body := fmt.Sprintf(`{"audio":{"data":%q,"mimeType":"audio/wav"}}`, base64.StdEncoding.EncodeToString(clip))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/chat/sessions/"+session.ID.String()+"/messages", strings.NewReader(body)))
		require.Equal(t, http.StatusOK, rr.Code)

		var resp types.ChatSessionResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.Messages[1].IsVoiceInput)
		m.gateway.AssertExpectations(t)
	})

	t.Run("non audio payload is rejected", func(t *testing.T) {
		router, _, m := setupChatHandlerTest()
		session := createSession(t, router)

		body := fmt.Sprintf(`{"audio":{"data":%q,"mimeType":"audio/webm"}}`, base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 not audio")))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/chat/sessions/"+session.ID.String()+"/messages", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		m.gateway.AssertNotCalled(t, "Converse", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty message is rejected", func(t *testing.T) {
		router, _, _ := setupChatHandlerTest()
		session := createSession(t, router)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/chat/sessions/"+session.ID.String()+"/messages",
			bytes.NewBufferString(`{"text":"  "}`)))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("busy session answers conflict", func(t *testing.T) {
		router, svc, m := setupChatHandlerTest()
		session := createSession(t, router)
		s, err := svc.GetSession(context.Background(), session.ID)
		require.NoError(t, err)

		started := make(chan struct{})
		release := make(chan struct{})
		m.gateway.On("Converse", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { close(started); <-release }).
			Return(types.AIReply{Text: "t", RecommendationType: types.RecommendationNone}).Once()
		m.resolver.On("Resolve", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = s.Submit(context.Background(), "اول", nil)
		}()
		<-started

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/chat/sessions/"+session.ID.String()+"/messages",
			bytes.NewBufferString(`{"text":"دوم","location":{"lat":10,"lng":20}}`)))
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Nil(t, s.Location(), "rejected submission must not move the session")

		close(release)
		<-done
	})
}

func TestHandlerImpl_Location(t *testing.T) {
	router, svc, _ := setupChatHandlerTest()
	session := createSession(t, router)
	path := "/chat/sessions/" + session.ID.String() + "/location"

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, path, bytes.NewBufferString(`{"lat":35.7,"lng":51.3}`)))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	s, err := svc.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.NotNil(t, s.Location())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, path, bytes.NewBufferString(`{"lat":135.7,"lng":51.3}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, path, nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Nil(t, s.Location())
}

func TestHandlerImpl_EndSession(t *testing.T) {
	router, _, _ := setupChatHandlerTest()
	session := createSession(t, router)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/chat/sessions/"+session.ID.String(), nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/chat/sessions/"+session.ID.String()+"/messages", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerImpl_GetAudioMissing(t *testing.T) {
	router, _, _ := setupChatHandlerTest()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/chat/audio/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerImpl_TranscriptFeed(t *testing.T) {
	router, svc, m := setupChatHandlerTest()
	srv := httptest.NewServer(router)
	defer srv.Close()

	session := svc.CreateSession(context.Background())
	m.gateway.On("Converse", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(types.AIReply{Text: "پاسخ", RecommendationType: types.RecommendationNone})
	m.resolver.On("Resolve", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/sessions/" + session.ID().String() + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() types.SessionEvent {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var ev types.SessionEvent
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	}

	greeting := read()
	assert.Equal(t, types.EventMessage, greeting.Type)
	assert.Equal(t, Greeting, greeting.Message.Text)

	_, err = session.Submit(ctx, "سلام", nil)
	require.NoError(t, err)

	assert.Equal(t, "سلام", read().Message.Text)
	assert.Equal(t, types.EventPending, read().Type)
	assert.Equal(t, "پاسخ", read().Message.Text)
	assert.Equal(t, types.EventIdle, read().Type)
}
