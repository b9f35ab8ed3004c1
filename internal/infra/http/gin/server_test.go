package ginserver_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	authsvc "chatline/internal/app/services/auth"
	chatsvc "chatline/internal/app/services/chat"
	"chatline/internal/infra/config"
	ginserver "chatline/internal/infra/http/gin"
	"chatline/internal/infra/obs"
	"chatline/internal/infra/security"
	"chatline/internal/infra/storage/memory"
	"chatline/internal/infra/storage/s3"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	users := memory.NewUserRepository()
	chats := memory.NewChatRepository()
	sessions := memory.NewSessionStore()
	messages := memory.NewMessageStore()

	authService := &authsvc.Service{
		Users:     users,
		Sessions:  sessions,
		Passwords: security.BcryptHasher{Cost: 4},
		Tokens:    security.RandomTokenGenerator{},
	}
	chatService := &chatsvc.Service{
		Chats:    chats,
		Users:    users,
		Messages: messages,
	}
	mw := ginserver.AuthMiddleware{Service: authService}
	server := ginserver.NewServer(config.Config{Env: "test"}, obs.Middleware{}, obs.HealthHandlers{}, ginserver.Handlers{
		Auth:           ginserver.AuthHandler{Service: authService, Avatars: s3.NoopUploader{}},
		Chat:           ginserver.ChatHandler{Service: chatService},
		AuthMiddleware: mw.Handle,
	})
	return server.Handler
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, h http.Handler, name string) (id, token string) {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    fmt.Sprintf("%s@example.com", name),
		"name":     name,
		"password": "supersecret",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.User.ID, resp.Token
}

func TestRoutes_RequireAuthentication(t *testing.T) {
	req := require.New(t)
	h := newTestServer(t)

	for _, route := range []struct {
		method, path string
	}{
		{http.MethodGet, "/api/v1/chats"},
		{http.MethodPost, "/api/v1/chats"},
		{http.MethodPost, "/api/v1/chats/group"},
		{http.MethodPut, "/api/v1/chats/group/x/name"},
		{http.MethodPut, "/api/v1/chats/group/x/members/y"},
		{http.MethodDelete, "/api/v1/chats/group/x/members/y"},
		{http.MethodPost, "/api/v1/chats/group/x/leave"},
		{http.MethodDelete, "/api/v1/chats/group/x"},
	} {
		rec := do(t, h, route.method, route.path, "", nil)
		req.Equal(http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)
	}
}

func TestDirectChatFlow(t *testing.T) {
	req := require.New(t)
	h := newTestServer(t)

	aliceID, aliceToken := registerUser(t, h, "alice")
	bobID, bobToken := registerUser(t, h, "bob")

	rec := do(t, h, http.MethodPost, "/api/v1/chats", aliceToken, map[string]string{"user_id": bobID})
	req.Equal(http.StatusOK, rec.Code, rec.Body.String())
	var first struct {
		ID           string `json:"id"`
		IsGroup      bool   `json:"is_group"`
		Participants []struct {
			ID string `json:"id"`
		} `json:"participants"`
	}
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &first))
	req.False(first.IsGroup)
	req.Len(first.Participants, 2)

	// bob opening the chat from his side lands on the same record
	rec = do(t, h, http.MethodPost, "/api/v1/chats", bobToken, map[string]string{"user_id": aliceID})
	req.Equal(http.StatusOK, rec.Code)
	var second struct {
		ID string `json:"id"`
	}
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &second))
	req.Equal(first.ID, second.ID)

	rec = do(t, h, http.MethodPost, "/api/v1/chats", aliceToken, map[string]string{"user_id": aliceID})
	req.Equal(http.StatusBadRequest, rec.Code)
}

func TestGroupLifecycleOverHTTP(t *testing.T) {
	req := require.New(t)
	h := newTestServer(t)

	_, aliceToken := registerUser(t, h, "alice")
	bobID, bobToken := registerUser(t, h, "bob")
	carolID, _ := registerUser(t, h, "carol")

	rec := do(t, h, http.MethodPost, "/api/v1/chats/group", aliceToken, map[string]any{
		"name":         "Weekend Plans",
		"participants": []string{bobID},
	})
	req.Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var group struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Admin struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"admin"`
	}
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &group))
	req.Equal("Weekend Plans", group.Name)
	req.Equal("alice", group.Admin.Name)

	// duplicate name
	rec = do(t, h, http.MethodPost, "/api/v1/chats/group", bobToken, map[string]any{
		"name":         "Weekend Plans",
		"participants": []string{carolID},
	})
	req.Equal(http.StatusConflict, rec.Code)

	// participants must be an array
	rec = do(t, h, http.MethodPost, "/api/v1/chats/group", aliceToken, map[string]any{
		"name":         "Bad",
		"participants": "not-an-array",
	})
	req.Equal(http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/v1/chats/group/"+group.ID+"/name", aliceToken, map[string]string{"name": "Renamed"})
	req.Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPut, "/api/v1/chats/group/"+group.ID+"/members/"+carolID, aliceToken, nil)
	req.Equal(http.StatusOK, rec.Code, rec.Body.String())

	// leaving as admin hands the role to a remaining member
	rec = do(t, h, http.MethodPost, "/api/v1/chats/group/"+group.ID+"/leave", aliceToken, nil)
	req.Equal(http.StatusOK, rec.Code, rec.Body.String())
	var afterLeave struct {
		Admin struct {
			ID string `json:"id"`
		} `json:"admin"`
		Participants []struct {
			ID string `json:"id"`
		} `json:"participants"`
	}
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &afterLeave))
	req.Equal(bobID, afterLeave.Admin.ID)
	req.Len(afterLeave.Participants, 2)

	// a non-member cannot leave
	rec = do(t, h, http.MethodPost, "/api/v1/chats/group/"+group.ID+"/leave", aliceToken, nil)
	req.Equal(http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/v1/chats/group/"+group.ID+"/members/"+carolID, bobToken, nil)
	req.Equal(http.StatusOK, rec.Code)

	// bob is now the sole participant and admin
	rec = do(t, h, http.MethodPost, "/api/v1/chats/group/"+group.ID+"/leave", bobToken, nil)
	req.Equal(http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/v1/chats/group/"+group.ID, bobToken, nil)
	req.Equal(http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/v1/chats/group/"+group.ID, bobToken, nil)
	req.Equal(http.StatusNotFound, rec.Code)
}

func TestListChats_ExcludesCredentials(t *testing.T) {
	req := require.New(t)
	h := newTestServer(t)

	_, aliceToken := registerUser(t, h, "alice")
	bobID, _ := registerUser(t, h, "bob")

	rec := do(t, h, http.MethodPost, "/api/v1/chats", aliceToken, map[string]string{"user_id": bobID})
	req.Equal(http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/chats", aliceToken, nil)
	req.Equal(http.StatusOK, rec.Code)
	req.NotContains(rec.Body.String(), "password")
	req.NotContains(rec.Body.String(), "hash")
}

func TestAuthFlowOverHTTP(t *testing.T) {
	req := require.New(t)
	h := newTestServer(t)

	_, token := registerUser(t, h, "alice")

	rec := do(t, h, http.MethodGet, "/api/v1/auth/me", token, nil)
	req.Equal(http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrongpassword",
	})
	req.Equal(http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/auth/logout", token, nil)
	req.Equal(http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/auth/me", token, nil)
	req.Equal(http.StatusUnauthorized, rec.Code)
}
