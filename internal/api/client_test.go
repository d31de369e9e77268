package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"Seshat/internal/auth"
	"Seshat/internal/models"

	"github.com/stretchr/testify/require"
)

func TestClient_ListMessagesSendsPageAndToken(t *testing.T) {
	req := require.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/api/rooms/r1/messages", r.URL.Path)
		req.Equal("50", r.URL.Query().Get("limit"))
		req.Equal("m9", r.URL.Query().Get("before"))
		req.Equal("Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode([]models.Message{{ID: "m1", RoomID: "r1", Content: "hi"}})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, auth.StaticSource("tok"), nil)
	req.NoError(err)

	msgs, err := c.ListMessages(context.Background(), "r1", Page{Limit: 50, Before: "m9"})
	req.NoError(err)
	req.Len(msgs, 1)
	req.Equal("hi", msgs[0].Content)
}

func TestClient_PostMessage(t *testing.T) {
	req := require.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal(http.MethodPost, r.Method)
		var body PostMessageRequest
		req.NoError(json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(models.Message{ID: "m2", RoomID: "r1", Content: body.Content, ClientMessageID: body.ClientMessageID})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, nil, nil)
	req.NoError(err)

	msg, err := c.PostMessage(context.Background(), "r1", PostMessageRequest{Content: "hi", ClientMessageID: "c1"})
	req.NoError(err)
	req.Equal("m2", msg.ID)
	req.Equal("c1", msg.ClientMessageID)
}

func TestClient_ErrorResponses(t *testing.T) {
	req := require.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"board not found"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, nil, nil)
	req.NoError(err)

	_, err = c.GetBoard(context.Background(), "missing")
	req.ErrorIs(err, ErrNotFound)

	var reqErr *RequestError
	req.ErrorAs(err, &reqErr)
	req.Equal(http.StatusNotFound, reqErr.StatusCode)
	req.Equal("board not found", reqErr.Message)
}
