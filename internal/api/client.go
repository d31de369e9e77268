// Package api is the client of the remote request/response collaborator:
// room and message listing, message posting and whiteboard documents.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"Seshat/internal/auth"
	"Seshat/internal/models"
)

var ErrNotFound = errors.New("not found")

// RequestError is returned for any non-2xx response.
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

func (e *RequestError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Page selects a window of a room's history: at most Limit messages
// created before the message with id Before.
type Page struct {
	Limit  int
	Before string
}

type PostMessageRequest struct {
	Content         string         `json:"content"`
	ClientMessageID string         `json:"client_message_id,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

type CreateRoomRequest struct {
	Name   string          `json:"name"`
	Kind   models.RoomKind `json:"kind"`
	TeamID *string         `json:"team_id,omitempty"`
}

type CreateBoardRequest struct {
	Name string `json:"name"`
}

type errorBody struct {
	Error string `json:"error"`
}

type Client struct {
	base   *url.URL
	http   *http.Client
	tokens auth.TokenSource
	logger *slog.Logger
}

func NewClient(baseURL string, tokens auth.TokenSource, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		base:   base,
		http:   httpClient,
		tokens: tokens,
		logger: slog.Default().With("component", "api-client"),
	}, nil
}

func (c *Client) ListRooms(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	err := c.do(ctx, http.MethodGet, "/api/rooms", nil, nil, &rooms)
	return rooms, err
}

func (c *Client) CreateRoom(ctx context.Context, req CreateRoomRequest) (models.Room, error) {
	var room models.Room
	err := c.do(ctx, http.MethodPost, "/api/rooms", nil, req, &room)
	return room, err
}

func (c *Client) ListMessages(ctx context.Context, roomID string, page Page) ([]models.Message, error) {
	q := url.Values{}
	if page.Limit > 0 {
		q.Set("limit", strconv.Itoa(page.Limit))
	}
	if page.Before != "" {
		q.Set("before", page.Before)
	}
	var messages []models.Message
	err := c.do(ctx, http.MethodGet, "/api/rooms/"+url.PathEscape(roomID)+"/messages", q, nil, &messages)
	return messages, err
}

func (c *Client) PostMessage(ctx context.Context, roomID string, req PostMessageRequest) (models.Message, error) {
	var msg models.Message
	err := c.do(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(roomID)+"/messages", nil, req, &msg)
	return msg, err
}

func (c *Client) GetBoard(ctx context.Context, id string) (models.Document, error) {
	var doc models.Document
	err := c.do(ctx, http.MethodGet, "/api/boards/"+url.PathEscape(id), nil, nil, &doc)
	return doc, err
}

func (c *Client) SaveBoard(ctx context.Context, doc models.Document) (models.Document, error) {
	var saved models.Document
	err := c.do(ctx, http.MethodPatch, "/api/boards/"+url.PathEscape(doc.ID), nil, doc, &saved)
	return saved, err
}

func (c *Client) CreateBoard(ctx context.Context, req CreateBoardRequest) (models.Document, error) {
	var doc models.Document
	err := c.do(ctx, http.MethodPost, "/api/boards", nil, req, &doc)
	return doc, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.base.JoinPath(path)
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token, err := c.tokens.Token(); err == nil {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("Request completed", "method", method, "path", path,
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&eb)
		return &RequestError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: eb.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
