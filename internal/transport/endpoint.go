package transport

import (
	"errors"
	"fmt"
	"net/url"
)

type Kind string

const (
	KindRoom  Kind = "rooms"
	KindBoard Kind = "boards"
)

// Channel is a logical real-time endpoint: a chat room or a board.
type Channel struct {
	Kind Kind
	ID   string
}

func (c Channel) String() string {
	return string(c.Kind) + "/" + c.ID
}

var ErrNoHost = errors.New("no socket host: set a page URL or a host override")

// Endpoint derives the socket URL for a channel. The scheme mirrors the
// hosting page (https pages get wss), the host comes from the override or
// the page, and a non-empty token is appended as a query parameter.
func Endpoint(page *url.URL, hostOverride string, ch Channel, token string) (string, error) {
	scheme := "ws"
	host := hostOverride
	if page != nil {
		if page.Scheme == "https" {
			scheme = "wss"
		}
		if host == "" {
			host = page.Host
		}
	}
	if host == "" {
		return "", ErrNoHost
	}

	// The id is one path segment even when it contains a slash.
	u := url.URL{
		Scheme:  scheme,
		Host:    host,
		Path:    fmt.Sprintf("/ws/%s/%s", ch.Kind, ch.ID),
		RawPath: fmt.Sprintf("/ws/%s/%s", ch.Kind, url.PathEscape(ch.ID)),
	}
	if token != "" {
		q := url.Values{}
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
