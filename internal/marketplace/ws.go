// Package marketplace provides the NFT marketplace stream and order API
// clients. Stream credentials live here and nowhere else.
package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/floorarb/floorarb/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	listingChannel = "item_listed"
)

// ListingHandler is called for each decoded listing event.
type ListingHandler func(domain.ListingEvent)

// StreamClient is a WebSocket client for the marketplace order stream. It
// manages a single connection; reconnection policy belongs to the caller
// (the listing collector).
type StreamClient struct {
	wsURL  string
	apiKey string

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	handlerMu sync.RWMutex
	onListing ListingHandler

	// errCh surfaces the read-loop failure that ended the connection.
	errCh chan error
}

// NewStreamClient creates a stream client for the given endpoint.
func NewStreamClient(wsURL, apiKey string) *StreamClient {
	return &StreamClient{
		wsURL:  wsURL,
		apiKey: apiKey,
		errCh:  make(chan error, 1),
	}
}

// OnListing registers the handler invoked for each listing.
func (s *StreamClient) OnListing(h ListingHandler) {
	s.handlerMu.Lock()
	s.onListing = h
	s.handlerMu.Unlock()
}

// Connect establishes the WebSocket connection and starts the read and
// ping loops.
func (s *StreamClient) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("marketplace/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	var header http.Header
	if s.apiKey != "" {
		header = http.Header{"X-Api-Key": []string{s.apiKey}}
	}
	conn, _, err := dialer.DialContext(ctx, s.wsURL, header)
	if err != nil {
		return fmt.Errorf("marketplace/ws: connect: %w", err)
	}
	s.conn = conn

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go s.readLoop(conn)
	go s.pingLoop(conn)

	return nil
}

// Subscribe subscribes to item_listed for the given collection addresses.
// An empty slice subscribes to the firehose.
func (s *StreamClient) Subscribe(collections []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("marketplace/ws: not connected")
	}
	cmd := wsCommand{Type: "subscribe", Channel: listingChannel, Collections: collections}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("marketplace/ws: subscribe: %w", err)
	}
	return nil
}

// Err returns a channel that receives the error that terminated the
// current connection's read loop.
func (s *StreamClient) Err() <-chan error { return s.errCh }

// Close shuts down the connection. The client cannot be reused after Close.
func (s *StreamClient) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

func (s *StreamClient) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case s.errCh <- fmt.Errorf("marketplace/ws: read: %w", err):
			default:
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			// Skip malformed frames; a single bad message must not kill
			// the stream.
			continue
		}
		if msg.Channel != listingChannel {
			continue
		}
		ev, err := msg.Payload.toEvent(time.Now().UTC())
		if err != nil {
			continue
		}

		s.handlerMu.RLock()
		h := s.onListing
		s.handlerMu.RUnlock()
		if h != nil {
			h(ev)
		}
	}
}

func (s *StreamClient) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			return
		}
	}
}
