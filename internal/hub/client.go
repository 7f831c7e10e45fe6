package hub

import (
	"context"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"chatteta/internal/event"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Connection lifecycle states. The transition order is strictly
// Connecting -> Authenticating -> Active -> Closed; Closed is terminal.
const (
	StateConnecting int32 = iota
	StateAuthenticating
	StateActive
	StateClosed
)

var (
	// tuning parameters
	writeWait          = 10 * time.Second       // time allowed to write a message to the peer
	pongWait           = 20 * time.Second       // time allowed to read the next pong message from the peer
	pingInterval       = (pongWait * 9) / 10    // send pings to peer with this period
	maxMessageSize     = 64 * 1024              // max inbound message size (64KB)
	sendBufSize        = 256                    // per-connection outbound buffer size
	laneCount          = 16                     // number of workers processing inbound messages
	sendTimeout        = 2 * time.Second        // timeout for enqueuing outbound messages
	kickOnFull         = true                   // when true, disconnect client when egress is full
	registerTimeout    = 5 * time.Second        // timeout for client registration
	unregisterTimeout  = 5 * time.Second        // timeout for client unregistration
	inboundSendTimeout = 500 * time.Millisecond // timeout for sending to an inbound lane
)

// Client is one live transport-level session. The user identity is attached
// once the handshake credential has been verified.
type Client struct {
	ID        string
	userID    string
	conn      *websocket.Conn
	hub       *Hub
	egress    chan event.WsEvent
	createdAt time.Time

	state int32 // lifecycle state, atomic

	// cancel or stop goroutines
	cancel         context.CancelFunc
	ctx            context.Context
	once           sync.Once
	connClosed     chan struct{}
	connClosedOnce sync.Once
}

func newClient(userID string, conn *websocket.Conn, h *Hub) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		ID:             uuid.New().String(),
		userID:         userID,
		conn:           conn,
		hub:            h,
		egress:         make(chan event.WsEvent, sendBufSize),
		createdAt:      time.Now(),
		state:          StateAuthenticating,
		cancel:         cancel,
		ctx:            ctx,
		connClosed:     make(chan struct{}),
		connClosedOnce: sync.Once{},
	}
}

// UserID returns the identity attached at authentication.
func (c *Client) UserID() string {
	return c.userID
}

func (c *Client) setState(s int32) {
	atomic.StoreInt32(&c.state, s)
}

func (c *Client) State() int32 {
	return atomic.LoadInt32(&c.state)
}

func (c *Client) ReadMessages() {
	defer func() {
		select {
		case c.hub.unregister <- c:
			// unregistered successfully
		case <-time.After(unregisterTimeout):
			log.Printf("failed to unregister client %s: timeout", c.ID)
		}
		c.Close()
	}()

	c.conn.SetReadLimit(int64(maxMessageSize))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(c.pongHandler)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			var ev event.WsEvent

			if err := c.conn.ReadJSON(&ev); err != nil {

				if websocket.IsCloseError(err,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					log.Printf("client disconnected: %v", c.ID)
					return
				}

				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseInternalServerErr,
					websocket.CloseProtocolError,
				) {
					log.Printf("unexpected close for %s: %v", c.ID, err)
				}

				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					log.Printf("client %s timed out - closing connection", c.ID)
					return
				}

				// For other errors, log and exit (cleanup will happen in defer)
				log.Printf("error reading from client %s: %v", c.ID, err)
				return
			}

			// Non-blocking handoff to the connection's inbound lane so the
			// reader never stalls behind a slow handler.
			select {
			case c.hub.laneFor(c.ID) <- inboundMessage{client: c, event: ev}:
				// accepted for processing
			case <-time.After(inboundSendTimeout):
				log.Printf("inbound send timeout: dropping client %s", c.ID)
				c.cancel()
				c.conn.Close()
			case <-c.ctx.Done():
				log.Printf("closing read pump for client: %s", c.ID)
				return
			}
		}
	}
}

func (c *Client) WriteMessages() {
	ticker := time.NewTicker(pingInterval)

	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()

		// Safe close of connClosed channel using sync.Once
		c.connClosedOnce.Do(func() {
			close(c.connClosed)
		})
	}()

	for {
		select {
		case <-c.ctx.Done():
			if err := c.conn.WriteMessage(websocket.CloseMessage, nil); err != nil {
				log.Printf("connection closed: %v", err)
			}
			return
		case ev := <-c.egress:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				log.Println("write error: ", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Println("ping error: ", err)
				return
			}
		}
	}
}

func (c *Client) pongHandler(pongMsg string) error {
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

func (c *Client) Close() {
	c.once.Do(func() {
		// Mark closed before waking the pumps so SafeSend's fast path
		// rejects new work; egress is drained by context, never closed,
		// so late senders cannot panic.
		c.setState(StateClosed)

		if c.cancel != nil {
			c.cancel()
		}

		// No transport attached: nothing left to tear down.
		if c.conn == nil {
			return
		}

		// Wait for WriteMessages to close conn, or force close after timeout
		go func() {
			select {
			case <-c.connClosed:
				// WriteMessages closed it properly
			case <-time.After(5 * time.Second):
				_ = c.conn.Close()
				log.Printf("safety timeout: force closed connection for client %s", c.ID)
			}
		}()
	})
}

// IsClosed returns true once the client has reached its terminal state.
func (c *Client) IsClosed() bool {
	return c.State() == StateClosed
}

// SafeSend attempts to enqueue an event on the client's egress channel.
// Returns false if the client is closed or the buffer stays full past the
// timeout. Sending to a closed client is a silent no-op by design.
func (c *Client) SafeSend(ev event.WsEvent, timeout time.Duration) bool {
	// Closed check first (fast path)
	if c.IsClosed() {
		return false
	}

	select {
	case <-c.ctx.Done():
		return false
	case c.egress <- ev:
		return true
	case <-time.After(timeout):
		return false
	}
}
