package dispatch

import "sync"

// Writer delivers encoded frames to the remote end of a connection.
type Writer interface {
	WriteFrame(data []byte) error
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(data []byte) error

// WriteFrame calls f(data).
func (f WriterFunc) WriteFrame(data []byte) error {
	return f(data)
}

// Client is one live connection as seen by the dispatcher. Frames queued
// for it are written in order by a single writer goroutine.
type Client struct {
	id     string
	userID string
	writer Writer
	send   chan []byte
	done   chan struct{}

	// attached and closed are guarded by the dispatcher's lock.
	attached bool
	closed   bool

	failOnce sync.Once
}

// NewClient creates a connection handle. outboxSize bounds the number of
// frames waiting to be written.
func NewClient(id, userID string, w Writer, outboxSize int) *Client {
	if outboxSize <= 0 {
		outboxSize = DefaultOutboxSize
	}
	return &Client{
		id:     id,
		userID: userID,
		writer: w,
		send:   make(chan []byte, outboxSize),
		done:   make(chan struct{}),
	}
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// UserID returns the authenticated user owning the connection.
func (c *Client) UserID() string {
	return c.userID
}

// Done is closed once every queued frame has been written (or dropped)
// after the client was removed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) writePump(onError func(c *Client, err error)) {
	defer close(c.done)

	failed := false
	for data := range c.send {
		if failed {
			continue
		}
		if err := c.writer.WriteFrame(data); err != nil {
			failed = true
			c.failOnce.Do(func() { onError(c, err) })
		}
	}
}
