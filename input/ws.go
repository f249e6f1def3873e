package input

import (
	"github.com/gorilla/websocket"
)

// WebSocketSource reads text frames from a websocket and serves them
// as physical lines.  Frames may contain several lines or end
// mid-line; the source reassembles either way.
type WebSocketSource struct {
	conn *websocket.Conn
	buf  *lineBuffer
}

// FromWebSocket dials the URL and starts reading frames.
func FromWebSocket(url string) (*WebSocketSource, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	s := &WebSocketSource{
		conn: conn,
		buf:  newLineBuffer(),
	}
	go s.pump()
	return s, nil
}

func (s *WebSocketSource) pump() {
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = nil
			}
			s.buf.finish(err)
			return
		}
		s.buf.feed(string(msg))
	}
}

// Next implements core.LineSource.
func (s *WebSocketSource) Next() (string, error) {
	return s.buf.next()
}

// Close closes the connection; a blocked Next unblocks with whatever
// remains buffered.  After that Next returns io.EOF only if the
// peer's close frame was read first; otherwise it returns the read
// error from the closed connection.
func (s *WebSocketSource) Close() error {
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}
