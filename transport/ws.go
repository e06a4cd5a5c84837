// Package transport provides the WebSocket upgrade handler that feeds
// command batches into a session.Hub.
package transport

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/caretdoc/caret/session"
)

// Incoming message rate limit per connection: generous enough for normal
// typing/paste bursts, low enough to bound a single abusive client's share
// of one document's integration work.
const (
	inboundRate  = 50 // messages per second
	inboundBurst = 100
)

// ─────────────────────────────────────────────────────────────
// Minimal WebSocket implementation (RFC 6455, stdlib-only: no pack repo
// carries a websocket library, so this stays hand-rolled as in the source)
// ─────────────────────────────────────────────────────────────

const wsGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

const (
	opContinuation = 0x0
	opText         = 0x1
	opBinary       = 0x2
	opClose        = 0x8
	opPing         = 0x9
	opPong         = 0xA
)

// wsHandshake performs the HTTP→WebSocket upgrade.
func wsHandshake(w http.ResponseWriter, r *http.Request) (net.Conn, *bufio.ReadWriter, error) {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return nil, nil, fmt.Errorf("not a websocket upgrade")
	}
	key := r.Header.Get("Sec-Websocket-Key")
	if key == "" {
		return nil, nil, fmt.Errorf("missing Sec-WebSocket-Key")
	}

	h := sha1.New()
	h.Write([]byte(key + wsGUID))
	accept := base64.StdEncoding.EncodeToString(h.Sum(nil))

	hj, ok := w.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("hijack unsupported")
	}
	conn, rw, err := hj.Hijack()
	if err != nil {
		return nil, nil, err
	}

	resp := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + accept + "\r\n\r\n"
	if _, err := rw.WriteString(resp); err != nil {
		conn.Close()
		return nil, nil, err
	}
	if err := rw.Flush(); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, rw, nil
}

// WSConn is a minimal WebSocket connection that writes text frames and
// reads unfragmented data frames, transparently answering pings and
// treating a close frame as io.EOF.
type WSConn struct {
	conn net.Conn
	rw   *bufio.ReadWriter
	mu   sync.Mutex
}

// ReadMessage reads the next WebSocket data frame payload (text, binary or
// a final continuation frame, returned as-is), looping past ping and pong
// frames; a close frame ends the read with io.EOF.
func (c *WSConn) ReadMessage() ([]byte, error) {
	for {
		fin, opcode, payload, err := c.readFrame()
		if err != nil {
			return nil, err
		}
		switch opcode {
		case opClose:
			return nil, io.EOF
		case opPing:
			if err := c.writeFrame(opPong, payload); err != nil {
				return nil, err
			}
			continue
		case opPong:
			continue
		case opText, opBinary, opContinuation:
			if !fin {
				// Fragmented messages aren't produced by this server's own
				// clients; treat an unfinished frame as a protocol error
				// rather than silently buffering unbounded fragments.
				return nil, fmt.Errorf("transport: fragmented frames unsupported")
			}
			return payload, nil
		default:
			return nil, fmt.Errorf("transport: unknown opcode %d", opcode)
		}
	}
}

// readFrame parses one RFC 6455 frame header and its (always masked, since
// this side only ever reads from clients) payload.
func (c *WSConn) readFrame() (fin bool, opcode byte, payload []byte, err error) {
	var head [2]byte
	if _, err = io.ReadFull(c.rw, head[:]); err != nil {
		return false, 0, nil, err
	}
	fin = head[0]&0x80 != 0
	opcode = head[0] & 0x0F
	masked := head[1]&0x80 != 0
	length := uint64(head[1] & 0x7F)

	switch length {
	case 126:
		var ext [2]byte
		if _, err = io.ReadFull(c.rw, ext[:]); err != nil {
			return false, 0, nil, err
		}
		length = uint64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err = io.ReadFull(c.rw, ext[:]); err != nil {
			return false, 0, nil, err
		}
		length = binary.BigEndian.Uint64(ext[:])
	}

	var maskKey [4]byte
	if masked {
		if _, err = io.ReadFull(c.rw, maskKey[:]); err != nil {
			return false, 0, nil, err
		}
	}

	payload = make([]byte, length)
	if _, err = io.ReadFull(c.rw, payload); err != nil {
		return false, 0, nil, err
	}
	if masked {
		for i := range payload {
			payload[i] ^= maskKey[i%4]
		}
	}
	return fin, opcode, payload, nil
}

// WriteMessage sends a text frame with the given payload.
func (c *WSConn) WriteMessage(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeFrame(opText, payload)
}

// writeFrame writes one unmasked frame (RFC 6455 forbids servers from
// masking their own frames).
func (c *WSConn) writeFrame(opcode byte, payload []byte) error {
	var header []byte
	header = append(header, 0x80|opcode)

	n := len(payload)
	switch {
	case n <= 125:
		header = append(header, byte(n))
	case n <= 0xFFFF:
		ext := make([]byte, 2)
		binary.BigEndian.PutUint16(ext, uint16(n))
		header = append(header, 126)
		header = append(header, ext...)
	default:
		ext := make([]byte, 8)
		binary.BigEndian.PutUint64(ext, uint64(n))
		header = append(header, 127)
		header = append(header, ext...)
	}

	if _, err := c.rw.Write(header); err != nil {
		return err
	}
	if _, err := c.rw.Write(payload); err != nil {
		return err
	}
	return c.rw.Flush()
}

// Close sends a WebSocket close frame and closes the underlying conn.
func (c *WSConn) Close() error {
	c.mu.Lock()
	_ = c.writeFrame(opClose, nil)
	c.mu.Unlock()
	return c.conn.Close()
}

// RemoteAddr returns the remote address string.
func (c *WSConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

// ─────────────────────────────────────────────────────────────
// wsSender — adapts WSConn to session.Sender
// ─────────────────────────────────────────────────────────────

type wsSender struct {
	ws *WSConn
}

func (s *wsSender) Send(msg session.Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.ws.WriteMessage(b)
}

func (s *wsSender) Close() error       { return s.ws.Close() }
func (s *wsSender) RemoteAddr() string { return s.ws.RemoteAddr() }

// ─────────────────────────────────────────────────────────────
// WSHandler
// ─────────────────────────────────────────────────────────────

// WSHandler handles WebSocket upgrade requests and feeds messages to the Hub.
type WSHandler struct {
	hub *session.Hub
	log *zap.Logger
}

// NewWSHandler creates a handler backed by the given Hub. log may be nil.
func NewWSHandler(hub *session.Hub, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{hub: hub, log: log.Named("transport")}
}

// ServeHTTP upgrades the connection and starts the read loop.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, rw, err := wsHandshake(w, r)
	if err != nil {
		http.Error(w, "WebSocket upgrade failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	ws := &WSConn{conn: conn, rw: rw}
	docID := strings.TrimPrefix(r.URL.Path, "/ws/")
	if docID == "" {
		docID = "default"
	}

	document := h.hub.GetOrCreate(docID)
	site, err := document.NewSite()
	if err != nil {
		h.log.Warn("site allocation failed", zap.String("doc", docID), zap.Error(err))
		ws.Close()
		return
	}

	sess := session.NewSession(session.NewSessionID(), docID, site, &wsSender{ws: ws}, h.hub)
	h.hub.Join(sess)
	defer h.hub.Leave(sess)

	limiter := rate.NewLimiter(rate.Limit(inboundRate), inboundBurst)

	for {
		payload, err := ws.ReadMessage()
		if err != nil {
			if err != io.EOF {
				h.log.Warn("ws read error", zap.String("session", sess.ID), zap.Error(err))
			}
			return
		}
		if !limiter.Allow() {
			h.log.Warn("rate limit exceeded, dropping message", zap.String("session", sess.ID))
			continue
		}
		var msg session.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.log.Warn("bad json", zap.Error(err))
			continue
		}
		msg.DocID = docID
		msg.SenderID = sess.ID
		h.hub.Dispatch(sess, msg)
	}
}
