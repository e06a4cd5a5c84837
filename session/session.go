// Package session manages connected clients and routes command batches to
// the right document, the same role the original hub played, now backed by
// the annotated replicated string in internal/doc instead of a bare RGA.
package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caretdoc/caret/internal/doc"
	"github.com/caretdoc/caret/internal/ident"
)

// Message kinds on the session wire, layered over doc's CommandSet codec.
const (
	MsgBatch    = "batch"    // client <-> server: a CommandSet to integrate
	MsgSnapshot = "snapshot" // server -> client: full document text on join
	MsgError    = "error"
)

// Message is the wire envelope carried over a transport.Sender.
type Message struct {
	DocID    string          `json:"doc_id"`
	Type     string          `json:"type"`
	Commands json.RawMessage `json:"commands,omitempty"` // doc.EncodeCommandSet output
	Text     string          `json:"text,omitempty"`     // MsgSnapshot payload
	Error    string          `json:"error,omitempty"`
	SenderID string          `json:"sender_id"`
	Ts       time.Time       `json:"ts"`
}

// Sender is implemented by the transport layer so a Session can push
// messages without this package depending on transport.
type Sender interface {
	Send(msg Message) error
	Close() error
	RemoteAddr() string
}

// Session represents one connected client editing a document.
type Session struct {
	ID     string // unique session id (UUID)
	DocID  string
	site   *ident.Site
	sender Sender
	hub    *Hub
}

// NewSession creates a session with the given transport sender. site must be
// unique within DocID; the caller normally gets one from Document.NewSite.
func NewSession(id, docID string, site *ident.Site, sender Sender, hub *Hub) *Session {
	return &Session{ID: id, DocID: docID, site: site, sender: sender, hub: hub}
}

// Site returns the identifier allocator assigned to this session.
func (s *Session) Site() *ident.Site { return s.site }

// Push sends a message to this client.
func (s *Session) Push(msg Message) error {
	return s.sender.Send(msg)
}

// Document holds the live Snapshot for one collaborative document plus its
// connected sessions. siteSeq hands out distinct site ids to joining
// sessions; it is scoped to the document, not the process, so two documents
// can each use the full 16-bit site space.
type Document struct {
	mu       sync.RWMutex
	ID       string
	snapshot doc.Snapshot
	sessions map[string]*Session
	siteSeq  uint32
}

// NewDocument creates a new empty document.
func NewDocument(id string) *Document {
	return &Document{
		ID:       id,
		snapshot: doc.New(),
		sessions: make(map[string]*Session),
	}
}

// NewSite allocates a fresh, document-scoped site for a joining session.
func (d *Document) NewSite() (*ident.Site, error) {
	id := atomic.AddUint32(&d.siteSeq, 1)
	if id == 0 || id > 0xFFFF {
		return nil, fmt.Errorf("session: document %s exhausted its site id space", d.ID)
	}
	return ident.NewSite(uint16(id))
}

// Text returns the current rendered document text.
func (d *Document) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshot.Render()
}

// Integrate applies batch to the document's snapshot, replacing it only if
// integration succeeds.
func (d *Document) Integrate(batch doc.CommandSet) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	next, err := doc.Integrate(d.snapshot, batch)
	if err != nil {
		return err
	}
	d.snapshot = next
	return nil
}

// Broadcast sends msg to every session except excludeID.
func (d *Document) Broadcast(msg Message, excludeID string, log *zap.Logger) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for id, s := range d.sessions {
		if id == excludeID {
			continue
		}
		if err := s.Push(msg); err != nil {
			log.Warn("broadcast failed", zap.String("session", id), zap.Error(err))
		}
	}
}

// Hub is the central registry of all active documents and sessions.
type Hub struct {
	mu  sync.RWMutex
	log *zap.Logger

	docs map[string]*Document
}

// NewHub creates a new Hub. log may be nil, in which case a no-op logger is
// used.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{docs: make(map[string]*Document), log: log.Named("session")}
}

// GetOrCreate returns the document with the given id, creating it if needed.
func (h *Hub) GetOrCreate(docID string) *Document {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d, ok := h.docs[docID]; ok {
		return d
	}
	d := NewDocument(docID)
	h.docs[docID] = d
	return d
}

// NewSessionID mints a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// Join registers sess with its document and sends the current text.
func (h *Hub) Join(sess *Session) {
	document := h.GetOrCreate(sess.DocID)
	document.mu.Lock()
	document.sessions[sess.ID] = sess
	text := document.snapshot.Render()
	document.mu.Unlock()

	if err := sess.Push(Message{
		DocID: sess.DocID,
		Type:  MsgSnapshot,
		Text:  text,
		Ts:    time.Now(),
	}); err != nil {
		h.log.Warn("failed to push initial snapshot", zap.String("session", sess.ID), zap.Error(err))
	}
}

// Leave removes a session from its document.
func (h *Hub) Leave(sess *Session) {
	document := h.GetOrCreate(sess.DocID)
	document.mu.Lock()
	delete(document.sessions, sess.ID)
	document.mu.Unlock()

	h.log.Info("session left", zap.String("session", sess.ID), zap.String("doc", sess.DocID))
}

// Dispatch handles an incoming message from a session: decode its command
// batch, integrate it, and relay the batch verbatim to every other session
// on the same document.
func (h *Hub) Dispatch(sess *Session, msg Message) {
	document := h.GetOrCreate(msg.DocID)

	switch msg.Type {
	case MsgBatch:
		batch, err := doc.DecodeCommandSet(msg.Commands)
		if err != nil {
			h.log.Warn("malformed batch", zap.String("session", sess.ID), zap.Error(err))
			h.sendError(sess, msg.DocID, err)
			return
		}
		if err := document.Integrate(batch); err != nil {
			h.log.Warn("integrate failed", zap.String("session", sess.ID), zap.Error(err))
			h.sendError(sess, msg.DocID, err)
			return
		}
		document.Broadcast(msg, sess.ID, h.log)

	default:
		h.log.Warn("unknown message type", zap.String("type", msg.Type))
	}
}

func (h *Hub) sendError(sess *Session, docID string, cause error) {
	_ = sess.Push(Message{DocID: docID, Type: MsgError, Error: cause.Error(), Ts: time.Now()})
}
