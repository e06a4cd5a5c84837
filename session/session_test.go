package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caretdoc/caret/internal/doc"
)

type fakeSender struct {
	sent []Message
}

func (f *fakeSender) Send(msg Message) error {
	f.sent = append(f.sent, msg)
	return nil
}
func (f *fakeSender) Close() error       { return nil }
func (f *fakeSender) RemoteAddr() string { return "test" }

func newTestSession(t *testing.T, docID string, hub *Hub) (*Session, *fakeSender) {
	t.Helper()
	document := hub.GetOrCreate(docID)
	site, err := document.NewSite()
	require.NoError(t, err)
	sender := &fakeSender{}
	sess := NewSession(NewSessionID(), docID, site, sender, hub)
	return sess, sender
}

func TestJoinSendsSnapshot(t *testing.T) {
	hub := NewHub(nil)
	sess, sender := newTestSession(t, "doc1", hub)

	hub.Join(sess)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, MsgSnapshot, sender.sent[0].Type)
	assert.Equal(t, "", sender.sent[0].Text)
}

func TestDispatchBroadcastsToOtherSessions(t *testing.T) {
	hub := NewHub(nil)
	a, senderA := newTestSession(t, "doc1", hub)
	b, senderB := newTestSession(t, "doc1", hub)
	hub.Join(a)
	hub.Join(b)
	senderA.sent = nil
	senderB.sent = nil

	batch := doc.CommandSet{doc.Insert{ID: a.Site().Generate(), After: doc.Begin, Before: doc.End, Chr: 'x'}}
	encoded, err := doc.EncodeCommandSet(batch)
	require.NoError(t, err)

	hub.Dispatch(a, Message{DocID: "doc1", Type: MsgBatch, Commands: encoded})

	assert.Empty(t, senderA.sent, "sender should not receive its own batch back")
	require.Len(t, senderB.sent, 1)
	assert.Equal(t, MsgBatch, senderB.sent[0].Type)

	assert.Equal(t, "x", hub.GetOrCreate("doc1").Text())
}

func TestDispatchMalformedBatchSendsError(t *testing.T) {
	hub := NewHub(nil)
	sess, sender := newTestSession(t, "doc1", hub)
	hub.Join(sess)
	sender.sent = nil

	hub.Dispatch(sess, Message{DocID: "doc1", Type: MsgBatch, Commands: []byte(`not json`)})

	require.Len(t, sender.sent, 1)
	assert.Equal(t, MsgError, sender.sent[0].Type)
	assert.NotEmpty(t, sender.sent[0].Error)
}

func TestLeaveRemovesSession(t *testing.T) {
	hub := NewHub(nil)
	sess, _ := newTestSession(t, "doc1", hub)
	hub.Join(sess)
	hub.Leave(sess)

	document := hub.GetOrCreate("doc1")
	assert.NotContains(t, document.sessions, sess.ID)
	batch := doc.CommandSet{doc.Insert{ID: sess.Site().Generate(), After: doc.Begin, Before: doc.End, Chr: 'y'}}
	require.NoError(t, document.Integrate(batch))
	assert.Equal(t, "y", document.Text())
}

func TestDocumentNewSiteAssignsDistinctIDs(t *testing.T) {
	d := NewDocument("doc1")
	s1, err := d.NewSite()
	require.NoError(t, err)
	s2, err := d.NewSite()
	require.NoError(t, err)
	assert.NotEqual(t, s1.SiteID(), s2.SiteID())
}
