// Package integration covers the ephemeral typing relay.
package integration

import (
	"testing"
	"time"

	"github.com/lanchat/lanchat/internal/server"
	"github.com/lanchat/lanchat/test/testhelpers"
)

// TestTypingRelayExcludesSender verifies that typing signals reach every
// other member but are never echoed back to the sender.
func TestTypingRelayExcludesSender(t *testing.T) {
	ts, _ := startSession(t)

	alice, _, _ := joinSession(t, ts, "alice")
	bob, _, _ := joinSession(t, ts, "bob")
	carol, _, _ := joinSession(t, ts, "carol")
	// Drain the join announcements the earlier members received.
	testhelpers.ReadEvent(t, alice, server.EventUserJoined, nil)
	testhelpers.ReadEvent(t, alice, server.EventUserJoined, nil)
	testhelpers.ReadEvent(t, bob, server.EventUserJoined, nil)

	testhelpers.SendEnvelope(t, alice, server.EventTyping, server.TypingRequest{IsTyping: true})

	var notice server.TypingNotice
	testhelpers.ReadEvent(t, bob, server.EventUserTyping, &notice)
	if notice.Username != localIdentity("alice") || !notice.IsTyping {
		t.Errorf("Unexpected typing notice %+v", notice)
	}
	testhelpers.ReadEvent(t, carol, server.EventUserTyping, &notice)
	if notice.Username != localIdentity("alice") || !notice.IsTyping {
		t.Errorf("Unexpected typing notice %+v", notice)
	}

	testhelpers.ExpectNoMessage(t, alice, 300*time.Millisecond)
}

// TestTypingStopRelayed verifies that the cleared typing state is relayed
// too.
func TestTypingStopRelayed(t *testing.T) {
	ts, _ := startSession(t)

	alice, _, _ := joinSession(t, ts, "alice")
	bob, _, _ := joinSession(t, ts, "bob")
	testhelpers.ReadEvent(t, alice, server.EventUserJoined, nil)

	testhelpers.SendEnvelope(t, alice, server.EventTyping, server.TypingRequest{IsTyping: true})
	testhelpers.SendEnvelope(t, alice, server.EventTyping, server.TypingRequest{IsTyping: false})

	var notice server.TypingNotice
	testhelpers.ReadEvent(t, bob, server.EventUserTyping, &notice)
	if !notice.IsTyping {
		t.Errorf("Expected first notice to report typing, got %+v", notice)
	}
	testhelpers.ReadEvent(t, bob, server.EventUserTyping, &notice)
	if notice.IsTyping {
		t.Errorf("Expected second notice to report stopped typing, got %+v", notice)
	}
}

// TestTypingNotReplayed verifies that typing signals never land in the
// history cache.
func TestTypingNotReplayed(t *testing.T) {
	ts, _ := startSession(t)

	alice, _, _ := joinSession(t, ts, "alice")
	testhelpers.SendEnvelope(t, alice, server.EventTyping, server.TypingRequest{IsTyping: true})

	_, history, _ := joinSession(t, ts, "bob")
	for _, event := range history {
		if event.Kind != server.KindSystem {
			t.Errorf("Unexpected non-system event in history: %+v", event)
		}
	}
	if len(history) != 1 {
		t.Errorf("Expected only the join announcement in history, got %d events", len(history))
	}
}

// TestPreJoinTypingDropped verifies that typing from an unjoined connection
// is ignored.
func TestPreJoinTypingDropped(t *testing.T) {
	ts, _ := startSession(t)

	alice, _, _ := joinSession(t, ts, "alice")

	lurker := testhelpers.DialWebSocket(t, ts.URL, ts.URL)
	testhelpers.SendEnvelope(t, lurker, server.EventTyping, server.TypingRequest{IsTyping: true})

	testhelpers.ExpectNoMessage(t, alice, 300*time.Millisecond)
}
