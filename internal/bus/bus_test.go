package bus

import (
	"context"
	"testing"
	"time"
)

func TestDispatchOutboundRoutesBySubscriber(t *testing.T) {
	b := NewMessageBus(10)

	got := make(chan OutboundMessage, 1)
	b.SubscribeOutbound("telegram", func(msg OutboundMessage) {
		got <- msg
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	b.Outbound <- OutboundMessage{Channel: "telegram", ChatID: "42", Content: "hi"}

	select {
	case msg := <-got:
		if msg.ChatID != "42" || msg.Content != "hi" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
}

func TestDispatchOutboundDropsUnknownChannel(t *testing.T) {
	b := NewMessageBus(10)

	got := make(chan OutboundMessage, 2)
	b.SubscribeOutbound("telegram", func(msg OutboundMessage) {
		got <- msg
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	b.Outbound <- OutboundMessage{Channel: "carrier-pigeon", ChatID: "1", Content: "lost"}
	b.Outbound <- OutboundMessage{Channel: "telegram", ChatID: "42", Content: "kept"}

	select {
	case msg := <-got:
		if msg.Content != "kept" {
			t.Fatalf("expected the unknown-channel message dropped, got %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
}

func TestSessionKey(t *testing.T) {
	msg := InboundMessage{Channel: "telegram", ChatID: "42", SenderID: "7"}
	if got := msg.SessionKey(); got != "telegram:42" {
		t.Fatalf("SessionKey = %q", got)
	}
}
