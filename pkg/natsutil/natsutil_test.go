package natsutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

func startTestNATS(t *testing.T) (*natsserver.Server, *nats.Conn) {
	t.Helper()
	opts := &natsserver.Options{Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return srv, nc
}

type job struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func TestPublish(t *testing.T) {
	_, nc := startTestNATS(t)

	// Subscribe raw to verify Publish output
	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe("test.pub", ch)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	err = Publish(context.Background(), nc, "test.pub", job{ID: "f-1", Count: 3})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-ch:
		var j job
		if err := json.Unmarshal(msg.Data, &j); err != nil {
			t.Fatal(err)
		}
		if j.ID != "f-1" || j.Count != 3 {
			t.Fatalf("unexpected payload: %+v", j)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestSubscribe(t *testing.T) {
	_, nc := startTestNATS(t)

	ch := make(chan job, 1)
	sub, err := Subscribe(nc, "test.sub", func(ctx context.Context, j job) {
		ch <- j
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	// Publish via our helper
	err = Publish(context.Background(), nc, "test.sub", job{ID: "f-2", Count: 42})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case j := <-ch:
		if j.ID != "f-2" || j.Count != 42 {
			t.Fatalf("unexpected: %+v", j)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout")
	}
}

func TestSubscribeDropsMalformed(t *testing.T) {
	_, nc := startTestNATS(t)

	called := make(chan struct{}, 1)
	sub, err := Subscribe(nc, "test.malformed", func(ctx context.Context, j job) {
		called <- struct{}{}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	// Send malformed JSON
	nc.Publish("test.malformed", []byte("{bad"))
	nc.Flush()

	select {
	case <-called:
		t.Fatal("handler should not be called for malformed data")
	case <-time.After(100 * time.Millisecond):
		// expected
	}
}

func TestPublishMarshalError(t *testing.T) {
	_, nc := startTestNATS(t)

	// chan is not JSON-marshalable
	err := Publish(context.Background(), nc, "test.err", make(chan int))
	if err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestHeaderCarrier(t *testing.T) {
	msg := &nats.Msg{Subject: "test.carrier"}
	c := (*natsHeaderCarrier)(msg)

	if got := c.Get("traceparent"); got != "" {
		t.Fatalf("expected empty value on nil header, got %q", got)
	}
	if keys := c.Keys(); keys != nil {
		t.Fatalf("expected nil keys on nil header, got %v", keys)
	}

	c.Set("traceparent", "00-abc-def-01")
	if got := c.Get("traceparent"); got != "00-abc-def-01" {
		t.Fatalf("round-trip: got %q", got)
	}
	if keys := c.Keys(); len(keys) != 1 {
		t.Fatalf("expected one key, got %v", keys)
	}
}
