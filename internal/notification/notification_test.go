package notification

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/benki/benki/internal/logging"
)

type failingNotifier struct{}

func (failingNotifier) Send(context.Context, Message) error { return errors.New("smtp down") }

func TestLoggerNotifierWritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	n := NewLoggerNotifier(logging.NewWithWriter(&buf, "info"))

	if err := n.Send(context.Background(), Message{Kind: KindKYCVerified, Destination: "ada@benki.africa", Body: "verified"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(buf.String(), `"kind":"kyc_verified"`) {
		t.Fatalf("unexpected log %s", buf.String())
	}
}

func TestNotifyLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	Notify(context.Background(), failingNotifier{}, logging.NewWithWriter(&buf, "info"), Message{Kind: KindCircleJoined})
	if !strings.Contains(buf.String(), "notification failed") {
		t.Fatalf("expected warning, got %s", buf.String())
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	Notify(context.Background(), &r, nil, Message{Kind: KindCircleJoined, Destination: "u1"})
	if got := r.Messages(); len(got) != 1 || got[0].Destination != "u1" {
		t.Fatalf("unexpected messages %+v", got)
	}
}
