package messaging

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/daemonunit42/modguard/internal/moderation"
)

// newTestNATSClient connects to a local NATS server. Tests that call this
// helper require a running NATS on localhost:4222 and skip otherwise.
func newTestNATSClient(t *testing.T) *NATSClient {
	t.Helper()
	config := DefaultNATSConfig()
	config.Name = "modguard-messaging-test"
	client, err := NewNATSClient(config)
	if err != nil {
		t.Skipf("nats not available: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func waitFor(t *testing.T, ch <-chan []byte, what string) []byte {
	t.Helper()
	select {
	case data := <-ch:
		return data
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return nil
	}
}

// TestModerationCheckRoundTrip publishes a check request the way a requester
// would and verifies the daemon-side subscription receives it intact.
func TestModerationCheckRoundTrip(t *testing.T) {
	client := newTestNATSClient(t)

	received := make(chan []byte, 1)
	if err := client.SubscribeModerationCheck(func(data []byte) {
		received <- data
	}); err != nil {
		t.Fatalf("SubscribeModerationCheck: %v", err)
	}

	req := moderation.CheckRequest{Username: "nina", Text: "hello there", Ts: time.Now().Unix()}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	if err := client.PublishModerationRequest(data); err != nil {
		t.Fatalf("PublishModerationRequest: %v", err)
	}

	var got moderation.CheckRequest
	if err := json.Unmarshal(waitFor(t, received, "check request"), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != req {
		t.Errorf("request = %+v, want %+v", got, req)
	}
}

// TestModerationResultRoundTrip covers the requester side of the result
// channel, including unsubscribing once the requester is done.
func TestModerationResultRoundTrip(t *testing.T) {
	client := newTestNATSClient(t)

	received := make(chan []byte, 1)
	if err := client.SubscribeModerationResult("nina", func(data []byte) {
		received <- data
	}); err != nil {
		t.Fatalf("SubscribeModerationResult: %v", err)
	}

	result := moderation.CheckResult{
		Username: "nina", Bad: true, Reason: "Contains explicit profanity: 'fuck'",
		Severity: "high", Category: "explicit_content", Source: "local_filter", Warnings: 1,
	}
	data, err := json.Marshal(result)
	if err != nil {
		t.Fatal(err)
	}
	if err := client.PublishModerationResult("nina", data); err != nil {
		t.Fatalf("PublishModerationResult: %v", err)
	}

	var got moderation.CheckResult
	if err := json.Unmarshal(waitFor(t, received, "moderation result"), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != result {
		t.Errorf("result = %+v, want %+v", got, result)
	}

	// Results for other users must not leak onto this subscription.
	if err := client.PublishModerationResult("omar", data); err != nil {
		t.Fatalf("PublishModerationResult: %v", err)
	}

	if err := client.UnsubscribeModerationResult("nina"); err != nil {
		t.Fatalf("UnsubscribeModerationResult: %v", err)
	}
	if err := client.PublishModerationResult("nina", data); err != nil {
		t.Fatalf("PublishModerationResult: %v", err)
	}
	select {
	case <-received:
		t.Error("received a result after unsubscribing")
	case <-time.After(200 * time.Millisecond):
	}

	if err := client.UnsubscribeModerationResult("nina"); err == nil {
		t.Error("unsubscribing twice should report the missing subscription")
	}
}

// TestAppealRoundTrip drives both sides of the appeal channel: the requester
// publishes an appeal, the daemon side receives it and answers on the user's
// result subject.
func TestAppealRoundTrip(t *testing.T) {
	client := newTestNATSClient(t)

	appeals := make(chan []byte, 1)
	if err := client.SubscribeAppeals(func(data []byte) {
		appeals <- data
	}); err != nil {
		t.Fatalf("SubscribeAppeals: %v", err)
	}
	outcomes := make(chan []byte, 1)
	if err := client.Subscribe(SubjectAppealResult+".pola", func(msg *nats.Msg) {
		outcomes <- msg.Data
	}); err != nil {
		t.Fatalf("Subscribe appeal result: %v", err)
	}

	req := moderation.AppealRequest{Username: "pola"}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	if err := client.PublishAppealRequest(data); err != nil {
		t.Fatalf("PublishAppealRequest: %v", err)
	}

	var gotReq moderation.AppealRequest
	if err := json.Unmarshal(waitFor(t, appeals, "appeal request"), &gotReq); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if gotReq != req {
		t.Errorf("appeal request = %+v, want %+v", gotReq, req)
	}

	result := moderation.AppealResult{Username: "pola", Granted: true, Warnings: 2}
	data, err = json.Marshal(result)
	if err != nil {
		t.Fatal(err)
	}
	if err := client.PublishAppealResult("pola", data); err != nil {
		t.Fatalf("PublishAppealResult: %v", err)
	}

	var gotResult moderation.AppealResult
	if err := json.Unmarshal(waitFor(t, outcomes, "appeal result"), &gotResult); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if gotResult != result {
		t.Errorf("appeal result = %+v, want %+v", gotResult, result)
	}
}
