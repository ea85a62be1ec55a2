package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/pankaj-dahiya-devops/gdr/internal/config"
	"github.com/pankaj-dahiya-devops/gdr/internal/models"
	"github.com/pankaj-dahiya-devops/gdr/internal/providers/aws/common"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func testFinding(severity float64) *models.Finding {
	return &models.Finding{
		ID:          "f-123",
		AccountID:   "111122223333",
		Region:      "eu-west-1",
		Type:        "UnauthorizedAccess:EC2/TorClient",
		Description: "EC2 instance i-abc is communicating with a Tor entry node.",
		Severity:    severity,
		Resource: models.Resource{
			ResourceType:    models.ResourceTypeInstance,
			InstanceDetails: &models.InstanceDetails{InstanceID: "i-abc"},
		},
	}
}

func failedResult() *models.PlaybookResult {
	tag := models.Success(map[string]any{"instance_id": "i-abc"})
	tag.ActionName = "TagInstance"
	iso := models.Failure("EC2 ModifyNetworkInterfaceAttribute: AccessDenied")
	iso.ActionName = "IsolateInstance"
	return &models.PlaybookResult{ActionResults: []models.ActionResult{tag, iso}}
}

type recordingChannel struct {
	name string
	err  error

	mu   sync.Mutex
	msgs []Message
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(_ context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return c.err
}

type fakeSNS struct {
	common.SNSClient
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("m-1")}, nil
}

// ── Manager ──────────────────────────────────────────────────────────────────

func TestManager_SendStarting_FansOutToAllChannels(t *testing.T) {
	a := &recordingChannel{name: "a"}
	b := &recordingChannel{name: "b"}
	m := NewManager(nil, "", a, b)

	if err := m.SendStarting(context.Background(), testFinding(8), "EC2InstanceCompromise"); err != nil {
		t.Fatalf("SendStarting: %v", err)
	}
	for _, ch := range []*recordingChannel{a, b} {
		if len(ch.msgs) != 1 {
			t.Fatalf("channel %s: got %d messages, want 1", ch.name, len(ch.msgs))
		}
		msg := ch.msgs[0]
		if msg.Kind != KindStarting {
			t.Errorf("kind: got %q, want %q", msg.Kind, KindStarting)
		}
		if msg.Severity != models.SeverityHigh {
			t.Errorf("severity: got %q, want HIGH", msg.Severity)
		}
		if msg.Playbook != "EC2InstanceCompromise" {
			t.Errorf("playbook: got %q", msg.Playbook)
		}
	}
}

func TestManager_ChannelErrorDoesNotStopOthers(t *testing.T) {
	bad := &recordingChannel{name: "bad", err: errors.New("boom")}
	good := &recordingChannel{name: "good"}
	m := NewManager(nil, "", bad, good)

	err := m.SendComplete(context.Background(), CompleteNotice{
		Finding:  testFinding(5),
		Playbook: "EC2InstanceCompromise",
		Result:   failedResult(),
		Failed:   true,
	})
	if err == nil || !strings.Contains(err.Error(), "bad: boom") {
		t.Fatalf("want joined channel error, got %v", err)
	}
	if len(good.msgs) != 1 {
		t.Fatalf("good channel: got %d messages, want 1", len(good.msgs))
	}
	got := good.msgs[0].Counts
	if got.Success != 1 || got.Error != 1 {
		t.Errorf("counts: got %+v, want 1 success 1 error", got)
	}
	if !good.msgs[0].Failed {
		t.Error("Failed should be propagated")
	}
}

func TestManager_JoinsEveryChannelError(t *testing.T) {
	slack := &recordingChannel{name: "slack", err: errors.New("timeout")}
	good := &recordingChannel{name: "log"}
	topic := &recordingChannel{name: "sns", err: errors.New("throttled")}
	m := NewManager(nil, "", slack, good, topic)

	err := m.SendStarting(context.Background(), testFinding(8), "EC2TorRelay")
	if err == nil {
		t.Fatal("want error, got nil")
	}
	want := "slack: timeout\nsns: throttled"
	if err.Error() != want {
		t.Errorf("error: got %q, want %q", err.Error(), want)
	}
	if len(good.msgs) != 1 {
		t.Errorf("log channel: got %d messages, want 1", len(good.msgs))
	}
}

func TestManager_MinSeveritySuppresses(t *testing.T) {
	ch := &recordingChannel{name: "c"}
	m := NewManager(nil, models.SeverityHigh, ch)

	if err := m.SendStarting(context.Background(), testFinding(5), "X"); err != nil {
		t.Fatalf("SendStarting: %v", err)
	}
	if len(ch.msgs) != 0 {
		t.Fatalf("MEDIUM finding should be suppressed at min HIGH, got %d messages", len(ch.msgs))
	}
	if err := m.SendStarting(context.Background(), testFinding(9.5), "X"); err != nil {
		t.Fatalf("SendStarting: %v", err)
	}
	if len(ch.msgs) != 1 {
		t.Fatalf("CRITICAL finding should pass min HIGH, got %d messages", len(ch.msgs))
	}
}

func TestManager_NoChannels(t *testing.T) {
	m := NewManager(nil, "")
	if err := m.SendStarting(context.Background(), testFinding(2), "X"); err != nil {
		t.Fatalf("SendStarting with no channels: %v", err)
	}
}

// ── FromConfig ───────────────────────────────────────────────────────────────

func TestFromConfig_BuildsEnabledChannels(t *testing.T) {
	cfg := config.NotificationsConfig{
		MinSeverity: "medium",
		Slack:       config.SlackConfig{WebhookURL: "https://hooks.slack.invalid/x"},
		SNS:         config.SNSConfig{TopicARN: "arn:aws:sns:eu-west-1:111122223333:gdr"},
		Log:         true,
	}
	m, err := FromConfig(cfg, &fakeSNS{}, nil)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	got := strings.Join(m.Channels(), ",")
	if got != "slack,sns,log" {
		t.Errorf("channels: got %q, want slack,sns,log", got)
	}
	if m.minSeverity != models.SeverityMedium {
		t.Errorf("min severity: got %q, want MEDIUM", m.minSeverity)
	}
}

func TestFromConfig_TopicWithoutClient(t *testing.T) {
	cfg := config.NotificationsConfig{SNS: config.SNSConfig{TopicARN: "arn:aws:sns:us-east-1:1:t"}}
	if _, err := FromConfig(cfg, nil, nil); err == nil {
		t.Fatal("expected error when topic is set without a client")
	}
}

// ── rendering ────────────────────────────────────────────────────────────────

func TestRenderComplete_Trail(t *testing.T) {
	res := failedResult()
	skip := models.Skipped("allow_terminate is disabled")
	skip.ActionName = "TerminateInstance"
	res.ActionResults = append(res.ActionResults, skip)
	res.EnrichedData = map[string]any{"vpc_id": "vpc-1", "instance_id": "i-abc"}

	body := RenderComplete(CompleteNotice{
		ExecutionID: "exec-1",
		Finding:     testFinding(8),
		Playbook:    "EC2InstanceCompromise",
		Result:      res,
		Failed:      true,
	})

	for _, want := range []string{
		"Status:    FAILED",
		"Execution: exec-1",
		"Resource:  EC2 instance i-abc",
		"✔ TagInstance",
		"✖ IsolateInstance: EC2 ModifyNetworkInterfaceAttribute: AccessDenied",
		"– TerminateInstance: allow_terminate is disabled",
		"Enriched data: instance_id, vpc_id",
		"(1 succeeded, 1 failed, 1 skipped)",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
	if strings.Index(body, "TagInstance") > strings.Index(body, "IsolateInstance") {
		t.Error("trail must preserve execution order")
	}
}

func TestRenderComplete_NoResult(t *testing.T) {
	body := RenderComplete(CompleteNotice{Finding: testFinding(3), Playbook: UnresolvedPlaybook, Failed: true})
	if !strings.Contains(body, "No actions were executed.") {
		t.Errorf("body: %s", body)
	}
	if !strings.Contains(body, "Playbook:  Unresolved") {
		t.Errorf("body: %s", body)
	}
}

func TestSubject_Truncated(t *testing.T) {
	f := testFinding(8)
	f.Type = strings.Repeat("X", 150)
	s := startingSubject(f, "EC2InstanceCompromise")
	if len(s) != maxSubject {
		t.Fatalf("len: got %d, want %d", len(s), maxSubject)
	}
	if !strings.HasSuffix(s, "...") {
		t.Errorf("truncated subject should end with ...: %q", s)
	}
}

func TestResourceSummary(t *testing.T) {
	cases := []struct {
		name string
		res  models.Resource
		want string
	}{
		{"access key", models.Resource{AccessKeyDetails: &models.AccessKeyDetails{UserType: "IAMUser", UserName: "alice", AccessKeyID: "AKIA1"}}, "IAMUser alice (AKIA1)"},
		{"buckets", models.Resource{S3BucketDetails: []models.S3BucketDetail{{Name: "a"}, {Name: "b"}}}, "S3 bucket a, b"},
		{"rds", models.Resource{
			RdsDbInstanceDetails: &models.RdsDbInstanceDetails{DbInstanceIdentifier: "db-1"},
			RdsDbUserDetails:     &models.RdsDbUserDetails{User: "app", AuthMethod: models.AuthMethodIAM},
		}, "RDS instance db-1 (user app, IAM auth)"},
		{"unknown", models.Resource{ResourceType: "Lambda"}, "Lambda"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResourceSummary(&models.Finding{Resource: tc.res})
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

// ── Slack ────────────────────────────────────────────────────────────────────

func TestSlackChannel_Send(t *testing.T) {
	var got slackMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type: got %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewSlackChannel(srv.URL, "#sec-ops", "")
	err := ch.Send(context.Background(), Message{
		Kind:     KindComplete,
		Subject:  "subject",
		Body:     "body",
		Severity: models.SeverityMedium,
		Playbook: "EC2InstanceCompromise",
		Failed:   true,
		Counts:   models.StatusCounts{Success: 1, Error: 1},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Channel != "#sec-ops" || got.Username != "GuardDuty Responder" {
		t.Errorf("channel/username: got %q/%q", got.Channel, got.Username)
	}
	if len(got.Attachments) != 1 {
		t.Fatalf("attachments: got %d, want 1", len(got.Attachments))
	}
	att := got.Attachments[0]
	if att.Color != "#FF0000" {
		t.Errorf("failed run color: got %q, want #FF0000", att.Color)
	}
	if len(att.Fields) != 3 || att.Fields[2].Value != "1 ok / 1 failed / 0 skipped" {
		t.Errorf("fields: %+v", att.Fields)
	}
}

func TestSlackChannel_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("invalid_token"))
	}))
	defer srv.Close()

	err := NewSlackChannel(srv.URL, "", "").Send(context.Background(), Message{Subject: "s"})
	if err == nil || !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "invalid_token") {
		t.Fatalf("want 403 error with body, got %v", err)
	}
}

func TestSeverityColor(t *testing.T) {
	if severityColor(models.SeverityCritical) == severityColor(models.SeverityLow) {
		t.Error("CRITICAL and LOW should not share a color")
	}
}

// ── SNS ──────────────────────────────────────────────────────────────────────

func TestSNSChannel_Send(t *testing.T) {
	fake := &fakeSNS{}
	ch := NewSNSChannel(fake, "arn:aws:sns:eu-west-1:111122223333:gdr")
	err := ch.Send(context.Background(), Message{
		Kind: KindStarting, Subject: "subj", Body: "body",
		Severity: models.SeverityHigh, Playbook: "P",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(fake.inputs) != 1 {
		t.Fatalf("publishes: got %d, want 1", len(fake.inputs))
	}
	in := fake.inputs[0]
	if aws.ToString(in.TopicArn) != "arn:aws:sns:eu-west-1:111122223333:gdr" {
		t.Errorf("topic: got %q", aws.ToString(in.TopicArn))
	}
	if aws.ToString(in.Subject) != "subj" || aws.ToString(in.Message) != "body" {
		t.Errorf("subject/message: got %q/%q", aws.ToString(in.Subject), aws.ToString(in.Message))
	}
	if aws.ToString(in.MessageAttributes["playbook"].StringValue) != "P" {
		t.Errorf("playbook attribute missing: %+v", in.MessageAttributes)
	}
}

func TestSNSChannel_Error(t *testing.T) {
	fake := &fakeSNS{err: errors.New("throttled")}
	err := NewSNSChannel(fake, "arn").Send(context.Background(), Message{})
	if err == nil || !strings.Contains(err.Error(), "SNS Publish") {
		t.Fatalf("want wrapped SNS error, got %v", err)
	}
}

// ── log ──────────────────────────────────────────────────────────────────────

func TestLogChannel_FailedRunLogsWarn(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	ch := NewLogChannel(log)

	if err := ch.Send(context.Background(), Message{
		Kind: KindComplete, Finding: testFinding(8), Playbook: "P", Failed: true,
		Counts: models.StatusCounts{Error: 1},
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if rec["level"] != "WARN" {
		t.Errorf("level: got %v, want WARN", rec["level"])
	}
	if rec["finding_id"] != "f-123" {
		t.Errorf("finding_id: got %v", rec["finding_id"])
	}
	if rec["actions_failed"] != float64(1) {
		t.Errorf("actions_failed: got %v", rec["actions_failed"])
	}
}
