// internal/notify/notifier_test.go
package notify

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"poultry-review-engine/internal/common/config"
	"poultry-review-engine/internal/common/errors"
	"poultry-review-engine/internal/common/logger"
	"poultry-review-engine/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

// recordingNotifier counts delivery attempts per event kind and keeps the
// events that made it through. failFirst[kind] attempts fail before success.
type recordingNotifier struct {
	mu        sync.Mutex
	events    []Event
	attempts  map[EventKind]int
	failFirst map[EventKind]int
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		attempts:  make(map[EventKind]int),
		failFirst: make(map[EventKind]int),
	}
}

func (r *recordingNotifier) Notify(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[event.Kind]++
	if r.failFirst[event.Kind] > 0 {
		r.failFirst[event.Kind]--
		return fmt.Errorf("delivery unavailable")
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) delivered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recordingNotifier) attemptsFor(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts[kind]
}

func (r *recordingNotifier) deliveredKinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]EventKind, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// ==========================
// Test Helper Functions
// ==========================

func createTestNotificationConfig() config.NotificationConfig {
	var cfg config.NotificationConfig
	cfg.Email.Enabled = true
	cfg.Email.FromEmail = "noreply@kilimo.go.ke"
	cfg.SMS.Enabled = true
	cfg.QueueSize = 8
	cfg.MaxRetries = 2
	return cfg
}

func createTestEvent(kind EventKind) Event {
	stage := models.StageConstituency
	return Event{
		Kind:              kind,
		ApplicationID:     "app-001",
		ApplicationNumber: "NFR-2025-000042",
		Stage:             &stage,
		Priority:          PriorityNormal,
		Recipients: []Recipient{
			{
				ID:    "applicant-77",
				Name:  "Peter Kamau",
				Email: "pkamau@example.com",
				Phone: "+254711000111",
			},
		},
		Metadata:   map[string]interface{}{},
		OccurredAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func createTestNotifier(t *testing.T, sesMock SESService, snsMock SNSService) *AWSNotifier {
	t.Helper()
	return NewAWSNotifier(createTestNotificationConfig(), sesMock, snsMock, logger.NewTestLogger(t))
}

// ==========================
// AWSNotifier Tests
// ==========================

func TestAWSNotifier_EmailsEveryRecipient(t *testing.T) {
	var sent []string
	mockSES := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			require.Len(t, params.Destination.ToAddresses, 1)
			sent = append(sent, params.Destination.ToAddresses[0])
			assert.Equal(t, "noreply@kilimo.go.ke", *params.Source)
			assert.Contains(t, *params.Message.Subject.Data, "NFR-2025-000042")
			return &ses.SendEmailOutput{}, nil
		},
	}
	mockSNS := &MockSNSService{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			t.Fatal("no SMS expected for normal priority")
			return nil, nil
		},
	}

	notifier := createTestNotifier(t, mockSES, mockSNS)

	event := createTestEvent(EventApplicationApproved)
	event.Recipients = append(event.Recipients, Recipient{
		ID:    "reviewer-12",
		Name:  "Jane Wanjiru",
		Email: "jwanjiru@agriculture.go.ke",
	})

	err := notifier.Notify(context.Background(), event)

	require.NoError(t, err)
	assert.Equal(t, []string{"pkamau@example.com", "jwanjiru@agriculture.go.ke"}, sent)
}

func TestAWSNotifier_RendersTemplatePlaceholders(t *testing.T) {
	var subject, body string
	mockSES := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			subject = *params.Message.Subject.Data
			body = *params.Message.Body.Text.Data
			return &ses.SendEmailOutput{}, nil
		},
	}

	cfg := createTestNotificationConfig()
	cfg.SMS.Enabled = false
	notifier := NewAWSNotifier(cfg, mockSES, nil, logger.NewTestLogger(t))

	event := createTestEvent(EventChangesRequested)
	event.Metadata = map[string]interface{}{
		"reason":   "missing coop photos",
		"deadline": "2025-03-17",
	}

	err := notifier.Notify(context.Background(), event)

	require.NoError(t, err)
	assert.Equal(t, "Action required on application NFR-2025-000042", subject)
	assert.Contains(t, body, "Hello Peter Kamau")
	assert.Contains(t, body, "missing coop photos")
	assert.Contains(t, body, "resubmit by 2025-03-17")
	assert.NotContains(t, body, "{{")
}

func TestAWSNotifier_SMSOnlyForHighPriority(t *testing.T) {
	tests := []struct {
		name      string
		priority  string
		phone     string
		expectSMS bool
	}{
		{"high priority with phone", PriorityHigh, "+254711000111", true},
		{"normal priority with phone", PriorityNormal, "+254711000111", false},
		{"high priority without phone", PriorityHigh, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			smsCalls := 0
			mockSES := &MockSESService{
				SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
					return &ses.SendEmailOutput{}, nil
				},
			}
			mockSNS := &MockSNSService{
				PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
					smsCalls++
					assert.Equal(t, tt.phone, *params.PhoneNumber)
					return &sns.PublishOutput{}, nil
				},
			}

			notifier := createTestNotifier(t, mockSES, mockSNS)

			event := createTestEvent(EventWorkItemOverdue)
			event.Priority = tt.priority
			event.Recipients[0].Phone = tt.phone

			err := notifier.Notify(context.Background(), event)

			require.NoError(t, err)
			if tt.expectSMS {
				assert.Equal(t, 1, smsCalls)
			} else {
				assert.Zero(t, smsCalls)
			}
		})
	}
}

func TestAWSNotifier_DisabledChannelsSkipDelivery(t *testing.T) {
	mockSES := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			t.Fatal("email channel is disabled")
			return nil, nil
		},
	}
	mockSNS := &MockSNSService{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			t.Fatal("SMS channel is disabled")
			return nil, nil
		},
	}

	cfg := createTestNotificationConfig()
	cfg.Email.Enabled = false
	cfg.SMS.Enabled = false
	notifier := NewAWSNotifier(cfg, mockSES, mockSNS, logger.NewTestLogger(t))

	event := createTestEvent(EventApplicationSubmitted)
	event.Priority = PriorityHigh

	assert.NoError(t, notifier.Notify(context.Background(), event))
}

func TestAWSNotifier_EmailFailureStillReachesRemainingRecipients(t *testing.T) {
	var attempted []string
	mockSES := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			attempted = append(attempted, params.Destination.ToAddresses[0])
			if params.Destination.ToAddresses[0] == "pkamau@example.com" {
				return nil, fmt.Errorf("ses unavailable")
			}
			return &ses.SendEmailOutput{}, nil
		},
	}

	cfg := createTestNotificationConfig()
	cfg.SMS.Enabled = false
	notifier := NewAWSNotifier(cfg, mockSES, nil, logger.NewTestLogger(t))

	event := createTestEvent(EventApplicationRejected)
	event.Recipients = append(event.Recipients, Recipient{
		ID:    "reviewer-12",
		Email: "jwanjiru@agriculture.go.ke",
	})

	err := notifier.Notify(context.Background(), event)

	require.Error(t, err)
	assert.Len(t, attempted, 2)
}

func TestAWSNotifier_UnknownEventKindFails(t *testing.T) {
	notifier := createTestNotifier(t, &MockSESService{}, &MockSNSService{})

	err := notifier.Notify(context.Background(), createTestEvent(EventKind("carrier_pigeon")))

	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestAWSNotifier_SkipsRecipientsWithoutAddress(t *testing.T) {
	mockSES := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			t.Fatal("recipient has no email address")
			return nil, nil
		},
	}

	cfg := createTestNotificationConfig()
	cfg.SMS.Enabled = false
	notifier := NewAWSNotifier(cfg, mockSES, nil, logger.NewTestLogger(t))

	event := createTestEvent(EventApplicationWithdrawn)
	event.Recipients = []Recipient{{ID: "applicant-77", Name: "Peter Kamau"}}

	assert.NoError(t, notifier.Notify(context.Background(), event))
}

// ==========================
// Template Rendering Tests
// ==========================

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     map[string]interface{}
		expected string
	}{
		{
			name:     "substitutes string values",
			template: "Hello {{name}}, application {{number}} advanced.",
			data:     map[string]interface{}{"name": "Peter", "number": "NFR-2025-000001"},
			expected: "Hello Peter, application NFR-2025-000001 advanced.",
		},
		{
			name:     "formats non-string values",
			template: "Queue position: {{position}}",
			data:     map[string]interface{}{"position": 3},
			expected: "Queue position: 3",
		},
		{
			name:     "removes unresolved placeholders",
			template: "Due {{deadline}} at stage {{stage}}.",
			data:     map[string]interface{}{"deadline": "2025-03-17"},
			expected: "Due 2025-03-17 at stage .",
		},
		{
			name:     "nil values render empty",
			template: "Reason: {{reason}}",
			data:     map[string]interface{}{"reason": nil},
			expected: "Reason: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, renderTemplate(tt.template, tt.data))
		})
	}
}

// ==========================
// Dispatcher Tests
// ==========================

func startDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("dispatcher did not stop after cancel")
		}
	})
}

func TestDispatcher_DeliversInBackground(t *testing.T) {
	inner := newRecordingNotifier()
	d := NewDispatcher(inner, createTestNotificationConfig(), logger.NewTestLogger(t))
	startDispatcher(t, d)

	require.NoError(t, d.Notify(context.Background(), createTestEvent(EventApplicationSubmitted)))
	require.NoError(t, d.Notify(context.Background(), createTestEvent(EventWorkItemAssigned)))
	require.NoError(t, d.Notify(context.Background(), createTestEvent(EventApplicationApproved)))

	require.Eventually(t, func() bool { return inner.delivered() == 3 },
		time.Second, 5*time.Millisecond)
}

func TestDispatcher_RetriesFailedDelivery(t *testing.T) {
	inner := newRecordingNotifier()
	inner.failFirst[EventApplicationEnrolled] = 2

	d := NewDispatcher(inner, createTestNotificationConfig(), logger.NewTestLogger(t))
	d.retryDelay = time.Millisecond
	startDispatcher(t, d)

	require.NoError(t, d.Notify(context.Background(), createTestEvent(EventApplicationEnrolled)))

	require.Eventually(t, func() bool { return inner.delivered() == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, inner.attemptsFor(EventApplicationEnrolled))
}

func TestDispatcher_GivesUpAfterMaxRetries(t *testing.T) {
	inner := newRecordingNotifier()
	inner.failFirst[EventApplicationRejected] = 1 << 30

	d := NewDispatcher(inner, createTestNotificationConfig(), logger.NewTestLogger(t))
	d.retryDelay = time.Millisecond
	startDispatcher(t, d)

	require.NoError(t, d.Notify(context.Background(), createTestEvent(EventApplicationRejected)))
	require.NoError(t, d.Notify(context.Background(), createTestEvent(EventApplicationApproved)))

	// The failing event burns its attempts and is dropped; the next one still
	// gets through.
	require.Eventually(t, func() bool { return inner.delivered() == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, inner.attemptsFor(EventApplicationRejected))
	assert.Equal(t, []EventKind{EventApplicationApproved}, inner.deliveredKinds())
}

func TestDispatcher_DropsWhenBufferFull(t *testing.T) {
	inner := newRecordingNotifier()
	cfg := createTestNotificationConfig()
	cfg.QueueSize = 1

	d := NewDispatcher(inner, cfg, logger.NewTestLogger(t))

	// No worker running yet: the first event fills the buffer, the second is
	// dropped. Neither call errors.
	require.NoError(t, d.Notify(context.Background(), createTestEvent(EventApplicationSubmitted)))
	require.NoError(t, d.Notify(context.Background(), createTestEvent(EventApplicationWithdrawn)))

	startDispatcher(t, d)

	require.Eventually(t, func() bool { return inner.delivered() == 1 },
		time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []EventKind{EventApplicationSubmitted}, inner.deliveredKinds())
}
