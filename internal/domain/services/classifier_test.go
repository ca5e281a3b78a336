package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/athebyme/gomarket-platform/itemsync-service/internal/domain/models"
)

func newTestClassifier() *RequestClassifier {
	return NewRequestClassifier("aws.events", "X-Scheduler-Event")
}

func TestClassify_HealthCheck(t *testing.T) {
	c := newTestClassifier()

	cases := []string{"", "   ", "{}", "null", "\n\t"}
	for _, payload := range cases {
		assert.Equal(t, models.SourceHealthCheck, c.Classify([]byte(payload), nil),
			"payload %q", payload)
	}
}

func TestClassify_SchedulerBySourcePrefix(t *testing.T) {
	c := newTestClassifier()

	payload := []byte(`{"source": "aws.events.scheduled", "detail": {}}`)
	assert.Equal(t, models.SourceEventBridge, c.Classify(payload, nil))
}

func TestClassify_SchedulerByDetailType(t *testing.T) {
	c := newTestClassifier()

	payload := []byte(`{"detail-type": "Scheduled Event"}`)
	assert.Equal(t, models.SourceEventBridge, c.Classify(payload, nil))
}

func TestClassify_SchedulerByHeader(t *testing.T) {
	c := newTestClassifier()

	payload := []byte(`{"skus": ["TEST-001"]}`)
	headers := map[string]string{"x-scheduler-event": "cron"}
	assert.Equal(t, models.SourceEventBridge, c.Classify(payload, headers))
}

func TestClassify_Gateway(t *testing.T) {
	c := newTestClassifier()

	payload := []byte(`{"requestContext": {"requestId": "abc-123", "stage": "prod"}, "body": "{}"}`)
	assert.Equal(t, models.SourceAPIGateway, c.Classify(payload, nil))
}

func TestClassify_GatewayRequiresBothFields(t *testing.T) {
	c := newTestClassifier()

	// Без stage запрос не признается запросом шлюза
	payload := []byte(`{"requestContext": {"requestId": "abc-123"}}`)
	assert.Equal(t, models.SourceDirect, c.Classify(payload, nil))

	payload = []byte(`{"requestContext": {"requestId": "", "stage": "prod"}}`)
	assert.Equal(t, models.SourceDirect, c.Classify(payload, nil))
}

func TestClassify_Direct(t *testing.T) {
	c := newTestClassifier()

	payload := []byte(`{"skus": ["TEST-001", "TEST-002"]}`)
	assert.Equal(t, models.SourceDirect, c.Classify(payload, nil))
}

func TestClassify_UnparseableBody(t *testing.T) {
	c := newTestClassifier()

	assert.Equal(t, models.SourceUnknown, c.Classify([]byte("not json at all"), nil))
	assert.Equal(t, models.SourceUnknown, c.Classify([]byte(`{"broken":`), nil))
}

func TestClassify_HealthCheckWinsOverHeader(t *testing.T) {
	c := newTestClassifier()

	// Пустое тело классифицируется раньше проверки заголовков
	headers := map[string]string{"X-Scheduler-Event": "cron"}
	assert.Equal(t, models.SourceHealthCheck, c.Classify([]byte("{}"), headers))
}
