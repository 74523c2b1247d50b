package alert

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokaycavdar/go-loginguard/pkg/models"
)

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func highRisk() models.RiskAssessment {
	return models.RiskAssessment{
		UserID:    "u1",
		RiskScore: 80,
		Reasons:   []string{"Impossible travel: 10583 km in 0.50 hr", "New country: Peru"},
		Geo:       models.GeoLocation{IP: "203.0.113.4", City: "Lima", Country: "Peru"},
		Timestamp: time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
		Status:    models.StatusEvaluated,
	}
}

func TestSubject(t *testing.T) {
	r := highRisk()
	assert.Equal(t, "[ALERT] High Risk Login for User u1", Subject(r))

	r.Status = models.StatusLockedNow
	assert.Equal(t, "[ALERT] Account Locked for User u1", Subject(r))
}

func TestBody(t *testing.T) {
	body := Body(highRisk())
	assert.Contains(t, body, "User: u1\n")
	assert.Contains(t, body, "Score: 80\n")
	assert.Contains(t, body, "Reasons: Impossible travel: 10583 km in 0.50 hr, New country: Peru\n")
	assert.Contains(t, body, "Location: Lima, Peru\n")

	r := highRisk()
	r.Geo = models.GeoLocation{}
	assert.Contains(t, Body(r), "Location: unknown, unknown\n")
}

func TestSESNotifier_Notify(t *testing.T) {
	fake := &fakeSES{}
	n := &SESNotifier{client: fake, sender: "guard@example.com", recipient: "sec@example.com"}

	require.NoError(t, n.Notify(context.Background(), highRisk()))
	require.NotNil(t, fake.input)
	assert.Equal(t, "guard@example.com", aws.ToString(fake.input.Source))
	assert.Equal(t, []string{"sec@example.com"}, fake.input.Destination.ToAddresses)
	assert.Equal(t, "[ALERT] High Risk Login for User u1", aws.ToString(fake.input.Message.Subject.Data))
	assert.Contains(t, aws.ToString(fake.input.Message.Body.Text.Data), "Score: 80")
}

func TestSESNotifier_Error(t *testing.T) {
	n := &SESNotifier{client: &fakeSES{err: errors.New("throttled")}, sender: "a@example.com", recipient: "b@example.com"}
	err := n.Notify(context.Background(), highRisk())
	assert.ErrorContains(t, err, "throttled")
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, LogNotifier{}.Notify(context.Background(), highRisk()))
}
