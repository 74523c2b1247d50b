package alert

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/gokaycavdar/go-loginguard/internal/logging"
	"github.com/gokaycavdar/go-loginguard/pkg/models"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESNotifier sends plain-text alert emails through AWS SES.
type SESNotifier struct {
	client    sesAPI
	sender    string
	recipient string
}

// NewSESNotifier loads the default AWS credential chain for region.
func NewSESNotifier(ctx context.Context, region, sender, recipient string) (*SESNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SESNotifier{
		client:    ses.NewFromConfig(cfg),
		sender:    sender,
		recipient: recipient,
	}, nil
}

func (n *SESNotifier) Notify(ctx context.Context, r models.RiskAssessment) error {
	input := &ses.SendEmailInput{
		Source: aws.String(n.sender),
		Destination: &types.Destination{
			ToAddresses: []string{n.recipient},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(Subject(r)),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(Body(r)),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	out, err := n.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	logging.Info().
		Str("user_id", r.UserID).
		Str("message_id", aws.ToString(out.MessageId)).
		Msg("alert email sent")
	return nil
}
