package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes one plain-text message per synced order.
type SNSNotifier struct {
	SNS      Publisher
	TopicArn string
	Now      func() time.Time
}

func NewSNSNotifier(client Publisher, topicArn string) *SNSNotifier {
	return &SNSNotifier{SNS: client, TopicArn: topicArn, Now: time.Now}
}

func (n *SNSNotifier) Notify(ctx context.Context, s Summary) error {
	if n == nil || strings.TrimSpace(n.TopicArn) == "" {
		return nil
	}
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	subject, body := BuildMessage(s, now().UTC())
	_, err := n.SNS.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.TopicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

// BuildMessage renders the notification subject and body.
func BuildMessage(s Summary, receivedAt time.Time) (subject, body string) {
	name := s.OrderName
	if name == "" {
		name = s.OrderID
	}
	subject = fmt.Sprintf("Retainer order %s", name)
	if s.Plan != "" {
		subject += " (" + s.Plan + ")"
	}

	lines := []string{
		"Retainer order synced",
		"",
		fmt.Sprintf("Order: %s", name),
	}
	if s.ShopDomain != "" {
		lines = append(lines, fmt.Sprintf("Shop: %s", s.ShopDomain))
	}
	if s.Email != "" {
		lines = append(lines, fmt.Sprintf("Customer: %s", s.Email))
	}
	if s.Plan != "" {
		lines = append(lines, fmt.Sprintf("Plan: %s", s.Plan))
	}
	if s.Term != "" {
		lines = append(lines, fmt.Sprintf("Term: %s", s.Term))
	}
	if s.Total != "" {
		currency := s.Currency
		if currency == "" {
			currency = "USD"
		}
		lines = append(lines, fmt.Sprintf("Amount: %s %s", s.Total, currency))
	}
	if s.CreatedAt != "" {
		lines = append(lines, fmt.Sprintf("CreatedAt: %s", s.CreatedAt))
	}
	lines = append(lines,
		fmt.Sprintf("Metafields: %d (%d mirrored from customer)", s.Metafields, s.Mirrored),
		"",
		fmt.Sprintf("ReceivedAt: %s", receivedAt.Format(time.RFC3339)),
	)
	return subject, strings.Join(lines, "\n")
}
