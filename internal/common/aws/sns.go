// internal/common/aws/sns.go
package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSAPI is the subset of the SNS client the analyzer uses.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSClient struct {
	client SNSAPI
}

func NewSNSClient(ctx context.Context, region string) (*SNSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SNSClient{client: sns.NewFromConfig(cfg)}, nil
}

// NewSNSClientWithAPI wraps any SNSAPI implementation.
func NewSNSClientWithAPI(api SNSAPI) *SNSClient {
	return &SNSClient{client: api}
}

func (s *SNSClient) Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	return s.client.Publish(ctx, input)
}

// PublishToTopic publishes message with string message attributes and returns
// the SNS message id.
func (s *SNSClient) PublishToTopic(ctx context.Context, topicARN, subject, message string, attrs map[string]string) (string, error) {
	input := &sns.PublishInput{
		TopicArn: awssdk.String(topicARN),
		Message:  awssdk.String(message),
	}
	if subject != "" {
		input.Subject = awssdk.String(subject)
	}
	if len(attrs) > 0 {
		input.MessageAttributes = make(map[string]types.MessageAttributeValue, len(attrs))
		for k, v := range attrs {
			input.MessageAttributes[k] = types.MessageAttributeValue{
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String(v),
			}
		}
	}

	out, err := s.Publish(ctx, input)
	if err != nil {
		return "", err
	}
	return awssdk.ToString(out.MessageId), nil
}
