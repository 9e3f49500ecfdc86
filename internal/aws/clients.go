package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// AWSClients bundles all service clients for convenience.
type AWSClients struct {
	DynamoDB   DynamoDBAPI
	S3         S3API
	SNS        SNSAPI
	SQS        SQSAPI
	CloudWatch CloudWatchAPI
}

// NewAWSClients loads AWS config and returns concrete service clients that implement our interfaces.
func NewAWSClients(ctx context.Context, region, endpoint string) (*AWSClients, error) {
	cfg, err := LoadAWSConfig(ctx, region, endpoint)
	if err != nil {
		return nil, err
	}

	return &AWSClients{
		DynamoDB: dynamodb.NewFromConfig(cfg),
		S3: s3.NewFromConfig(cfg, func(o *s3.Options) {
			// LocalStack only serves path-style bucket addressing
			o.UsePathStyle = endpoint != ""
		}),
		SNS:        sns.NewFromConfig(cfg),
		SQS:        sqs.NewFromConfig(cfg),
		CloudWatch: cloudwatch.NewFromConfig(cfg),
	}, nil
}
