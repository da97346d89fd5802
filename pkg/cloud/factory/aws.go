package factory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/gardener/chaos-engineering/pkg/cloud"
	awsadapter "github.com/gardener/chaos-engineering/pkg/cloud/aws"
)

// newAWS builds an ec2.Client from static credentials and wraps it in
// awsadapter.Adapter. ec2.Client satisfies awsadapter.EC2API directly, so
// no translation layer is needed here, unlike Azure/GCP below.
func newAWS(ctx context.Context, configuration, secrets map[string]string) (cloud.Adapter, error) {
	region := configuration["aws_region"]
	if region == "" {
		return nil, fmt.Errorf("factory: aws_region missing from configuration")
	}
	accessKeyID, secretAccessKey := secrets["aws_access_key_id"], secrets["aws_secret_access_key"]
	if accessKeyID == "" || secretAccessKey == "" {
		return nil, fmt.Errorf("factory: aws credentials incomplete")
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("factory: loading aws config: %w", err)
	}
	client := ec2.NewFromConfig(cfg)
	return awsadapter.New(client), nil
}
