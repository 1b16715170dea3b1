// Package cloudwatch connects logweave to AWS: the CloudWatch Logs backend
// the drivers read from, SDK client construction from an explicit Config,
// and publishing of run statistics as CloudWatch metrics.
package cloudwatch

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// DefaultRoleSessionName names sessions created by assuming Config.RoleARN.
const DefaultRoleSessionName = "logweave"

// Config selects the account, region and credentials used for AWS calls.
// Empty fields fall back to the SDK's default resolution chain.
type Config struct {
	Profile string
	Region  string

	// Static credentials; used instead of the profile when AccessKeyID is set.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// RoleARN, when set, is assumed through STS on top of the base credentials.
	RoleARN         string
	RoleSessionName string
	ExternalID      string
}

// LoadAWSConfig resolves cfg into an SDK configuration.
func LoadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error

	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		if cfg.SecretAccessKey == "" {
			return aws.Config{}, fmt.Errorf("secret access key is required with access key id")
		}
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if cfg.RoleARN != "" {
		sessionName := cfg.RoleSessionName
		if sessionName == "" {
			sessionName = DefaultRoleSessionName
		}
		provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(awsCfg), cfg.RoleARN, func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = sessionName
			if cfg.ExternalID != "" {
				o.ExternalID = aws.String(cfg.ExternalID)
			}
		})
		awsCfg.Credentials = aws.NewCredentialsCache(provider)
	}

	return awsCfg, nil
}

// NewLogsClient creates a CloudWatch Logs client.
func NewLogsClient(ctx context.Context, cfg Config) (*cloudwatchlogs.Client, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return cloudwatchlogs.NewFromConfig(awsCfg), nil
}

// NewMetricsClient creates a CloudWatch (metrics) client.
func NewMetricsClient(ctx context.Context, cfg Config) (*cloudwatch.Client, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return cloudwatch.NewFromConfig(awsCfg), nil
}

// Identity describes the caller the credentials resolve to.
type Identity struct {
	Account string
	ARN     string
	Region  string
}

// WhoAmI resolves the account and principal for cfg via STS GetCallerIdentity.
func WhoAmI(ctx context.Context, cfg Config) (Identity, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return Identity{}, err
	}

	out, err := sts.NewFromConfig(awsCfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Identity{}, fmt.Errorf("failed to get caller identity: %w", err)
	}
	if out.Account == nil {
		return Identity{}, fmt.Errorf("account ID not returned")
	}

	return Identity{
		Account: *out.Account,
		ARN:     aws.ToString(out.Arn),
		Region:  awsCfg.Region,
	}, nil
}
