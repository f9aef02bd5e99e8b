// Package session provides AWS configuration loading and DynamoDB client
// construction for dynamost.
package session

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// configLoadFunc is a variable so tests can stub config.LoadDefaultConfig.
var configLoadFunc = config.LoadDefaultConfig

// Config holds the connection settings for a dynamost session.
type Config struct {
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`

	// MaxRetries caps the SDK's own transport-level retries. Protocol-level
	// retry loops (batch writes, upserts) have their own budgets.
	MaxRetries int `yaml:"maxRetries"`

	// AccessKeyID/SecretAccessKey configure static credentials, typically
	// for a local endpoint. Leave empty to use the default provider chain.
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`

	CredentialsProvider aws.CredentialsProvider           `yaml:"-"`
	AWSConfigOptions    []func(*config.LoadOptions) error `yaml:"-"`
	DynamoDBOptions     []func(*dynamodb.Options)         `yaml:"-"`
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() *Config {
	return &Config{
		Region:     "us-east-1",
		MaxRetries: 3,
	}
}

// Session owns the AWS configuration and the DynamoDB client built from it.
type Session struct {
	config    *Config
	client    *dynamodb.Client
	awsConfig aws.Config
}

// NewSession loads AWS configuration and constructs the DynamoDB client.
func NewSession(cfg *Config) (*Session, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	options := make([]func(*config.LoadOptions) error, 0, len(cfg.AWSConfigOptions)+4)
	if cfg.Region != "" {
		options = append(options, config.WithRegion(cfg.Region))
	}

	switch {
	case cfg.CredentialsProvider != nil:
		options = append(options, config.WithCredentialsProvider(cfg.CredentialsProvider))
	case cfg.AccessKeyID != "":
		options = append(options, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	maxAttempts := cfg.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	options = append(options, config.WithRetryMode(aws.RetryModeStandard))
	options = append(options, config.WithRetryMaxAttempts(maxAttempts))
	options = append(options, cfg.AWSConfigOptions...)

	awsConfig, err := configLoadFunc(context.Background(), options...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	if awsConfig.Retryer == nil {
		awsConfig.Retryer = func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = maxAttempts
			})
		}
	}

	clientOptions := []func(*dynamodb.Options){
		func(o *dynamodb.Options) {
			o.Region = awsConfig.Region
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			if o.HTTPClient == nil {
				o.HTTPClient = &http.Client{}
			}
		},
	}
	clientOptions = append(clientOptions, cfg.DynamoDBOptions...)

	return &Session{
		config:    cfg,
		awsConfig: awsConfig,
		client:    dynamodb.NewFromConfig(awsConfig, clientOptions...),
	}, nil
}

// Client returns the DynamoDB client.
func (s *Session) Client() *dynamodb.Client {
	return s.client
}

// Config returns the session configuration.
func (s *Session) Config() *Config {
	return s.config
}

// AWSConfig returns the resolved AWS configuration.
func (s *Session) AWSConfig() aws.Config {
	return s.awsConfig
}
