package dynamost

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/lifeomic/dynamost/pkg/session"
)

var (
	lambdaSession *session.Session
	lambdaOnce    sync.Once
)

// NewLambdaSession returns a session tuned for AWS Lambda: a shared instance
// survives warm starts, the HTTP transport keeps connections alive between
// invocations, and the SDK uses adaptive retries. Outside Lambda it behaves
// like a plain NewSession.
func NewLambdaSession() (*session.Session, error) {
	var err error
	lambdaOnce.Do(func() {
		httpClient := &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
		lambdaSession, err = session.NewSession(&session.Config{
			Region:     lambdaRegion(),
			MaxRetries: 3,
			AWSConfigOptions: []func(*config.LoadOptions) error{
				config.WithHTTPClient(httpClient),
				config.WithRetryMode(aws.RetryModeAdaptive),
			},
		})
	})
	return lambdaSession, err
}

// IsLambdaEnvironment reports whether the process runs inside AWS Lambda.
func IsLambdaEnvironment() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

// LambdaTimeout derives a context that expires ahead of the invocation
// deadline, leaving buffer for the function to report its result. Contexts
// without a deadline pass through unchanged.
func LambdaTimeout(ctx context.Context, buffer time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := lambdacontext.FromContext(ctx); !ok {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			return context.WithCancel(ctx)
		}
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, deadline.Add(-buffer))
}

func lambdaRegion() string {
	if region := os.Getenv("AWS_REGION"); region != "" {
		return region
	}
	return "us-east-1"
}
