package invoker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/getpup/pupsourcing-replay"
	"github.com/getpup/pupsourcing/es"
)

// LambdaAPI is the subset of *lambda.Client used by LambdaInvoker.
type LambdaAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
	ListFunctions(ctx context.Context, params *lambda.ListFunctionsInput, optFns ...func(*lambda.Options)) (*lambda.ListFunctionsOutput, error)
}

var _ LambdaAPI = (*lambda.Client)(nil)

// LambdaClientConfig configures the Lambda client.
type LambdaClientConfig struct {
	// Region overrides the region from the shared AWS configuration (optional).
	Region string

	// Endpoint overrides the service endpoint, e.g. a local emulator (optional).
	Endpoint string

	// Timeout bounds a single invocation including reading the payload (default: 5m).
	Timeout time.Duration
}

// NewLambdaClient creates a Lambda client from the default credential chain.
// SDK retries are disabled; the worker owns the retry policy.
func NewLambdaClient(ctx context.Context, cfg LambdaClientConfig) (*lambda.Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}

	opts := []func(*config.LoadOptions) error{
		config.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(cfg.Timeout)),
		config.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(cfg.Endpoint))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return lambda.NewFromConfig(awsCfg), nil
}

// LambdaConfig configures the Lambda invoker.
type LambdaConfig struct {
	// Logger is for observability (optional).
	Logger es.Logger
}

// LambdaInvoker invokes AWS Lambda functions synchronously and lists them.
type LambdaInvoker struct {
	api    LambdaAPI
	config LambdaConfig
}

// Compile-time checks that LambdaInvoker implements Invoker and FunctionLister.
var (
	_ Invoker        = (*LambdaInvoker)(nil)
	_ FunctionLister = (*LambdaInvoker)(nil)
)

// NewLambda creates a new LambdaInvoker over api.
func NewLambda(api LambdaAPI, cfg LambdaConfig) *LambdaInvoker {
	return &LambdaInvoker{
		api:    api,
		config: cfg,
	}
}

// Invoke calls the function with a RequestResponse invocation.
// The function may be a name, a partial ARN or a full ARN.
func (l *LambdaInvoker) Invoke(ctx context.Context, function string, payload []byte) (*Response, error) {
	out, err := l.api.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(function),
		InvocationType: types.InvocationTypeRequestResponse,
		Payload:        payload,
	})
	if err != nil {
		return nil, classifyLambda(err)
	}

	if l.config.Logger != nil {
		l.config.Logger.Debug(ctx, "function invoked",
			"function", function,
			"status", out.StatusCode,
			"bytes", len(out.Payload))
	}

	return &Response{
		StatusCode:    int(out.StatusCode),
		Body:          out.Payload,
		FunctionError: aws.ToString(out.FunctionError),
	}, nil
}

// ListFunctions pages through every function in the region.
// Function names are the ARNs, sorted, since those are what gets invoked.
func (l *LambdaInvoker) ListFunctions(ctx context.Context) ([]Function, error) {
	functions := make([]Function, 0)

	paginator := lambda.NewListFunctionsPaginator(l.api, &lambda.ListFunctionsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list functions: %w", err)
		}

		for _, fn := range page.Functions {
			functions = append(functions, Function{Name: aws.ToString(fn.FunctionArn)})
		}
	}

	sort.Slice(functions, func(i, j int) bool {
		return functions[i].Name < functions[j].Name
	})

	if l.config.Logger != nil {
		l.config.Logger.Debug(ctx, "functions listed", "count", len(functions))
	}

	return functions, nil
}

// classifyLambda marks response timeouts with replay.ErrReadTimeout.
// Transport errors go through the same rules as the HTTP invoker.
func classifyLambda(err error) error {
	var respTimeout *awshttp.ResponseTimeoutError
	if errors.As(err, &respTimeout) {
		return fmt.Errorf("%w: %w", replay.ErrReadTimeout, err)
	}
	return classify(err)
}
