package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/af-corp/ai-gateway/internal/types"
)

const (
	bedrockAnthropicVersion = "bedrock-2023-05-31"
	defaultBedrockRegion    = "us-east-1"
)

// BedrockClient invokes Anthropic models hosted on AWS Bedrock.
// The credential handle has the form ACCESS_KEY_ID:SECRET_ACCESS_KEY.
type BedrockClient struct {
	cfg    types.ServiceConfig
	client *bedrockruntime.Client
}

func NewBedrockClient(ctx context.Context, cfg types.ServiceConfig, httpClient *http.Client) (*BedrockClient, error) {
	accessKey, secretKey, ok := strings.Cut(cfg.Credential, ":")
	if !ok || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("aws service %s: credential must be ACCESS_KEY_ID:SECRET_ACCESS_KEY", cfg.ID)
	}

	region := stringParam(cfg.Parameters, "region")
	if region == "" {
		region = defaultBedrockRegion
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		awsconfig.WithHTTPClient(httpClient),
		// The gateway owns retries; the SDK must not add its own.
		awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &BedrockClient{cfg: cfg, client: client}, nil
}

func (b *BedrockClient) Name() string { return "aws" }

func (b *BedrockClient) Execute(ctx context.Context, req *types.Request) (any, error) {
	switch req.Capability {
	case types.CapChat, types.CapCompletion, types.CapMultimodal:
	default:
		return nil, fmt.Errorf("aws %s: %w", req.Capability, ErrUnsupportedCapability)
	}

	body := buildAnthropicBody("", req, params(b.cfg, req))
	body.AnthropicVersion = bedrockAnthropicVersion

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal bedrock request: %w", err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.cfg.Model),
		Body:        data,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock invoke model: %w", err)
	}

	var resp anthropicResponseBody
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal bedrock response: %w", err)
	}
	return resp.text()
}
