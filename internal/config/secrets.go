package config

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// SecretProvider resolves parameter paths to plaintext values. Paths it
// cannot find are left out of the result; the loader reports them.
type SecretProvider interface {
	GetParametersBatch(ctx context.Context, paths []string) (map[string]string, error)
}

// GetParameters accepts at most 10 names.
const ssmBatchSize = 10

type ssmAPI interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// SSMProvider reads SecureString parameters from Parameter Store. Deployed
// stages point DATABASE_URL_SSM_PARAM and WORKSPACE_ID_SSM_PARAM at it.
type SSMProvider struct {
	region string

	once    sync.Once
	client  ssmAPI
	initErr error
}

// NewSSMProvider returns a provider for region. The SDK client is built on
// first use so local runs never touch AWS credentials.
func NewSSMProvider(region string) *SSMProvider {
	return &SSMProvider{region: region}
}

func newSSMProviderWithClient(client ssmAPI) *SSMProvider {
	p := &SSMProvider{client: client}
	p.once.Do(func() {})
	return p
}

func (p *SSMProvider) api(ctx context.Context) (ssmAPI, error) {
	p.once.Do(func() {
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.region))
		if err != nil {
			p.initErr = fmt.Errorf("loading AWS config for SSM in %s: %w", p.region, err)
			return
		}
		p.client = ssm.NewFromConfig(cfg)
	})
	return p.client, p.initErr
}

func (p *SSMProvider) GetParametersBatch(ctx context.Context, paths []string) (map[string]string, error) {
	out := make(map[string]string, len(paths))
	if len(paths) == 0 {
		return out, nil
	}

	client, err := p.api(ctx)
	if err != nil {
		return nil, err
	}

	for batch := range slices.Chunk(paths, ssmBatchSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := client.GetParameters(ctx, &ssm.GetParametersInput{
			Names:          batch,
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("ssm GetParameters %v: %w", batch, err)
		}
		for _, param := range resp.Parameters {
			if param.Name != nil && param.Value != nil {
				out[*param.Name] = *param.Value
			}
		}
	}
	return out, nil
}
