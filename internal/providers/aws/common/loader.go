package common

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// DefaultRegion is used when neither the caller nor the profile names one.
const DefaultRegion = "us-east-1"

// DefaultAWSClientProvider is the production implementation of AWSClientProvider.
// It reads credentials from the standard chain: environment, shared config
// files, then the Lambda or EC2 execution role.
//
// Inject a custom ClientFactory via NewDefaultAWSClientProviderWithFactory to
// replace real SDK clients with fakes in unit tests.
type DefaultAWSClientProvider struct {
	factory ClientFactory
	load    func(ctx context.Context, opts ...func(*awsconfig.LoadOptions) error) (aws.Config, error)
}

// NewDefaultAWSClientProvider returns a provider backed by the real AWS SDK.
func NewDefaultAWSClientProvider() *DefaultAWSClientProvider {
	return NewDefaultAWSClientProviderWithFactory(NewClientSet)
}

// NewDefaultAWSClientProviderWithFactory returns a provider that uses f to
// create its ClientSets. Pass a fake factory in tests.
func NewDefaultAWSClientProviderWithFactory(f ClientFactory) *DefaultAWSClientProvider {
	return &DefaultAWSClientProvider{factory: f, load: awsconfig.LoadDefaultConfig}
}

// ---------------------------------------------------------------------------
// AWSClientProvider implementation
// ---------------------------------------------------------------------------

// LoadProfile loads the AWS SDK config for the named profile and returns a
// Session including the resolved account ID and home-region clients.
func (p *DefaultAWSClientProvider) LoadProfile(ctx context.Context, profile, region string) (*Session, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := p.load(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS profile %q: %w", profileDisplayName(profile), err)
	}

	// Fall back to us-east-1 when nothing configured a region so that all
	// SDK clients can be constructed.
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}

	clients := p.factory(cfg)

	accountID, err := resolveAccountID(ctx, clients.STS)
	if err != nil {
		return nil, fmt.Errorf("resolve account ID for profile %q: %w", profileDisplayName(profile), err)
	}

	return &Session{
		ProfileName: profileDisplayName(profile),
		AccountID:   accountID,
		Region:      cfg.Region,
		Config:      cfg,
		Clients:     clients,
	}, nil
}

// ConfigForRegion returns a copy of sess.Config with Region set to region.
func (p *DefaultAWSClientProvider) ConfigForRegion(sess *Session, region string) aws.Config {
	regional := sess.Config
	regional.Region = region
	return regional
}

// ClientsForRegion returns clients scoped to region. GuardDuty delivers
// findings from every region to one handler, so actions must run against the
// finding's region rather than the handler's.
func (p *DefaultAWSClientProvider) ClientsForRegion(sess *Session, region string) *ClientSet {
	if region == "" || region == sess.Region {
		return sess.Clients
	}
	return p.factory(p.ConfigForRegion(sess, region))
}

// ---------------------------------------------------------------------------
// Package-private helpers
// ---------------------------------------------------------------------------

// profileDisplayName returns a human-readable profile identifier. An empty
// string (the default chain) is shown as "default".
func profileDisplayName(profile string) string {
	if profile == "" {
		return "default"
	}
	return profile
}

// resolveAccountID calls STS GetCallerIdentity to retrieve the numeric AWS
// account ID for the credentials currently loaded in stsClient.
func resolveAccountID(ctx context.Context, stsClient STSClient) (string, error) {
	out, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("STS GetCallerIdentity: %w", err)
	}
	if out.Account == nil {
		return "", fmt.Errorf("STS GetCallerIdentity returned nil account")
	}
	return aws.ToString(out.Account), nil
}
