package common

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// Session is a resolved AWS identity with its SDK configuration and
// initialised service clients. One Session is loaded per process; playbooks
// obtain region-scoped clients from it through ClientsForRegion.
type Session struct {
	// ProfileName is the shared-config profile or "default".
	ProfileName string

	// AccountID is the account the credentials belong to (via STS).
	AccountID string

	// Region is the home region of the session.
	Region string

	// Config is the fully loaded AWS SDK v2 configuration.
	Config aws.Config

	// Clients holds service clients scoped to the home region.
	Clients *ClientSet
}

// AWSClientProvider loads AWS configuration and builds service clients.
// It is the sole entry point for AWS credential and region management in
// this module.
//
// Implementations must use the AWS SDK v2 only. Never call the aws CLI.
type AWSClientProvider interface {
	// LoadProfile returns a Session for the named profile. Pass an empty
	// string to use the default credential chain (the Lambda execution role).
	// region overrides the profile's region when non-empty.
	LoadProfile(ctx context.Context, profile, region string) (*Session, error)

	// ConfigForRegion clones the session config with the target region set.
	ConfigForRegion(sess *Session, region string) aws.Config

	// ClientsForRegion returns a ClientSet whose clients call region.
	// An empty region or the home region returns sess.Clients.
	ClientsForRegion(sess *Session, region string) *ClientSet
}
