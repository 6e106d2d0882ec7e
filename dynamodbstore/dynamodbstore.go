package dynamodbstore

import (
	"context"
	"encoding/json"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/gorilla/sessions"
	"github.com/jjeffery/dynamosessions/gorillastore"
	"github.com/jjeffery/dynamosessions/sessionstore"
	storage "github.com/jjeffery/dynamosessions/storage/dynamodb"
	"github.com/jjeffery/errors"
)

const (
	// DefaultTable is the name of the DynamoDB table if Options.Table is blank.
	DefaultTable = "sessions"

	// DefaultRegion is the AWS region if neither Options.Region nor
	// Options.AWSConfigPath is set.
	DefaultRegion = "us-east-1"
)

// Options for a DynamoDB session store.
type Options struct {
	sessionstore.Options

	// Client is used to access DynamoDB if not nil. Otherwise a client is
	// created using AWSConfigPath, Region and Endpoint.
	Client dynamodbiface.DynamoDBAPI

	// Table is the name of the DynamoDB table.
	Table string

	// Region is the AWS region. Ignored if AWSConfigPath is set.
	Region string

	// AWSConfigPath is the path of a JSON file containing "accessKeyId",
	// "secretAccessKey" and "region".
	AWSConfigPath string

	// Endpoint overrides the DynamoDB endpoint, eg for DynamoDB Local.
	Endpoint string
}

// awsConfigFile is the contents of the file at Options.AWSConfigPath
type awsConfigFile struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	SessionToken    string `json:"sessionToken"`
	Region          string `json:"region"`
}

// New creates a new session store backed by an AWS DynamoDB table. An error
// is returned only if a DynamoDB client cannot be created; problems with the
// table itself are logged by sessionstore.New.
func New(ctx context.Context, opts Options) (*sessionstore.Store, error) {
	provider, err := NewProvider(opts)
	if err != nil {
		return nil, err
	}
	return sessionstore.New(ctx, provider, opts.Options), nil
}

// NewProvider returns the DynamoDB storage provider described by opts.
func NewProvider(opts Options) (*storage.Provider, error) {
	if opts.Table == "" {
		opts.Table = DefaultTable
	}
	client := opts.Client
	if client == nil {
		cfg, err := awsConfig(opts)
		if err != nil {
			return nil, err
		}
		sess, err := session.NewSession(cfg)
		if err != nil {
			return nil, errors.Wrap(err, "cannot create aws session")
		}
		client = dynamodb.New(sess)
	}
	return storage.New(client, opts.Table), nil
}

// NewSessionStore returns a Gorilla session store that keeps session data in
// the DynamoDB table. The secrets are used to sign and encrypt the session
// cookie; see gorillastore.New.
//
// The returned session store is needed to stop the reap sweep.
func NewSessionStore(ctx context.Context, opts Options, cookieOptions sessions.Options, secrets ...[]byte) (sessions.Store, *sessionstore.Store, error) {
	store, err := New(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	gs, err := gorillastore.New(store, cookieOptions, secrets...)
	if err != nil {
		store.ClearInterval()
		return nil, nil, err
	}
	return gs, store, nil
}

func awsConfig(opts Options) (*aws.Config, error) {
	cfg := aws.NewConfig()
	if opts.AWSConfigPath != "" {
		errors := errors.With("path", opts.AWSConfigPath)
		data, err := os.ReadFile(opts.AWSConfigPath)
		if err != nil {
			return nil, errors.Wrap(err, "cannot read aws config")
		}
		var file awsConfigFile
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, errors.Wrap(err, "cannot parse aws config")
		}
		if file.AccessKeyID != "" {
			cfg = cfg.WithCredentials(credentials.NewStaticCredentials(file.AccessKeyID, file.SecretAccessKey, file.SessionToken))
		}
		if file.Region != "" {
			cfg = cfg.WithRegion(file.Region)
		} else {
			cfg = cfg.WithRegion(DefaultRegion)
		}
	} else if opts.Region != "" {
		cfg = cfg.WithRegion(opts.Region)
	} else {
		cfg = cfg.WithRegion(DefaultRegion)
	}
	if opts.Endpoint != "" {
		cfg = cfg.WithEndpoint(opts.Endpoint)
	}
	return cfg, nil
}
