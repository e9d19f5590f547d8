package metastore

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/pkg/errors"

	"ratesetl/internal/config"
)

// dynamoStore is the production pointer store: one item per table name.
type dynamoStore struct {
	db    *dynamodb.DynamoDB
	table string
}

func newDynamoStore(_ context.Context, cfg config.Metastore) (Store, error) {
	awsCfg := aws.NewConfig()
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint)
	}
	if cfg.Region != "" {
		awsCfg = awsCfg.WithRegion(cfg.Region)
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""))
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, errors.Wrap(err, "metastore: create aws session")
	}
	return &dynamoStore{db: dynamodb.New(sess), table: cfg.Table}, nil
}

func (s *dynamoStore) Put(ctx context.Context, p Pointer) error {
	_, err := s.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]*dynamodb.AttributeValue{
			"table_name":        {S: aws.String(p.TableName)},
			"metadata_location": {S: aws.String(p.MetadataLocation)},
			"updated_at":        {S: aws.String(p.UpdatedAt.UTC().Format(time.RFC3339))},
		},
	})
	return errors.Wrapf(err, "metastore: put pointer for %q", p.TableName)
}

func (s *dynamoStore) Close() error { return nil }

func init() {
	Register("dynamodb", newDynamoStore)
}
