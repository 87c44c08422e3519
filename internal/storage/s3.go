package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/givance/webserver-sub009/internal/util"
	"github.com/givance/webserver-sub009/pkg/journey"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const journeyPrefix = "journeys"

// NewS3Client builds a path-style client from the AWS_* environment. It
// returns nil when no bucket is configured.
func NewS3Client(ctx context.Context) (*s3.Client, error) {
	if util.GetEnv("AWS_BUCKET") == "" {
		return nil, nil
	}
	region := util.GetEnvString("AWS_REGION", "us-east-1")
	endpoint := util.GetEnv("AWS_ENDPOINT")
	accessKey := util.GetEnv("AWS_ACCESS_KEY")
	secretKey := util.GetEnv("AWS_SECRET_KEY")

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(endpoint))
	}
	if accessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"",
		)))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return client, nil
}

// Attempts per S3 call of the journey archive.
const archiveTries = 3

// s3API is the part of *s3.Client the archive uses.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// JourneyArchive stores replaced journey graphs as JSON objects under
// journeys/<organization>/.
type JourneyArchive struct {
	client s3API
	bucket string
	now    func() time.Time
}

func NewJourneyArchive(client s3API, bucket string) *JourneyArchive {
	return &JourneyArchive{
		client: client,
		bucket: bucket,
		now:    time.Now,
	}
}

// ArchiveJourneyGraph uploads graph and returns its object key.
func (a *JourneyArchive) ArchiveJourneyGraph(ctx context.Context, organizationID string, graph *journey.Graph) (string, error) {
	body, err := json.Marshal(graph)
	if err != nil {
		return "", fmt.Errorf("failed to encode journey: %w", err)
	}
	suffix, err := gonanoid.New(8)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s/%s/%s-%s.json",
		journeyPrefix, organizationID, a.now().UTC().Format("20060102T150405Z"), suffix)

	err = util.RetryErrWithContext(ctx, archiveTries, func(ctx context.Context) error {
		_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: aws.String("application/json"),
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload journey to S3: %w", err)
	}
	return key, nil
}

// LoadJourneyGraph reads and validates an archived graph.
func (a *JourneyArchive) LoadJourneyGraph(ctx context.Context, key string) (*journey.Graph, error) {
	result, err := util.RetryWithContext(ctx, archiveTries, func(ctx context.Context) (*s3.GetObjectOutput, error) {
		return a.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(key),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get journey from S3: %w", err)
	}
	defer result.Body.Close()

	raw, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read journey contents: %w", err)
	}
	return journey.Decode(raw)
}

// ListJourneyArchives returns the archive keys of an organization, newest first.
func (a *JourneyArchive) ListJourneyArchives(ctx context.Context, organizationID string) ([]string, error) {
	prefix := fmt.Sprintf("%s/%s/", journeyPrefix, organizationID)

	var keys []string
	listInput := &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(prefix),
	}

	for {
		listOutput, err := a.client.ListObjectsV2(ctx, listInput)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects with prefix %s: %w", prefix, err)
		}

		for _, obj := range listOutput.Contents {
			if obj.Key != nil && strings.HasSuffix(*obj.Key, ".json") {
				keys = append(keys, *obj.Key)
			}
		}

		if listOutput.IsTruncated != nil && *listOutput.IsTruncated {
			listInput.ContinuationToken = listOutput.NextContinuationToken
		} else {
			break
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys, nil
}
