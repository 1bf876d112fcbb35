package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/digkill/LandingForge/internal/models"
)

type Config struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
	UsePathStyle  bool
	Prefix        string
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// SnapshotStore mirrors saved landing pages to an S3-compatible bucket as public JSON
// documents, so shared links keep working from a CDN.
type SnapshotStore struct {
	cfg    Config
	client objectPutter
}

func NewSnapshotStore(cfg Config) (*SnapshotStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 region is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 credentials are required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, fmt.Errorf("s3 public base url is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "pages"
	}

	options := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.Endpoint != "" {
		options.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	return &SnapshotStore{cfg: cfg, client: s3.New(options)}, nil
}

type snapshot struct {
	Slug      string             `json:"slug"`
	Idea      string             `json:"idea"`
	Content   models.PageContent `json:"content"`
	CreatedAt string             `json:"createdAt"`
}

// PutPage uploads the page and returns its public URL.
func (s *SnapshotStore) PutPage(ctx context.Context, page *models.LandingPage) (string, error) {
	if page.Slug == "" {
		return "", fmt.Errorf("page has no slug")
	}
	body, err := json.Marshal(snapshot{
		Slug:      page.Slug,
		Idea:      page.Idea,
		Content:   page.Content,
		CreatedAt: page.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	key := s.key(page)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.cfg.Bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String("application/json"),
		CacheControl: aws.String("public, max-age=300"),
		ACL:          types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("upload snapshot to s3: %w", err)
	}
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key, nil
}

func (s *SnapshotStore) key(page *models.LandingPage) string {
	created := page.CreatedAt.UTC()
	prefix := strings.Trim(s.cfg.Prefix, "/")
	return path.Join(prefix, fmt.Sprintf("%04d/%02d", created.Year(), created.Month()), page.Slug+".json")
}
