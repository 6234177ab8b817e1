package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// MinIOConfig addresses an S3-compatible bucket.
type MinIOConfig struct {
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyId" json:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey" json:"secretAccessKey"`
	Bucket          string `yaml:"bucket" json:"bucket"`
	Prefix          string `yaml:"prefix" json:"prefix"`
}

// Bucket stores each article as one JSON object under Prefix.
type Bucket struct {
	client *minio.Client
	bucket string
	prefix string
}

// OpenBucket connects to the endpoint and creates the bucket if missing.
func OpenBucket(ctx context.Context, cfg MinIOConfig) (*Bucket, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse minio endpoint: %w", err)
	}
	secure := u.Scheme == "https"
	endpoint := u.Host
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		log.Info().Str("bucket", cfg.Bucket).Msg("creating bucket")
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "articles"
	}
	return &Bucket{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

func (b *Bucket) Close() error { return nil }

func (b *Bucket) key(id string) string {
	return objectKey(b.prefix, id)
}

func objectKey(prefix, id string) string {
	return path.Join(strings.Trim(prefix, "/"), id+".json")
}

func (b *Bucket) put(ctx context.Context, a Article) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal article: %w", err)
	}
	_, err = b.client.PutObject(ctx, b.bucket, b.key(a.ID), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("put article: %w", err)
	}
	return nil
}

func (b *Bucket) Append(ctx context.Context, a Article) error {
	if strings.TrimSpace(a.ID) == "" {
		return errors.New("article id is empty")
	}
	return b.put(ctx, a)
}

func (b *Bucket) Get(ctx context.Context, id string) (Article, error) {
	return b.read(ctx, b.key(id))
}

func (b *Bucket) read(ctx context.Context, key string) (Article, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return Article{}, objectError(err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return Article{}, objectError(err)
	}
	var a Article
	if err := json.Unmarshal(data, &a); err != nil {
		return Article{}, fmt.Errorf("decode article %s: %w", key, err)
	}
	return a, nil
}

// List reads every object under the prefix and orders them newest first.
func (b *Bucket) List(ctx context.Context) ([]Article, error) {
	objects := b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{
		Prefix:    strings.Trim(b.prefix, "/") + "/",
		Recursive: true,
	})
	articles := []Article{}
	for object := range objects {
		if object.Err != nil {
			return nil, fmt.Errorf("list articles: %w", object.Err)
		}
		if !strings.HasSuffix(object.Key, ".json") {
			continue
		}
		a, err := b.read(ctx, object.Key)
		if err != nil {
			log.Warn().Err(err).Str("key", object.Key).Msg("skipping unreadable article")
			continue
		}
		articles = append(articles, a)
	}
	SortNewestFirst(articles)
	return articles, nil
}

func (b *Bucket) UpdateTags(ctx context.Context, id string, tags []string) (Article, error) {
	a, err := b.Get(ctx, id)
	if err != nil {
		return Article{}, err
	}
	a.Tags = NormalizeTags(tags)
	if err := b.put(ctx, a); err != nil {
		return Article{}, err
	}
	return a, nil
}

func (b *Bucket) Delete(ctx context.Context, id string) error {
	key := b.key(id)
	if _, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{}); err != nil {
		return objectError(err)
	}
	if err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	return nil
}

// objectError maps a missing key to ErrNotFound.
func objectError(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return ErrNotFound
	}
	return err
}

// SortNewestFirst orders by DateAdded descending, keeping input order for
// equal timestamps.
func SortNewestFirst(articles []Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].DateAdded.After(articles[j].DateAdded)
	})
}
