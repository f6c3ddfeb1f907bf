// Package storage は明細書PDFを保存するオブジェクトストレージを提供する。
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// BlobStore はオブジェクトの保存、存在確認、期限付きURL発行のインターフェース。
type BlobStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// S3Config はS3接続設定。
// AccessKeyIDが空の場合はAWS SDKのデフォルト認証チェーンを使用する。
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store はAmazon S3を使ったBlobStore実装。
type S3Store struct {
	objects   objectAPI
	presigner presignAPI
	bucket    string
}

// NewS3Store はS3クライアントを生成してS3Storeを返す。
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("S3バケット名が設定されていません")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("AWS設定の読み込みに失敗しました: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Store{
		objects:   client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
	}, nil
}

// Put はオブジェクトを保存する。
func (s *S3Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("S3へのアップロードに失敗しました: key=%s: %w", key, err)
	}
	return nil
}

// Exists はオブジェクトが存在するかを返す。
func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.objects.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("S3オブジェクトの確認に失敗しました: key=%s: %w", key, err)
	}
	return true, nil
}

// PresignGet はttlの間有効なGET用の署名付きURLを発行する。
func (s *S3Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("署名付きURLの発行に失敗しました: key=%s: %w", key, err)
	}
	return req.URL, nil
}

// ErrNotConfigured はストレージが設定されていないことを表す。
var ErrNotConfigured = errors.New("オブジェクトストレージが設定されていません")

// DisabledStore はS3未設定時に使うBlobStore。すべての操作でErrNotConfiguredを返す。
type DisabledStore struct{}

func (DisabledStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	return ErrNotConfigured
}

func (DisabledStore) Exists(ctx context.Context, key string) (bool, error) {
	return false, ErrNotConfigured
}

func (DisabledStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "", ErrNotConfigured
}

// compile-time interface check
var (
	_ BlobStore = (*S3Store)(nil)
	_ BlobStore = DisabledStore{}
)
