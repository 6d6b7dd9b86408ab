package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MaxImageSize is the maximum allowed upload size for headshots and venue photos (5MB).
	MaxImageSize = 5 * 1024 * 1024
	// FolderSpeakers is the S3 prefix for speaker headshots.
	FolderSpeakers = "speakers"
	// FolderVenues is the S3 prefix for venue photos.
	FolderVenues = "venues"
)

// Allowed image MIME types and their canonical extensions.
var (
	AllowedImageTypes = map[string]string{
		"image/jpeg": ".jpg",
		"image/jpg":  ".jpg",
		"image/png":  ".png",
		"image/webp": ".webp",
	}
	AllowedImageExtensions = map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".webp": "image/webp",
	}
)

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	MediaBucket          string
	PresignExpireMinutes int
}

// PresignedUpload is returned to clients that PUT an image straight to the bucket.
type PresignedUpload struct {
	UploadURL   string    `json:"upload_url"`
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// S3 provides media bucket operations with validation and pre-signed URLs.
type S3 struct {
	client   *s3.Client
	presign  *s3.PresignClient
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client using credentials from config, falling back to the default chain.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		logger.Info("S3 client using static credentials", zap.String("region", cfg.Region), zap.String("media_bucket", cfg.MediaBucket))
	} else {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &S3{
		client:   client,
		presign:  s3.NewPresignClient(client),
		uploader: manager.NewUploader(client),
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// ImageContentType resolves the MIME type for an upload from the declared content type or
// the filename extension. ok is false when neither names an allowed image type.
func ImageContentType(contentType, filename string) (string, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if _, ok := AllowedImageTypes[ct]; ok {
		if ct == "image/jpg" {
			ct = "image/jpeg"
		}
		return ct, true
	}
	if ct != "" {
		return "", false
	}
	ext := strings.ToLower(path.Ext(filename))
	if mt, ok := AllowedImageExtensions[ext]; ok {
		return mt, true
	}
	return "", false
}

// SpeakerPhotoKey returns speakers/{speaker_id}/{random}.{ext}.
func SpeakerPhotoKey(speakerID uuid.UUID, contentType string) string {
	return ObjectKey(FolderSpeakers, speakerID, contentType)
}

// VenuePhotoKey returns venues/{venue_id}/{random}.{ext}.
func VenuePhotoKey(venueID uuid.UUID, contentType string) string {
	return ObjectKey(FolderVenues, venueID, contentType)
}

// ObjectKey returns {folder}/{owner}/{random}.{ext} for an image of the given type.
func ObjectKey(folder string, owner uuid.UUID, contentType string) string {
	ext := AllowedImageTypes[contentType]
	if ext == "" {
		ext = ".bin"
	}
	return path.Join(folder, owner.String(), uuid.NewString()+ext)
}

// KeyBelongsTo reports whether key sits under folder/{owner}/, so clients cannot point a
// record at another entity's object.
func KeyBelongsTo(key, folder string, owner uuid.UUID) bool {
	clean := path.Clean(key)
	return clean == key && strings.HasPrefix(key, folder+"/"+owner.String()+"/")
}

// PresignUpload returns a pre-signed PUT URL for a direct browser upload.
func (s *S3) PresignUpload(ctx context.Context, key, contentType string) (*PresignedUpload, error) {
	expires := s.PresignExpire()
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.MediaBucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}
	return &PresignedUpload{
		UploadURL:   req.URL,
		Key:         key,
		ContentType: contentType,
		ExpiresAt:   time.Now().Add(expires),
	}, nil
}

// PresignDownload returns a pre-signed GET URL for an object in the media bucket.
func (s *S3) PresignDownload(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.MediaBucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.PresignExpire()
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

// Upload streams a reader into the media bucket. Used for server-side imports.
func (s *S3) Upload(ctx context.Context, key, contentType string, body io.Reader) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.MediaBucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	return nil
}

// PresignExpire returns the configured presign duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}

// DeleteObject removes an object from the media bucket. Missing objects are not an error.
func (s *S3) DeleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.MediaBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
