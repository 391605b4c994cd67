// Package upload stores captured images and hands back their public URL.
package upload

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MaxImageBytes is the largest decoded image accepted.
const MaxImageBytes = 10 << 20

var (
	ErrEmptyImage    = errors.New("image is empty")
	ErrImageTooLarge = fmt.Errorf("image exceeds %d bytes", MaxImageBytes)
	ErrNotAnImage    = errors.New("content is not an image")
)

// ObjectStore writes one object and returns the public URL it is served at.
type ObjectStore interface {
	Put(ctx context.Context, path, contentType string, data []byte) (string, error)
}

// Uploader decodes inline images and stores them under the user's prefix.
type Uploader struct {
	store ObjectStore
	now   func() time.Time
}

func NewUploader(store ObjectStore) *Uploader {
	return &Uploader{store: store, now: time.Now}
}

// UploadBase64 accepts either a bare base64 payload or a data URL.
func (u *Uploader) UploadBase64(ctx context.Context, userID, encoded string) (string, error) {
	data, declared, err := Decode(encoded)
	if err != nil {
		return "", err
	}
	contentType, err := ContentType(data, declared)
	if err != nil {
		return "", err
	}

	path := fmt.Sprintf("uploads/%s/%s/%s%s",
		userID, u.now().UTC().Format("2006-01-02"), uuid.NewString(), extension(contentType))

	publicURL, err := u.store.Put(ctx, path, contentType, data)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", path, err)
	}
	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"path":    path,
		"bytes":   len(data),
	}).Info("image uploaded")
	return publicURL, nil
}

// ContentType sniffs the image type of data. Formats DetectContentType does
// not know (heic) fall back to the declared type.
func ContentType(data []byte, declared string) (string, error) {
	contentType := http.DetectContentType(data)
	if strings.HasPrefix(contentType, "image/") {
		return contentType, nil
	}
	if strings.HasPrefix(declared, "image/") {
		return declared, nil
	}
	return "", ErrNotAnImage
}

// Decode returns the bytes of a base64 image and the MIME type declared by
// its data URL prefix, if any.
func Decode(encoded string) ([]byte, string, error) {
	encoded = strings.TrimSpace(encoded)
	var declared string
	if strings.HasPrefix(encoded, "data:") {
		header, payload, ok := strings.Cut(encoded, ",")
		if !ok {
			return nil, "", errors.New("malformed data URL")
		}
		declared = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		encoded = payload
	}
	if encoded == "" {
		return nil, "", ErrEmptyImage
	}
	if base64.StdEncoding.DecodedLen(len(encoded)) > MaxImageBytes+3 {
		return nil, "", ErrImageTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// Some clients strip the padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
		if err != nil {
			return nil, "", fmt.Errorf("decode base64 image: %w", err)
		}
	}
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}
	if len(data) > MaxImageBytes {
		return nil, "", ErrImageTooLarge
	}
	return data, declared, nil
}

func extension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	default:
		return ".jpg"
	}
}

// BucketStore writes to a Cloud Storage bucket, normally the Firebase default
// bucket. Objects get a Firebase download token so the returned URL is
// readable without credentials.
type BucketStore struct {
	bucket *storage.BucketHandle
	name   string
	cdnURL string
}

// NewBucketStore serves objects from cdnURL when set, otherwise from the
// Firebase storage download endpoint.
func NewBucketStore(bucket *storage.BucketHandle, name, cdnURL string) *BucketStore {
	return &BucketStore{bucket: bucket, name: name, cdnURL: strings.TrimRight(cdnURL, "/")}
}

func (s *BucketStore) Put(ctx context.Context, path, contentType string, data []byte) (string, error) {
	token := uuid.NewString()

	w := s.bucket.Object(path).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000"
	w.Metadata = map[string]string{"firebaseStorageDownloadTokens": token}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return PublicURL(s.cdnURL, s.name, path, token), nil
}

// PublicURL builds the address an uploaded object is served from.
func PublicURL(cdnURL, bucket, path, token string) string {
	if cdnURL != "" {
		return cdnURL + "/" + path
	}
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.PathEscape(path), token)
}
