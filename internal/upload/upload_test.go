package upload

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent PNG.
const pngBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

type memStore struct {
	path        string
	contentType string
	data        []byte
	err         error
}

func (m *memStore) Put(_ context.Context, path, contentType string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.path, m.contentType, m.data = path, contentType, data
	return "https://cdn.soonlist.com/" + path, nil
}

func newTestUploader(store ObjectStore) *Uploader {
	u := NewUploader(store)
	u.now = func() time.Time { return time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC) }
	return u
}

func TestUploadBase64(t *testing.T) {
	for name, in := range map[string]string{
		"bare":     pngBase64,
		"data url": "data:image/png;base64," + pngBase64,
	} {
		t.Run(name, func(t *testing.T) {
			store := &memStore{}
			got, err := newTestUploader(store).UploadBase64(context.Background(), "user_1", in)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(store.path, "uploads/user_1/2025-03-07/"))
			assert.True(t, strings.HasSuffix(store.path, ".png"))
			assert.Equal(t, "image/png", store.contentType)
			assert.Equal(t, "https://cdn.soonlist.com/"+store.path, got)
		})
	}
}

func TestUploadBase64_Rejects(t *testing.T) {
	u := newTestUploader(&memStore{})
	ctx := context.Background()

	_, err := u.UploadBase64(ctx, "user_1", "")
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = u.UploadBase64(ctx, "user_1", base64.StdEncoding.EncodeToString([]byte("just some text")))
	assert.ErrorIs(t, err, ErrNotAnImage)

	_, err = u.UploadBase64(ctx, "user_1", "!!!not base64!!!")
	assert.Error(t, err)
}

func TestUploadBase64_StoreFailure(t *testing.T) {
	u := newTestUploader(&memStore{err: errors.New("bucket unavailable")})
	_, err := u.UploadBase64(context.Background(), "user_1", pngBase64)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unavailable")
}

func TestDecode_DeclaredType(t *testing.T) {
	data, declared, err := Decode("data:image/heic;base64," + base64.StdEncoding.EncodeToString([]byte("ftypheic....")))
	require.NoError(t, err)
	assert.Equal(t, "image/heic", declared)
	assert.NotEmpty(t, data)
}

func TestDecode_Unpadded(t *testing.T) {
	data, _, err := Decode(strings.TrimRight(pngBase64, "="))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data[:4])
}

func TestContentType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR")

	got, err := ContentType(png, "")
	require.NoError(t, err)
	assert.Equal(t, "image/png", got)

	got, err = ContentType(png, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "image/png", got, "sniffed type wins over the declared one")

	got, err = ContentType([]byte("\x00\x00\x00\x18ftypheic"), "image/heic")
	require.NoError(t, err)
	assert.Equal(t, "image/heic", got)

	_, err = ContentType([]byte("plain words"), "")
	assert.ErrorIs(t, err, ErrNotAnImage)
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://cdn.soonlist.com/uploads/a.png",
		PublicURL("https://cdn.soonlist.com", "b", "uploads/a.png", "t"))
	assert.Equal(t,
		"https://firebasestorage.googleapis.com/v0/b/soonlist.appspot.com/o/uploads%2Fa.png?alt=media&token=t",
		PublicURL("", "soonlist.appspot.com", "uploads/a.png", "t"))
}
