package storage

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateContentType(t *testing.T) {
	tests := []struct {
		contentType string
		wantErr     bool
	}{
		{"text/plain", false},
		{"text/tab-separated-values", false},
		{"audio/wav", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			err := ValidateContentType(tt.contentType)
			if tt.wantErr {
				assert.ErrorContains(t, err, "invalid content type")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewS3Service_RequiresBucket(t *testing.T) {
	_, err := NewS3Service(S3Config{})
	assert.Error(t, err)
}

func TestGenerateUploadURL_PathStyle(t *testing.T) {
	svc, err := NewS3Service(S3Config{
		Bucket:    "measurements",
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	})
	require.NoError(t, err)

	raw, err := svc.GenerateUploadURL(context.Background(), "measurements/abc.txt", "text/plain")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/measurements/measurements/abc.txt", u.Path)
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))

	_, err = svc.GenerateUploadURL(context.Background(), "x", "audio/wav")
	assert.Error(t, err)
}

func TestSplitEndpoint(t *testing.T) {
	host, secure := splitEndpoint("https://s3.local:9000")
	assert.Equal(t, "s3.local:9000", host)
	assert.True(t, secure)

	host, secure = splitEndpoint("localhost:9000")
	assert.Equal(t, "localhost:9000", host)
	assert.False(t, secure)

	assert.Equal(t, "http://localhost:9000", endpointURL("localhost:9000"))
	assert.NoError(t, EnsureBucket(context.Background(), S3Config{Bucket: "b"}))
}
