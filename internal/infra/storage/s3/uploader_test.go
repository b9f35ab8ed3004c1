package s3

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHostOf(t *testing.T) {
	req := require.New(t)

	req.Equal("minio:9000", hostOf("minio:9000"))
	req.Equal("minio:9000", hostOf("http://minio:9000"))
	req.Equal("store.example.com", hostOf("https://store.example.com/"))
}

func TestNewClientValidation(t *testing.T) {
	req := require.New(t)

	_, err := NewClient("", false, "key", "secret", "avatars", "", nil)
	req.Error(err)

	_, err = NewClient("minio:9000", false, "key", "secret", "  ", "", nil)
	req.Error(err)
}

func TestNoopUploaderRejectsUploads(t *testing.T) {
	req := require.New(t)

	_, err := NoopUploader{}.Upload(context.Background(), "avatars/u1", strings.NewReader("png"), "image/png")
	req.Error(err)
}
