package objectstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voterfield/internal/domain"
)

func TestDisabledStore(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, Config{})
	require.NoError(t, err)
	assert.False(t, s.Enabled())

	err = s.Put(ctx, "imports/a.csv", []byte("x"), "text/csv")
	assert.True(t, errors.Is(err, domain.ErrUnavailable))
	_, err = s.Get(ctx, "imports/a.csv")
	assert.True(t, errors.Is(err, domain.ErrUnavailable))

	assert.NoError(t, s.Ping(ctx))
	assert.NoError(t, s.EnsureBucket(ctx))
}

func TestNewWithStaticCredentials(t *testing.T) {
	s, err := New(context.Background(), Config{
		Endpoint:        "http://localhost:9000",
		Bucket:          "imports",
		ForcePathStyle:  true,
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
	})
	require.NoError(t, err)
	assert.True(t, s.Enabled())
	assert.Equal(t, "imports", s.Bucket)
	assert.True(t, s.Client.Options().UsePathStyle)
}
