package archive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energizer-project/matchgate/internal/config"
)

func TestReportKey(t *testing.T) {
	assert.Equal(t, "reports/abc-123/7_42.bin", ReportKey("abc-123", "7", 42))
	assert.Equal(t, "reports/______etc/__0.bin", ReportKey("../../etc", "", 0))
	assert.NotContains(t, ReportKey("../../etc", "/x", 1), "..")
}

func TestDiskArchiver(t *testing.T) {
	a, err := NewDiskArchiver(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key := ReportKey("csid", "1", 5)
	require.NoError(t, a.Store(ctx, key, []byte{1, 2, 3}))
	require.NoError(t, a.Store(ctx, key, []byte{4}))

	data, err := a.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, data)

	_, err = a.Load(ctx, ReportKey("csid", "1", 6))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewSelectsBackend(t *testing.T) {
	ctx := context.Background()

	a, err := New(ctx, config.ArchiveConfig{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, a)

	a, err = New(ctx, config.ArchiveConfig{Backend: "disk", Directory: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &DiskArchiver{}, a)

	a, err = New(ctx, config.ArchiveConfig{
		Backend:     "s3",
		S3Bucket:    "reports",
		S3Endpoint:  "http://127.0.0.1:9000",
		S3AccessKey: "key",
		S3SecretKey: "secret",
	})
	require.NoError(t, err)
	assert.IsType(t, &S3Archiver{}, a)

	_, err = New(ctx, config.ArchiveConfig{Backend: "tape"})
	assert.Error(t, err)
}
