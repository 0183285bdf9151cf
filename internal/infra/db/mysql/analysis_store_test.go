package mysql

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	domain "github.com/bryanwahyu/mediatrust/internal/domain/analyses"
	"github.com/bryanwahyu/mediatrust/internal/infra/archive"
)

func setupTestStore(t *testing.T) *AnalysisStore {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mysql:8.4",
			ExposedPorts: []string{"3306/tcp"},
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": "root",
				"MYSQL_DATABASE":      "mediatrust_test",
				"MYSQL_USER":          "mediatrust",
				"MYSQL_PASSWORD":      "test-password",
			},
			WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306")
	require.NoError(t, err)

	dsn := fmt.Sprintf("mediatrust:test-password@tcp(%s:%s)/mediatrust_test?parseTime=true&charset=utf8mb4&loc=UTC", host, port.Port())
	db, err := Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(ctx, db))

	return NewAnalysisStore(db)
}

func TestAnalysisStore_RoundTripThroughArchive(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	a := archive.New(store, nil)
	require.NoError(t, a.Prime(ctx))

	agg, err := domain.Aggregate(domain.Scores{Face: 30, Audio: 40, Metadata: 50}.Vector())
	require.NoError(t, err)
	c := domain.NewCandidate(domain.MediaDescriptor{FileName: "fake.mp4", FileType: "video/mp4", FileSize: 2048}, agg, nil)

	first, err := a.Create(ctx, c)
	require.NoError(t, err)
	second, err := a.Create(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, first.ID+1, second.ID)
	assert.False(t, second.CreatedAt.Before(first.CreatedAt))

	got, err := a.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictPossibleDeepfake, got.Verdict)
	assert.Nil(t, got.Duration)
	assert.True(t, first.CreatedAt.Equal(got.CreatedAt))

	_, err = store.ByID(ctx, second.ID+10)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, store.Ping(ctx))
}

func TestNullIfBlank(t *testing.T) {
	blank := ""
	val := "01:00"
	assert.False(t, nullIfBlank(nil).Valid)
	assert.False(t, nullIfBlank(&blank).Valid)
	assert.Equal(t, "01:00", *stringPtr(nullIfBlank(&val)))
}
