//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fairyhunter13/chat-dispatch/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/chat-dispatch/internal/domain"
)

func TestRepos_AgainstPostgres(t *testing.T) {
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "app"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(90 * time.Second),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pool, err := postgres.NewPool(ctx, "postgres://postgres:postgres@"+host+":"+port.Port()+"/app?sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.Eventually(t, func() bool { return pool.Ping(ctx) == nil }, 30*time.Second, time.Second)
	require.NoError(t, postgres.EnsureSchema(ctx, pool))
	require.NoError(t, postgres.EnsureSchema(ctx, pool), "schema is idempotent")

	convs := postgres.NewConversationRepo(pool)
	msgs := postgres.NewMessageRepo(pool)
	files := postgres.NewFileRepo(pool)

	cid, err := convs.Create(ctx, domain.Conversation{Title: domain.DefaultConversationTitle})
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, role := range []domain.Role{domain.RoleUser, domain.RoleAssistant, domain.RoleUser} {
		_, err := msgs.Append(ctx, domain.Message{ConversationID: cid, Role: role, Content: string(role), CreatedAt: base.Add(time.Duration(i) * time.Second)})
		require.NoError(t, err)
	}
	recent, err := msgs.Recent(ctx, cid, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, domain.RoleAssistant, recent[0].Role)
	assert.Equal(t, domain.RoleUser, recent[1].Role)

	n, err := msgs.Count(ctx, cid)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	fid, err := files.Create(ctx, domain.StoredFile{ConversationID: cid, Filename: "a.pdf", MIME: "application/pdf", Type: domain.FileTypePDF, Size: 3, Text: "abc"})
	require.NoError(t, err)
	got, err := files.Get(ctx, fid)
	require.NoError(t, err)
	assert.Equal(t, "abc", got.Text)
	require.NoError(t, files.Delete(ctx, fid))
	_, err = files.Get(ctx, fid)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
