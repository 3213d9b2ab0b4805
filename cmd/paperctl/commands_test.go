package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"paperlib-sync-server/internal/database"
	"paperlib-sync-server/internal/domain"
	"paperlib-sync-server/internal/repository"
	"paperlib-sync-server/internal/service"
	"paperlib-sync-server/pkg/jwt"
	"paperlib-sync-server/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func seedLibrary(t *testing.T, path, userID string) {
	t.Helper()

	db, err := database.Open(database.DefaultOptions(path))
	require.NoError(t, err)
	defer db.Close()

	svc := service.NewPaperService(service.NewSyncService(repository.NewStore(db), service.SyncOptions{}, logger.Discard()))
	for _, title := range []string{"A", "B"} {
		_, _, err := svc.Create(context.Background(), userID, "seed", &domain.PaperChange{Title: domain.Some(title)})
		require.NoError(t, err)
	}
}

func TestMigrateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.db")

	out, err := runCommand(t, "migrate", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 1")
}

func TestStatusCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.db")
	seedLibrary(t, path, "u1")

	out, err := runCommand(t, "status", "--db", path, "--user", "u1")
	require.NoError(t, err)

	var status domain.SyncStatus
	require.NoError(t, yaml.Unmarshal([]byte(out), &status))
	assert.Equal(t, "u1", status.UserID)
	assert.Equal(t, 2, status.Papers.Live)

	_, err = runCommand(t, "status", "--db", path)
	assert.Error(t, err)
}

func TestWipeCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.db")
	seedLibrary(t, path, "u1")

	_, err := runCommand(t, "wipe", "--db", path, "--user", "u1")
	require.Error(t, err)

	out, err := runCommand(t, "wipe", "--db", path, "--user", "u1", "--yes")
	require.NoError(t, err)

	var result domain.WipeResult
	require.NoError(t, yaml.Unmarshal([]byte(out), &result))
	assert.Equal(t, int64(2), result.Papers)
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-test-secret")

	out, err := runCommand(t, "token", "--user", "u9", "--ttl", "5m")
	require.NoError(t, err)

	claims, err := jwt.ValidateToken(strings.TrimSpace(out), "cli-test-secret")
	require.NoError(t, err)
	assert.Equal(t, "u9", claims.UserID)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}
