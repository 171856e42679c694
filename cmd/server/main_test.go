package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	f, err := parseFlags([]string{"-migrate", "up"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "up", f.migrate)
	assert.Empty(t, f.issueToken)

	f, err = parseFlags(nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, cliFlags{}, f)

	_, err = parseFlags([]string{"-bogus"}, io.Discard)
	assert.Error(t, err)
}

func TestIssueToken(t *testing.T) {
	cfg := testConfig()
	userID := uuid.New()

	var out bytes.Buffer
	require.NoError(t, issueToken(context.Background(), cfg, userID.String(), &out))

	jwtService, err := auth.NewJWTService(cfg.Auth)
	require.NoError(t, err)
	claims, err := jwtService.ValidateToken(context.Background(), strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)

	assert.Error(t, issueToken(context.Background(), cfg, "not-a-uuid", &out))
}

func TestRunMigrations_RequiresPostgres(t *testing.T) {
	err := runMigrations(context.Background(), testConfig(), "up", discardLogger())
	assert.ErrorContains(t, err, "postgres driver")
}
