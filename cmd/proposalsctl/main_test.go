package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proposals/internal/platform/config"
	id "proposals/pkg/domain"
	"proposals/pkg/platform/middleware/auth"
)

func TestPrintTransitions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printTransitions(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Contains(t, buf.String(), "approved")
	assert.Contains(t, buf.String(), "returned_to_draft")
}

func TestIssueTokenRoundTrips(t *testing.T) {
	cfg := config.Server{JWTSigningKey: "test-key", JWTIssuer: "proposals"}
	user := uuid.NewString()

	token, err := issueToken(cfg, user, "reviewer", time.Hour, time.Now())
	require.NoError(t, err)

	claims, err := auth.NewHS256Validator("test-key", "proposals").ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user, claims.UserID.String())
	assert.Equal(t, id.RoleReviewer, claims.Role)
}

func TestIssueTokenRejectsBadInput(t *testing.T) {
	cfg := config.Server{JWTSigningKey: "test-key", JWTIssuer: "proposals"}

	_, err := issueToken(cfg, "not-a-uuid", "student", time.Hour, time.Now())
	assert.Error(t, err)

	_, err = issueToken(cfg, uuid.NewString(), "superuser", time.Hour, time.Now())
	assert.Error(t, err)
}
