package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestArtifactSignerGenerateAndParse(t *testing.T) {
	signer := NewArtifactSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("run-1", "runs/run-1/tickets.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	claims, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "run-1", claims.RunID)
	require.Equal(t, "runs/run-1/tickets.csv", claims.Path)
	require.WithinDuration(t, expiresAt, claims.ExpiresAt.Time, time.Second)
}

func TestArtifactSignerExpired(t *testing.T) {
	issued := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	signer := NewArtifactSigner("secret", time.Minute)
	signer.now = func() time.Time { return issued }
	token, _, err := signer.Generate("run-1", "runs/run-1/tickets.csv")
	require.NoError(t, err)

	signer.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = signer.Parse(token, false)
	require.True(t, errors.Is(err, ErrInvalidToken))

	claims, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "run-1", claims.RunID)
}

func TestArtifactSignerRejectsForeignSignature(t *testing.T) {
	token, _, err := NewArtifactSigner("one", time.Hour).Generate("run-1", "a.csv")
	require.NoError(t, err)

	_, err = NewArtifactSigner("two", time.Hour).Parse(token, false)
	require.True(t, errors.Is(err, ErrInvalidToken))

	_, _, err = NewArtifactSigner("", time.Hour).Generate("run-1", "a.csv")
	require.Error(t, err)
}
