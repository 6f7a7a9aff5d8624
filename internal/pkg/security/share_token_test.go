package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShareTokenRoundTrip(t *testing.T) {
	token, err := GenerateShareToken("0f8fad5b-d9cb-469f-a165-70867728950e", time.Hour, "secret")
	require.NoError(t, err)

	claims, err := VerifyShareToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "0f8fad5b-d9cb-469f-a165-70867728950e", claims.AppraisalUUID)
}

func TestShareTokenRejectsTampering(t *testing.T) {
	token, err := GenerateShareToken("abc", time.Hour, "secret")
	require.NoError(t, err)

	_, err = VerifyShareToken(token, "wrong-secret")
	assert.Error(t, err)

	_, err = VerifyShareToken(token+"x", "secret")
	assert.Error(t, err)

	_, err = VerifyShareToken("not-a-token", "secret")
	assert.Error(t, err)
}

func TestShareTokenExpires(t *testing.T) {
	token, err := GenerateShareToken("abc", -time.Minute, "secret")
	require.NoError(t, err)

	_, err = VerifyShareToken(token, "secret")
	assert.ErrorContains(t, err, "expired")
}
