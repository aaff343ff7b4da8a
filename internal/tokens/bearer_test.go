package tokens_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atrawog/mcp-oauth-gateway/internal/tokens"
)

func TestExtractBearerToken(t *testing.T) {
	tok, err := tokens.ExtractBearerToken("Bearer abc.def.ghi")
	require.NoError(t, err)
	require.Equal(t, "abc.def.ghi", tok)
}

func TestExtractBearerTokenCaseInsensitiveScheme(t *testing.T) {
	tok, err := tokens.ExtractBearerToken("bearer abc.def.ghi")
	require.NoError(t, err)
	require.Equal(t, "abc.def.ghi", tok)
}

func TestExtractBearerTokenRejectsMissingHeader(t *testing.T) {
	_, err := tokens.ExtractBearerToken("")
	require.ErrorIs(t, err, tokens.ErrMissingBearerToken)
}

func TestExtractBearerTokenRejectsOtherScheme(t *testing.T) {
	_, err := tokens.ExtractBearerToken("Basic dXNlcjpwYXNz")
	require.ErrorIs(t, err, tokens.ErrMissingBearerToken)
}

func TestExtractBearerTokenRejectsEmptyToken(t *testing.T) {
	_, err := tokens.ExtractBearerToken("Bearer ")
	require.ErrorIs(t, err, tokens.ErrMissingBearerToken)
}
