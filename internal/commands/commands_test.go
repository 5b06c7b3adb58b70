package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"docverify/pkg/platform/middleware/auth"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runWithInput(t, "", args...)
}

func runWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd("test")
	root.SetIn(strings.NewReader(input))
	root.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func decode(t *testing.T, out string) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestMatchCommand(t *testing.T) {
	out, err := run(t, "match", "--claimed", "Иванов Иван Иванович", "--extracted", "Иванов И.И.")
	require.NoError(t, err)
	assert.Equal(t, true, decode(t, out)["matched"])

	out, err = run(t, "match", "--claimed", "Иванов Иван Иванович", "--extracted", "Петров Петр", "--strict")
	require.NoError(t, err)
	assert.Equal(t, false, decode(t, out)["matched"])
}

func TestMatchCommandRequiresFlags(t *testing.T) {
	_, err := run(t, "match", "--claimed", "Иванов Иван")
	require.Error(t, err)
}

func TestValidityCommand(t *testing.T) {
	t.Run("type window", func(t *testing.T) {
		out, err := run(t, "validity", "--type", "childcare_leave_order", "--date", "2024-01-10", "--now", "2024-06-01")
		require.NoError(t, err)
		report := decode(t, out)
		assert.Equal(t, "2025-01-09", report["valid_until"])
		assert.Equal(t, true, report["within_window"])
		assert.Equal(t, true, report["known"])
	})

	t.Run("default window through alias, deadline day is still valid", func(t *testing.T) {
		out, err := run(t, "validity", "--type", "pregnancy certificate", "--date", "10.01.2024", "--now", "2024-02-19")
		require.NoError(t, err)
		report := decode(t, out)
		assert.Equal(t, "pregnancy_certificate", report["doc_type"])
		assert.Equal(t, "2024-02-19", report["valid_until"])
		assert.Equal(t, true, report["within_window"])
	})

	t.Run("day after deadline", func(t *testing.T) {
		out, err := run(t, "validity", "--type", "pregnancy_certificate", "--date", "2024-01-10", "--now", "2024-02-20")
		require.NoError(t, err)
		assert.Equal(t, false, decode(t, out)["within_window"])
	})

	t.Run("invalid date leaves the answer open", func(t *testing.T) {
		out, err := run(t, "validity", "--type", "pregnancy_certificate", "--date", "10/01/2024")
		require.NoError(t, err)
		report := decode(t, out)
		assert.Nil(t, report["valid_until"])
		assert.Nil(t, report["within_window"])
	})
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "cli-test-signing-key")

	out, err := run(t, "token", "--subject", "operator-7")
	require.NoError(t, err)

	verifier, err := auth.NewHS256Verifier("cli-test-signing-key")
	require.NoError(t, err)
	subject, err := verifier.Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "operator-7", subject)
}

func TestTokenCommandWithoutKey(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "")
	_, err := run(t, "token", "--subject", "operator-7")
	require.ErrorContains(t, err, "JWT_SIGNING_KEY")
}

func TestAdminHashCommand(t *testing.T) {
	out, err := runWithInput(t, "operator-secret\n", "admin-hash")
	require.NoError(t, err)
	hashed := strings.TrimSpace(out)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hashed), []byte("operator-secret")))

	_, err = runWithInput(t, "", "admin-hash")
	require.Error(t, err)
}

func TestRunsFindRequiresPostgres(t *testing.T) {
	t.Setenv("RESULT_BACKEND", "fs")
	_, err := run(t, "runs", "find", "--code", "FIO_MISMATCH")
	require.ErrorContains(t, err, "RESULT_BACKEND=postgres")
}

func TestRunsGetMissing(t *testing.T) {
	t.Setenv("RESULT_BACKEND", "fs")
	t.Setenv("RESULT_DIR", t.TempDir())
	_, err := run(t, "runs", "get", "does-not-exist")
	require.Error(t, err)
}

func TestParseMetadata(t *testing.T) {
	got, err := parseMetadata([]string{"channel=branch", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"channel": "branch", "note": "a=b"}, got)

	_, err = parseMetadata([]string{"novalue"})
	require.Error(t, err)
}
