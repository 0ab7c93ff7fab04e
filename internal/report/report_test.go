package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateGolden(t *testing.T) {
	var buf bytes.Buffer
	n, err := Generate(Sources{
		OpensPath:       filepath.Join("testdata", "email_opens.log"),
		CredentialsPath: filepath.Join("testdata", "credentials.log"),
		GophishPath:     filepath.Join("testdata", "gophish_logs.json"),
	}, &buf, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	g := goldie.New(t)
	g.Assert(t, "report", buf.Bytes())
}

func TestGenerateMissingSources(t *testing.T) {
	dir := t.TempDir()

	var buf bytes.Buffer
	n, err := Generate(Sources{
		OpensPath:       filepath.Join(dir, "missing_opens.log"),
		CredentialsPath: filepath.Join(dir, "missing_credentials.log"),
		GophishPath:     filepath.Join(dir, "missing.json"),
	}, &buf, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, strings.Join(Headers, ",")+"\n", buf.String())
}

func TestGenerateOversizedLine(t *testing.T) {
	dir := t.TempDir()
	credsPath := filepath.Join(dir, "credentials.log")
	content := "2026-01-10 09:10:00 - IP: 10.0.0.1 - Username: alice@example.com - Password: " +
		strings.Repeat("x", 2<<20) + "\n" +
		"2026-01-10 09:11:00 - IP: 10.0.0.2 - Username: bob@example.com - Password: hunter2\n"
	require.NoError(t, os.WriteFile(credsPath, []byte(content), 0600))

	var buf bytes.Buffer
	n, err := Generate(Sources{
		OpensPath:       filepath.Join(dir, "missing_opens.log"),
		CredentialsPath: credsPath,
	}, &buf, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, buf.String(), "bob@example.com,No,,No,,No,,Yes,2026-01-10 09:11:00,hunter2")
}

func TestParseOpens(t *testing.T) {
	input := strings.Join([]string{
		"2026-01-10 09:00:00 - Opened by recipient ID:  padded  - IP: 10.0.0.1",
		"2026-01-10 09:01:00 - Opened by recipient ID: unknown - IP: ::1",
		"2026-01-10 09:02:00 - Opened by recipient ID: a - IP: b - IP: 10.0.0.2",
		"garbage",
	}, "\n")

	opens, err := ParseOpens(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"2026-01-10 09:00:00"}, opens["padded"])
	assert.Equal(t, []string{"2026-01-10 09:01:00"}, opens["unknown"])
	assert.Equal(t, []string{"2026-01-10 09:02:00"}, opens["a - IP: b"])
	assert.Len(t, opens, 3)
}

func TestParseCredentials(t *testing.T) {
	input := strings.Join([]string{
		"2026-01-10 09:10:00 - IP: 10.0.0.1 - Username: alice - Password: wonderland",
		"2026-01-10 09:11:00 - IP: 10.0.0.1 - Username: john smith - Password: with spaces ",
		"2026-01-10 09:12:00 - IP: 10.0.0.1 - Username:  - Password: ",
	}, "\n")

	creds, err := ParseCredentials(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []Submission{{Time: "2026-01-10 09:10:00", Password: "wonderland"}}, creds["alice"])
	assert.Equal(t, []Submission{{Time: "2026-01-10 09:11:00", Password: "with spaces"}}, creds["john smith"])
	assert.Equal(t, []Submission{{Time: "2026-01-10 09:12:00", Password: ""}}, creds[""])
}

func TestParseGophishInvalid(t *testing.T) {
	_, err := ParseGophish(strings.NewReader("{"))
	assert.Error(t, err)
}

func TestParseGophishMissingEmail(t *testing.T) {
	events, err := ParseGophish(strings.NewReader(`[{"status": "Email Sent", "time": "t"}]`))
	require.NoError(t, err)
	assert.Len(t, events["unknown@example.com"], 1)
}

func TestConsolidateSubmittedFromGophish(t *testing.T) {
	rows := Consolidate(
		map[string][]GophishEvent{
			"dave@example.com": {{Email: "dave@example.com", Status: "Submitted Data", Time: "t1"}},
		},
		map[string][]string{},
		map[string][]Submission{},
	)

	require.Len(t, rows, 1)
	assert.True(t, rows[0].Submitted)
	assert.Equal(t, "t1", rows[0].FirstSubmitAt)
	assert.Empty(t, rows[0].PasswordSample)
	assert.False(t, rows[0].Sent)
}
