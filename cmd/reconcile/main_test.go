package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliTestEnv struct {
	dir        string
	configPath string
	dbPath     string
	profiles   string
	contacts   string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	dir := t.TempDir()
	env := &cliTestEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.toml"),
		dbPath:     filepath.Join(dir, "contactsync.db"),
		profiles:   filepath.Join(dir, "profiles.csv"),
		contacts:   filepath.Join(dir, "contacts.json"),
	}

	config := fmt.Sprintf(`
[store]
backend = "sqlite"

[sqlite]
path = %q

[logging]
level = "off"

[adjudication]
enabled = false
`, env.dbPath)
	require.NoError(t, os.WriteFile(env.configPath, []byte(config), 0o644))

	profiles := "Notes:\n" +
		"First Name,Last Name,URL,Email Address,Company,Position\n" +
		"Ann,Lee,https://www.linkedin.com/in/annlee,ann@lee.io,Initech,CTO\n" +
		"Bob,Stone,https://www.linkedin.com/in/bobstone,,Globex,Designer\n"
	require.NoError(t, os.WriteFile(env.profiles, []byte(profiles), 0o644))

	contacts := `{"value": [
		{"contactid": "c-1", "firstname": "Ann", "lastname": "Lee", "emailaddress1": "ann@lee.io", "companyname": "Initech", "jobtitle": "Engineer"},
		{"contactid": "c-2", "firstname": "Zed", "lastname": "Quark", "emailaddress1": "zed@quark.io", "companyname": "Umbrella", "jobtitle": "Chemist"}
	]}`
	require.NoError(t, os.WriteFile(env.contacts, []byte(contacts), 0o644))
	return env
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

var uuidPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

func TestCLI_RunReviewApprove(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "run", "--profiles", env.profiles, "--contacts", env.contacts)
	require.NoError(t, err, out)
	assert.Contains(t, out, "success")

	out, err = env.run(t, "candidates", "list")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Ann Lee")
	assert.Contains(t, out, "c-1")
	assert.Contains(t, out, "high")
	assert.Contains(t, out, "Showing 1 of 1")

	id := uuidPattern.FindString(out)
	require.NotEmpty(t, id)

	out, err = env.run(t, "candidates", "show", id)
	require.NoError(t, err, out)
	assert.Contains(t, out, `"jobtitle": "CTO"`)
	assert.Contains(t, out, `"mc_linkedin": "https://www.linkedin.com/in/annlee"`)

	out, err = env.run(t, "candidates", "approve", id, "--notes", "checked")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Approved "+id)
	assert.Contains(t, out, "to c-1")

	_, err = env.run(t, "candidates", "reject", id)
	assert.ErrorContains(t, err, "expected pending")

	out, err = env.run(t, "stats")
	require.NoError(t, err, out)
	assert.Regexp(t, `approved\s*│\s*1`, out)

	out, err = env.run(t, "sessions")
	require.NoError(t, err, out)
	assert.Contains(t, out, "success")
}

func TestCLI_RejectAndFlag(t *testing.T) {
	env := setupCLITestEnv(t)
	_, err := env.run(t, "run", "--profiles", env.profiles, "--contacts", env.contacts)
	require.NoError(t, err)

	out, err := env.run(t, "candidates", "list", "--status", "pending")
	require.NoError(t, err)
	id := uuidPattern.FindString(out)
	require.NotEmpty(t, id)

	out, err = env.run(t, "candidates", "flag", id, "--reason", "ask sales")
	require.NoError(t, err, out)
	assert.Contains(t, out, "is now flagged")

	out, err = env.run(t, "candidates", "list", "--status", "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "No candidates")
}

func TestCLI_ApproveSetRejectsMalformedPairs(t *testing.T) {
	env := setupCLITestEnv(t)
	_, err := env.run(t, "candidates", "approve", "x", "--set", "novalue")
	assert.ErrorContains(t, err, "expected field=value")
}

func TestCLI_RunRefusesConcurrentRun(t *testing.T) {
	env := setupCLITestEnv(t)
	lock := flock.New(env.dbPath + ".lock")
	ok, err := lock.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer lock.Unlock()

	_, err = env.run(t, "run", "--profiles", env.profiles, "--contacts", env.contacts)
	assert.ErrorContains(t, err, "already in progress")
}

func TestCLI_RunMissingFile(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "run", "--profiles", filepath.Join(env.dir, "nope.csv"), "--contacts", env.contacts)
	assert.Error(t, err)
	assert.Contains(t, out, "failed")
}

func TestCLI_UnknownCandidate(t *testing.T) {
	env := setupCLITestEnv(t)
	_, err := env.run(t, "candidates", "show", "missing")
	assert.ErrorContains(t, err, "not found")
}

func TestCLI_Clusters(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "candidates", "clusters")
	require.NoError(t, err, out)
	assert.Contains(t, out, "No clusters")

	contacts := `[
		{"contactid": "c-1", "firstname": "Ann", "lastname": "Lee", "emailaddress1": "ann@lee.io", "companyname": "Initech"},
		{"contactid": "c-9", "firstname": "Ann", "lastname": "Lee", "emailaddress1": "ann@lee.io", "companyname": "Initech"}
	]`
	require.NoError(t, os.WriteFile(env.contacts, []byte(contacts), 0o644))
	_, err = env.run(t, "run", "--profiles", env.profiles, "--contacts", env.contacts)
	require.NoError(t, err)

	out, err = env.run(t, "candidates", "clusters")
	require.NoError(t, err, out)
	assert.Contains(t, out, "https://www.linkedin.com/in/annlee")
	assert.Contains(t, out, "c-1")
	assert.Contains(t, out, "c-9")
}
