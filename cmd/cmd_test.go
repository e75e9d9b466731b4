package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/dutysched/auth"
	"github.com/kilianp07/dutysched/core/feed"
)

const manifest = `drivers:
  - id: D1
    name: Alice
vehicles:
  - id: V1
    identifier: AB-123-CD
routes:
  - id: R1
    name: North loop
    stops: [depot, market]
duties:
  - kind: linked
    driver_id: D1
    vehicle_id: V1
    route_id: R1
    window:
      start: 2025-03-10T08:00:00Z
      end: 2025-03-10T10:00:00Z
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(data), 0o600))
	return p
}

func TestProvisionSnapshotPlan(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", "storage:\n  backend: sqlite\n  path: "+filepath.Join(dir, "fleet.db")+"\n")
	fleet := writeFile(t, dir, "fleet.yaml", manifest)
	noEnv := filepath.Join(dir, "missing.env")

	out, err := execute(t, "provision", "-c", cfg, "--env-file", noEnv, "-f", fleet)
	require.NoError(t, err)
	assert.Contains(t, out, "drivers=1 vehicles=1 routes=1 duties=1")

	out, err = execute(t, "snapshot", "-c", cfg, "--env-file", noEnv)
	require.NoError(t, err)
	var snap feed.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	require.Len(t, snap.Duties, 1)
	assert.Equal(t, "D1", snap.Duties[0].DriverID)

	out, err = execute(t, "plan", "-c", cfg, "--env-file", noEnv, "--date", "2025-03-10", "--format", "csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "V1,"))
}

func TestToken(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", "http:\n  auth:\n    jwt_secret: s3cret\n")
	out, err := execute(t, "token", "-c", cfg, "--env-file", filepath.Join(dir, "missing.env"), "--role", auth.RoleDispatcher)
	require.NoError(t, err)
	claims, err := auth.Verify(auth.Conf{JWTSecret: "s3cret"}, strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, auth.RoleDispatcher, claims.Role)
}

func TestEnvFileOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	env := writeFile(t, dir, "test.env", "K_HTTP__AUTH__JWT_SECRET=from-env\n")
	t.Cleanup(func() { os.Unsetenv("K_HTTP__AUTH__JWT_SECRET") })
	out, err := execute(t, "token", "-c", "", "--env-file", env, "--role", auth.RoleViewer)
	require.NoError(t, err)
	_, err = auth.Verify(auth.Conf{JWTSecret: "from-env"}, strings.TrimSpace(out))
	assert.NoError(t, err)
}
