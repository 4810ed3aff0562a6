package provisioner

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshul/calcshell/internal/mode"
)

// bundle lays out a fake application payload with a template and two sources.
func bundle(t *testing.T) Layout {
	t.Helper()
	root := t.TempDir()
	l := Layout{
		AppRoot:      filepath.Join(root, "app"),
		ResourcesDir: filepath.Join(root, "resources"),
		UserDataDir:  filepath.Join(root, "userdata"),
	}

	writeFile(t, filepath.Join(l.ResourcesDir, "sqlite-template", DataFileName), "template-bytes")
	writeFile(t, filepath.Join(l.AppRoot, "backend", "main.py"), "print('main')\n")
	writeFile(t, filepath.Join(l.AppRoot, "backend", "routes.py"), "routes = []\n")
	return l
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestResolveDevelopment(t *testing.T) {
	l := bundle(t)
	r := NewResolver(l)

	paths, err := r.Resolve(mode.Development)
	require.NoError(t, err)

	assert.Equal(t, mode.Development, paths.Mode)
	assert.Equal(t, filepath.Join(l.AppRoot, "backend"), paths.DataServiceDir)
	assert.Equal(t, filepath.Join(l.AppRoot, "frontend"), paths.UIServiceDir)
	assert.Empty(t, paths.UIStandaloneDir)
	assert.DirExists(t, paths.LogDir)
	assert.DirExists(t, paths.TempDir)

	// Development never touches the per-user tree.
	assert.NoDirExists(t, l.UserDataDir)
}

// Scenario A: a fresh install gets a byte-identical copy of the template.
func TestResolvePackagedFreshInstall(t *testing.T) {
	l := bundle(t)
	r := NewResolver(l)

	paths, err := r.Resolve(mode.Packaged)
	require.NoError(t, err)

	for _, dir := range []string{paths.DataServiceDir, paths.LogDir, paths.TempDir, paths.UICacheDir} {
		assert.DirExists(t, dir)
	}
	assert.Equal(t, readFile(t, paths.TemplateFile), readFile(t, paths.DataFile))
	assert.Equal(t, "print('main')\n", readFile(t, filepath.Join(paths.DataServiceDir, "main.py")))
	assert.Equal(t, "routes = []\n", readFile(t, filepath.Join(paths.DataServiceDir, "routes.py")))

	// Missing bundled files are skipped, not fabricated.
	assert.NoFileExists(t, filepath.Join(paths.DataServiceDir, "models.py"))
}

// Scenario B: user data survives provisioning.
func TestResolvePackagedKeepsUserData(t *testing.T) {
	l := bundle(t)
	r := NewResolver(l)

	userDB := filepath.Join(l.UserDataDir, "backend", DataFileName)
	writeFile(t, userDB, "user-modified")
	userMain := filepath.Join(l.UserDataDir, "backend", "main.py")
	writeFile(t, userMain, "patched locally")

	_, err := r.Resolve(mode.Packaged)
	require.NoError(t, err)

	assert.Equal(t, "user-modified", readFile(t, userDB))
	assert.Equal(t, "patched locally", readFile(t, userMain))
	// Files absent from the writable tree are still seeded individually.
	assert.Equal(t, "routes = []\n", readFile(t, filepath.Join(l.UserDataDir, "backend", "routes.py")))
}

func TestResolveTwiceIsStable(t *testing.T) {
	for _, m := range []mode.Mode{mode.Development, mode.Packaged} {
		t.Run(m.String(), func(t *testing.T) {
			l := bundle(t)
			r := NewResolver(l)

			first, err := r.Resolve(m)
			require.NoError(t, err)

			if m == mode.Packaged {
				// Change the template after the first run; the seeded copy must not follow.
				writeFile(t, first.TemplateFile, "template-v2")
			}

			second, err := r.Resolve(m)
			require.NoError(t, err)
			assert.Equal(t, first, second)

			if m == mode.Packaged {
				assert.Equal(t, "template-bytes", readFile(t, second.DataFile))
				entries, err := os.ReadDir(second.DataServiceDir)
				require.NoError(t, err)
				names := make([]string, 0, len(entries))
				for _, e := range entries {
					names = append(names, e.Name())
				}
				assert.ElementsMatch(t, []string{DataFileName, "main.py", "routes.py"}, names)
			}
		})
	}
}

func TestResolvePackagedWithoutTemplate(t *testing.T) {
	l := bundle(t)
	require.NoError(t, os.RemoveAll(filepath.Join(l.ResourcesDir, "sqlite-template")))

	paths, err := NewResolver(l).Resolve(mode.Packaged)
	require.NoError(t, err)
	assert.NoFileExists(t, paths.DataFile)
}

func TestResolveStandaloneFallback(t *testing.T) {
	l := bundle(t)
	paths, err := NewResolver(l).Paths(mode.Packaged)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(l.AppRoot, "frontend", ".next", "standalone"), paths.UIStandaloneDir)

	unpacked := filepath.Join(l.ResourcesDir, "app.asar.unpacked", "frontend", ".next", "standalone")
	require.NoError(t, os.MkdirAll(unpacked, 0o755))
	paths, err = NewResolver(l).Paths(mode.Packaged)
	require.NoError(t, err)
	assert.Equal(t, unpacked, paths.UIStandaloneDir)
}

func TestResolveUnwritableIsProvisioningError(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced here")
	}
	l := bundle(t)
	require.NoError(t, os.MkdirAll(l.UserDataDir, 0o755))
	require.NoError(t, os.Chmod(l.UserDataDir, 0o500))
	t.Cleanup(func() { os.Chmod(l.UserDataDir, 0o755) })

	_, err := NewResolver(l).Resolve(mode.Packaged)
	require.Error(t, err)
	assert.True(t, IsProvisioningError(err))
}

func TestWithBundledFiles(t *testing.T) {
	l := bundle(t)
	paths, err := NewResolver(l, WithBundledFiles([]string{"routes.py"})).Resolve(mode.Packaged)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(paths.DataServiceDir, "routes.py"))
	assert.NoFileExists(t, filepath.Join(paths.DataServiceDir, "main.py"))
}

func TestResolveUnknownMode(t *testing.T) {
	_, err := NewResolver(bundle(t)).Resolve(mode.Mode(0))
	require.Error(t, err)
}
