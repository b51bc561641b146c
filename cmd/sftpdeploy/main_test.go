package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwuu/sftpdeploy/internal/config"
	"github.com/hwuu/sftpdeploy/internal/remote"
)

// stubSession 只记录远程路径的最小会话实现
type stubSession struct {
	dirs   map[string]bool
	puts   []string
	closed int
}

func newStubSession() *stubSession {
	return &stubSession{dirs: make(map[string]bool)}
}

func (s *stubSession) Stat(p string) (os.FileInfo, error) {
	if s.dirs[p] {
		return os.Stat(os.TempDir())
	}
	return nil, os.ErrNotExist
}

func (s *stubSession) Mkdir(p string) error {
	s.dirs[p] = true
	return nil
}

func (s *stubSession) Put(localPath, remotePath string) (int64, error) {
	if !s.dirs[path.Dir(remotePath)] {
		return 0, os.ErrNotExist
	}
	s.puts = append(s.puts, remotePath)
	return 0, nil
}

func (s *stubSession) Close() error {
	s.closed++
	return nil
}

type uploadHarness struct {
	session *stubSession
	dialed  []remote.DialOptions
	dialErr error
	env     map[string]string
}

func (h *uploadHarness) dial(ctx context.Context, opts remote.DialOptions) (remote.Session, error) {
	h.dialed = append(h.dialed, opts)
	if h.dialErr != nil {
		return nil, h.dialErr
	}
	return h.session, nil
}

func (h *uploadHarness) sources(t *testing.T) config.Sources {
	return config.Sources{
		Getenv:          func(key string) string { return h.env[key] },
		CredentialsPath: filepath.Join(t.TempDir(), "credentials"),
	}
}

func newUploadHarness() *uploadHarness {
	return &uploadHarness{
		session: newStubSession(),
		env:     map[string]string{},
	}
}

func localTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.onnx"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.onnx"), []byte("b"), 0644))
	return root
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "sftpdeploy dev")
	assert.Contains(t, out.String(), "commit: none")
}

func TestRootCommandListsSubcommands(t *testing.T) {
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())
	for _, name := range []string{"upload", "init", "version"} {
		assert.Contains(t, out.String(), name)
	}
}

func TestUploadCommand_UsesFlagsAndEnv(t *testing.T) {
	h := newUploadHarness()
	h.env[config.EnvPassword] = "s3cret"
	root := localTree(t)

	cmd := newUploadCmd(h.dial, h.sources(t))
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{
		"--host", "example.com", "-p", "2222", "-u", "deploy",
		"--local", root, "--remote", "/srv/models",
		"--insecure-ignore-host-key",
	})

	require.NoError(t, cmd.Execute())

	require.Len(t, h.dialed, 1)
	opts := h.dialed[0]
	assert.Equal(t, "example.com", opts.Host)
	assert.Equal(t, 2222, opts.Port)
	assert.Equal(t, "deploy", opts.User)
	assert.Equal(t, "s3cret", opts.Password)
	assert.True(t, opts.InsecureIgnoreHostKey)
	assert.Equal(t, config.DefaultTimeout, opts.Timeout)

	assert.ElementsMatch(t, []string{"/srv/models/a.onnx", "/srv/models/sub/b.onnx"}, h.session.puts)
	assert.Equal(t, 1, h.session.closed)
	assert.Contains(t, out.String(), "✅ 部署完成！")
}

func TestUploadCommand_PromptsForMissingPassword(t *testing.T) {
	h := newUploadHarness()
	root := localTree(t)

	cmd := newUploadCmd(h.dial, h.sources(t))
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("typed-password\n"))
	cmd.SetArgs([]string{"--host", "example.com", "-u", "deploy", "--local", root, "--remote", "R"})

	require.NoError(t, cmd.Execute())

	require.Len(t, h.dialed, 1)
	assert.Equal(t, "typed-password", h.dialed[0].Password)
	assert.Contains(t, out.String(), "deploy@example.com 的密码: ")
}

func TestUploadCommand_ReadsCredentialsFile(t *testing.T) {
	h := newUploadHarness()
	root := localTree(t)
	src := h.sources(t)
	require.NoError(t, config.SaveCredentialsTo(src.CredentialsPath, &config.Credentials{
		Host:     "files.example.com",
		Port:     2200,
		Username: "ci",
		Password: "from-file",
	}))

	cmd := newUploadCmd(h.dial, src)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--local", root, "--remote", "R"})

	require.NoError(t, cmd.Execute())

	require.Len(t, h.dialed, 1)
	assert.Equal(t, "files.example.com", h.dialed[0].Host)
	assert.Equal(t, 2200, h.dialed[0].Port)
	assert.Equal(t, "ci", h.dialed[0].User)
	assert.Equal(t, "from-file", h.dialed[0].Password)
}

func TestUploadCommand_CredentialsFileForOtherHostNotSent(t *testing.T) {
	h := newUploadHarness()
	root := localTree(t)
	src := h.sources(t)
	require.NoError(t, config.SaveCredentialsTo(src.CredentialsPath, &config.Credentials{
		Host:     "files.example.com",
		Username: "ci",
		Password: "from-file",
	}))

	cmd := newUploadCmd(h.dial, src)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("typed-password\n"))
	cmd.SetArgs([]string{"--host", "other.example.net", "-u", "deploy", "--local", root, "--remote", "R"})

	require.NoError(t, cmd.Execute())

	require.Len(t, h.dialed, 1)
	assert.Equal(t, "other.example.net", h.dialed[0].Host)
	assert.Equal(t, "typed-password", h.dialed[0].Password)
	assert.Contains(t, out.String(), "deploy@other.example.net 的密码: ")
}

func TestUploadCommand_MissingHost(t *testing.T) {
	h := newUploadHarness()

	cmd := newUploadCmd(h.dial, h.sources(t))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"-u", "deploy"})

	err := cmd.Execute()
	assert.ErrorIs(t, err, config.ErrMissingHost)
	assert.Empty(t, h.dialed)
}

func TestUploadCommand_DialFailureReturnsError(t *testing.T) {
	h := newUploadHarness()
	h.env[config.EnvPassword] = "wrong"
	h.dialErr = errors.New("ssh: handshake failed")

	cmd := newUploadCmd(h.dial, h.sources(t))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--host", "example.com", "-u", "deploy", "--local", localTree(t)})

	err := cmd.Execute()
	assert.ErrorIs(t, err, h.dialErr)
	assert.Zero(t, h.session.closed)
}

func TestUploadCommand_RejectsPositionalArgs(t *testing.T) {
	h := newUploadHarness()

	cmd := newUploadCmd(h.dial, h.sources(t))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"extra"})

	assert.Error(t, cmd.Execute())
	assert.Empty(t, h.dialed)
}

func runInit(t *testing.T, path, input string) (string, error) {
	t.Helper()
	cmd := newInitCmd(func() (string, error) { return path, nil })
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(input))
	cmd.SetArgs(nil)
	err := cmd.Execute()
	return out.String(), err
}

func TestInitCommand_SavesCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".sftpdeploy", "credentials")

	out, err := runInit(t, path, "example.com\n2222\ndeploy\ns3cret\n")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 凭证已保存到 "+path)

	cred, err := config.LoadCredentialsFrom(path)
	require.NoError(t, err)
	assert.Equal(t, &config.Credentials{
		Host:     "example.com",
		Port:     2222,
		Username: "deploy",
		Password: "s3cret",
	}, cred)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestInitCommand_DefaultPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials")

	_, err := runInit(t, path, "example.com\n\ndeploy\ns3cret\n")
	require.NoError(t, err)

	cred, err := config.LoadCredentialsFrom(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPort, cred.Port)
}

func TestInitCommand_DeclineOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials")
	require.NoError(t, os.WriteFile(path, []byte("host=old.example.com\n"), 0600))

	out, err := runInit(t, path, "n\n")
	require.NoError(t, err)
	assert.Contains(t, out, "已取消")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "host=old.example.com\n", string(data))
}

func TestInitCommand_ConfirmOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials")
	require.NoError(t, os.WriteFile(path, []byte("host=old.example.com\n"), 0600))

	_, err := runInit(t, path, "y\nnew.example.com\n22\ndeploy\npw\n")
	require.NoError(t, err)

	cred, err := config.LoadCredentialsFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "new.example.com", cred.Host)
}

func TestInitCommand_InvalidInput(t *testing.T) {
	t.Run("empty host", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "credentials")
		_, err := runInit(t, path, "\n")
		assert.ErrorIs(t, err, config.ErrMissingHost)
		assert.NoFileExists(t, path)
	})

	t.Run("invalid port", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "credentials")
		_, err := runInit(t, path, "example.com\n99999\n")
		assert.ErrorIs(t, err, config.ErrInvalidPort)
		assert.NoFileExists(t, path)
	})
}
