// Package config 管理 sftpdeploy 的运行配置：命令行参数、环境变量、
// ~/.sftpdeploy/credentials 凭证文件和 ~/.ssh/config 主机别名按优先级合并。
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hwuu/sftpdeploy/internal/remote"
)

const (
	StateDirName = ".sftpdeploy" // 配置目录，位于用户 home 下

	DefaultPort       = 22
	DefaultLocalRoot  = "models/onnx"
	DefaultRemoteRoot = "test.1ink.us/the-jokesters/models/supertonic"
	DefaultTimeout    = 10 * time.Second

	EnvHost     = "SFTPDEPLOY_HOST"
	EnvPort     = "SFTPDEPLOY_PORT"
	EnvUser     = "SFTPDEPLOY_USER"
	EnvPassword = "SFTPDEPLOY_PASSWORD"
)

var (
	ErrMissingHost = errors.New("未指定服务器地址（--host、SFTPDEPLOY_HOST 或 credentials 文件）")
	ErrMissingUser = errors.New("未指定用户名（--user、SFTPDEPLOY_USER 或 credentials 文件）")
	ErrInvalidPort = errors.New("invalid port")
)

// Config 一次上传运行所需的全部参数
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	LocalRoot  string // 本地源目录
	RemoteRoot string // 远程目标目录，/ 分隔

	KnownHostsFile        string
	InsecureIgnoreHostKey bool
	Timeout               time.Duration

	Exclude []string // 按文件名匹配的 glob 模式，命中的文件/目录不上传
}

// Sources 配置来源。字段为空表示跳过该来源（测试用）
type Sources struct {
	Getenv          func(string) string
	CredentialsPath string
	SSHConfigPath   string
}

// DefaultSources 返回默认来源：进程环境变量、~/.sftpdeploy/credentials、~/.ssh/config
func DefaultSources() Sources {
	src := Sources{Getenv: os.Getenv}
	if path, err := DefaultCredentialsPath(); err == nil {
		src.CredentialsPath = path
	}
	if home, err := os.UserHomeDir(); err == nil {
		src.SSHConfigPath = filepath.Join(home, ".ssh", "config")
	}
	return src
}

// Load 以 base（通常来自命令行参数）为最高优先级，依次用环境变量、凭证文件、
// ssh config 和默认值填充空字段，最后校验。base 本身不会被修改。
func Load(base *Config, src Sources) (*Config, error) {
	cfg := *base
	cfg.Exclude = append([]string(nil), base.Exclude...)

	if src.Getenv != nil {
		if err := cfg.ApplyEnv(src.Getenv); err != nil {
			return nil, err
		}
	}

	if src.CredentialsPath != "" {
		cred, err := LoadCredentialsFrom(src.CredentialsPath)
		switch {
		case err == nil:
			cfg.ApplyCredentials(cred)
		case !errors.Is(err, ErrCredentialsNotFound):
			return nil, err
		}
	}

	if src.SSHConfigPath != "" {
		if err := cfg.ApplySSHConfigFile(src.SSHConfigPath); err != nil {
			return nil, err
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv 用 SFTPDEPLOY_* 环境变量填充空字段
func (c *Config) ApplyEnv(getenv func(string) string) error {
	fillString(&c.Host, getenv(EnvHost))
	fillString(&c.Username, getenv(EnvUser))
	fillString(&c.Password, getenv(EnvPassword))

	if v := getenv(EnvPort); v != "" && c.Port == 0 {
		port, err := parsePort(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		c.Port = port
	}
	return nil
}

// ApplyCredentials 用凭证文件内容填充空字段。
// 已指定的主机与文件中的 host 不一致时整个文件不生效（在 ssh config 别名解析之前比较）。
func (c *Config) ApplyCredentials(cred *Credentials) {
	if c.Host != "" && !strings.EqualFold(c.Host, cred.Host) {
		return
	}
	fillString(&c.Host, cred.Host)
	fillString(&c.Username, cred.Username)
	fillString(&c.Password, cred.Password)
	if c.Port == 0 {
		c.Port = cred.Port
	}
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	fillString(&c.LocalRoot, DefaultLocalRoot)
	fillString(&c.RemoteRoot, DefaultRemoteRoot)
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.KnownHostsFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.KnownHostsFile = filepath.Join(home, ".ssh", "known_hosts")
		}
	}
}

// Validate 检查必填字段
func (c *Config) Validate() error {
	if c.Host == "" {
		return ErrMissingHost
	}
	if c.Username == "" {
		return ErrMissingUser
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if c.LocalRoot == "" {
		return errors.New("本地目录不能为空")
	}
	if c.RemoteRoot == "" {
		return errors.New("远程目录不能为空")
	}
	for _, pattern := range c.Exclude {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("无效的排除模式 %q: %w", pattern, err)
		}
	}
	return nil
}

// DialOptions 转换为远程会话的连接参数
func (c *Config) DialOptions() remote.DialOptions {
	return remote.DialOptions{
		Host:                  c.Host,
		Port:                  c.Port,
		User:                  c.Username,
		Password:              c.Password,
		KnownHostsFile:        c.KnownHostsFile,
		InsecureIgnoreHostKey: c.InsecureIgnoreHostKey,
		Timeout:               c.Timeout,
	}
}

// GetStateDir 返回配置目录路径（~/.sftpdeploy/）
func GetStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, StateDirName), nil
}

// expandHome 将 ~/ 开头的路径展开为 home 下的绝对路径
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPort, s)
	}
	return port, nil
}

func fillString(dst *string, value string) {
	if *dst == "" {
		*dst = value
	}
}
