package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	CredentialsFileName = "credentials"
)

var ErrCredentialsNotFound = errors.New("凭证文件不存在，可运行 sftpdeploy init 创建")

// Credentials 服务器登录凭证，从 ~/.sftpdeploy/credentials 文件加载
type Credentials struct {
	Host     string
	Port     int
	Username string
	Password string
}

// DefaultCredentialsPath 返回默认凭证文件路径（~/.sftpdeploy/credentials）
func DefaultCredentialsPath() (string, error) {
	stateDir, err := GetStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(stateDir, CredentialsFileName), nil
}

// LoadCredentialsFrom 从指定路径加载凭证文件。
// 文件格式为 key=value（只取第一个 = 分割），# 开头为注释。
func LoadCredentialsFrom(path string) (*Credentials, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, path)
		}
		return nil, fmt.Errorf("读取凭证文件失败: %w", err)
	}
	defer f.Close()

	kv := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		kv[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取凭证文件失败: %w", err)
	}

	cred := &Credentials{
		Host:     kv["host"],
		Username: kv["username"],
		Password: kv["password"],
	}
	if v := kv["port"]; v != "" {
		port, err := parsePort(v)
		if err != nil {
			return nil, fmt.Errorf("凭证文件 port 无效: %w", err)
		}
		cred.Port = port
	}

	return cred, nil
}

// SaveCredentialsTo 将凭证保存到指定路径，权限 600
func SaveCredentialsTo(path string, cred *Credentials) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "host=%s\n", cred.Host)
	if cred.Port != 0 {
		fmt.Fprintf(&b, "port=%s\n", strconv.Itoa(cred.Port))
	}
	fmt.Fprintf(&b, "username=%s\n", cred.Username)
	fmt.Fprintf(&b, "password=%s\n", cred.Password)

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("保存凭证文件失败: %w", err)
	}
	// WriteFile 不会收紧已存在文件的权限
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("设置凭证文件权限失败: %w", err)
	}
	return nil
}
