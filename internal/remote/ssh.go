// Package remote 封装到部署服务器的 SSH/SFTP 会话：建立连接、主机密钥校验，
// 以及上传所需的 Stat/Mkdir/Put 三个远程文件系统原语。
package remote

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

var (
	ErrSessionClosed = errors.New("session already closed")
	ErrNoKnownHosts  = errors.New("known_hosts file not found")
)

const (
	DefaultPort        = 22
	DefaultDialTimeout = 10 * time.Second
)

// DialOptions 建立会话所需的连接参数
type DialOptions struct {
	Host     string
	Port     int
	User     string
	Password string

	KnownHostsFile        string // 主机密钥校验文件
	InsecureIgnoreHostKey bool   // 跳过主机密钥校验，仅用于测试或受信网络
	Timeout               time.Duration
}

func (o *DialOptions) withDefaults() {
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultDialTimeout
	}
}

// Addr 返回 host:port 形式的地址（IPv6 自动加方括号）
func (o DialOptions) Addr() string {
	port := o.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(o.Host, strconv.Itoa(port))
}

// HostKeyCallback 根据配置返回主机密钥校验回调。
// insecure 为 true 时不校验；否则必须能读取 known_hosts 文件。
func HostKeyCallback(knownHostsFile string, insecure bool) (ssh.HostKeyCallback, error) {
	if insecure {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if knownHostsFile == "" {
		return nil, ErrNoKnownHosts
	}
	if _, err := os.Stat(knownHostsFile); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s（可使用 --insecure-ignore-host-key 跳过校验）", ErrNoKnownHosts, knownHostsFile)
		}
		return nil, fmt.Errorf("读取 known_hosts 失败: %w", err)
	}

	callback, err := knownhosts.New(knownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("解析 known_hosts 失败: %w", err)
	}
	return callback, nil
}

// passwordAuth 同时提供 password 和 keyboard-interactive 两种认证方式，
// 部分服务器只开放后者。
func passwordAuth(password string) []ssh.AuthMethod {
	return []ssh.AuthMethod{
		ssh.Password(password),
		ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
			answers := make([]string, len(questions))
			for i := range answers {
				answers[i] = password
			}
			return answers, nil
		}),
	}
}
