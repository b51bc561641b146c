package remote

// ssh_impl.go 提供 Session 的真实实现：TCP → SSH 握手 → SFTP 子系统。

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// realSession 真实会话实现，持有 SFTP 通道和底层 SSH 传输
type realSession struct {
	sftpClient *sftp.Client
	transport  io.Closer

	closeOnce sync.Once
	closeErr  error
}

// Dial 建立一次完整会话：TCP 连接、SSH 密码认证、打开 SFTP 通道。
// 任一步骤失败都会释放已建立的资源，不做重试。
func Dial(ctx context.Context, opts DialOptions) (Session, error) {
	opts.withDefaults()

	hostKeyCallback, err := HostKeyCallback(opts.KnownHostsFile, opts.InsecureIgnoreHostKey)
	if err != nil {
		return nil, err
	}

	config := &ssh.ClientConfig{
		User:            opts.User,
		Auth:            passwordAuth(opts.Password),
		HostKeyCallback: hostKeyCallback,
		Timeout:         opts.Timeout,
	}

	addr := opts.Addr()
	dialer := &net.Dialer{Timeout: opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("SSH 连接失败 (%s): %w", addr, err)
	}

	// 握手阶段同样受超时约束，完成后清除 deadline
	_ = conn.SetDeadline(time.Now().Add(opts.Timeout))
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("SSH 认证失败 (%s@%s): %w", opts.User, addr, err)
	}
	_ = conn.SetDeadline(time.Time{})
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	sftpConn, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("SFTP 连接失败: %w", err)
	}

	return NewSession(sftpConn, sshClient), nil
}

// NewSession 用已打开的 SFTP 通道和传输层组装 Session
func NewSession(sftpClient *sftp.Client, transport io.Closer) Session {
	return &realSession{
		sftpClient: sftpClient,
		transport:  transport,
	}
}

func (s *realSession) Stat(path string) (os.FileInfo, error) {
	return s.sftpClient.Stat(path)
}

func (s *realSession) Mkdir(path string) error {
	return s.sftpClient.Mkdir(path)
}

// Put 上传本地文件，远程文件已存在时截断覆盖
func (s *realSession) Put(localPath, remotePath string) (int64, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("打开本地文件 %s 失败: %w", localPath, err)
	}
	defer src.Close()

	dst, err := s.sftpClient.Create(remotePath)
	if err != nil {
		return 0, fmt.Errorf("创建远程文件 %s 失败: %w", remotePath, err)
	}

	n, err := dst.ReadFrom(src)
	if err != nil {
		dst.Close()
		return n, fmt.Errorf("写入远程文件 %s 失败: %w", remotePath, err)
	}
	if err := dst.Close(); err != nil {
		return n, fmt.Errorf("关闭远程文件 %s 失败: %w", remotePath, err)
	}

	return n, nil
}

// Close 先关闭 SFTP 通道再关闭 SSH 传输；重复调用返回 ErrSessionClosed
func (s *realSession) Close() error {
	first := false
	s.closeOnce.Do(func() {
		first = true
		s.closeErr = errors.Join(s.sftpClient.Close(), s.transport.Close())
	})
	if !first {
		return ErrSessionClosed
	}
	return s.closeErr
}
