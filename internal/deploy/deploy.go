// Package deploy 实现目录镜像上传：建立会话、校验本地目录、遍历上传、释放会话。
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/hwuu/sftpdeploy/internal/config"
	"github.com/hwuu/sftpdeploy/internal/remote"
)

var (
	ErrLocalRootNotFound = errors.New("local directory not found")
	ErrLocalRootNotDir   = errors.New("local path is not a directory")
)

// SessionFactory 建立远程会话的工厂函数
type SessionFactory func(ctx context.Context, opts remote.DialOptions) (remote.Session, error)

// Deployer 上传编排器，通过依赖注入支持测试
type Deployer struct {
	Dial   SessionFactory
	Output io.Writer
	Logger *log.Logger
}

func (d *Deployer) printf(format string, args ...interface{}) {
	fmt.Fprintf(d.Output, format, args...)
}

func (d *Deployer) logger() *log.Logger {
	if d.Logger == nil {
		d.Logger = log.New(io.Discard)
	}
	return d.Logger
}

// Run 执行一次完整上传：连接 → 检查本地目录 → 上传目录树。
// 会话一旦建立，无论成功、失败还是中途 panic，都会在返回前关闭且只关闭一次。
// 连接失败和本地目录缺失会返回错误；单个文件或目录失败只输出提示。
func (d *Deployer) Run(ctx context.Context, cfg *config.Config) error {
	opts := cfg.DialOptions()

	d.printf("[1/3] 连接服务器 %s...\n", opts.Addr())
	session, err := d.Dial(ctx, opts)
	if err != nil {
		d.printf("  ❌ 连接失败: %v\n", err)
		d.printf("连接已关闭\n")
		return fmt.Errorf("连接服务器失败: %w", err)
	}
	defer d.closeSession(session)
	d.printf("  ✓ 已连接 (%s@%s)\n", opts.User, opts.Addr())

	d.printf("\n[2/3] 检查本地目录...\n")
	if err := checkLocalRoot(cfg.LocalRoot); err != nil {
		d.printf("  ❌ %v\n", err)
		return err
	}
	d.printf("  ✓ 本地目录: %s\n", cfg.LocalRoot)

	d.printf("\n[3/3] 上传 %s → %s:\n", cfg.LocalRoot, cfg.RemoteRoot)
	uploader := &Uploader{
		FS:      session,
		Output:  d.Output,
		Logger:  d.logger(),
		Exclude: cfg.Exclude,
	}
	if err := uploader.UploadTree(ctx, cfg.LocalRoot, cfg.RemoteRoot); err != nil {
		d.printf("  ❌ 上传已中断: %v\n", err)
		return fmt.Errorf("上传已中断: %w", err)
	}

	d.printf("\n✅ 部署完成！\n")
	return nil
}

func (d *Deployer) closeSession(session remote.Session) {
	if err := session.Close(); err != nil {
		d.logger().Warn("close session", "err", err)
	}
	d.printf("连接已关闭\n")
}

// checkLocalRoot 确认本地源目录存在且是目录
func checkLocalRoot(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrLocalRootNotFound, path)
		}
		return fmt.Errorf("读取本地目录 %s 失败: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrLocalRootNotDir, path)
	}
	return nil
}
