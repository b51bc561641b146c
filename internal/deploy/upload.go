package deploy

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/kr/fs"

	"github.com/hwuu/sftpdeploy/internal/remote"
)

// Uploader 将本地目录树镜像到远程目录。
// 单个目录创建或文件上传失败只输出提示，不中断整棵树的遍历。
type Uploader struct {
	FS      remote.FileSystem
	Output  io.Writer
	Logger  *log.Logger
	Exclude []string // 按文件名匹配的 glob 模式
}

func (u *Uploader) printf(format string, args ...interface{}) {
	fmt.Fprintf(u.Output, format, args...)
}

func (u *Uploader) logger() *log.Logger {
	if u.Logger == nil {
		u.Logger = log.New(io.Discard)
	}
	return u.Logger
}

// EnsureRemoteDir 类似 mkdir -p：按从根到叶的顺序检查路径的每一级前缀，
// Stat 失败即视为不存在并尝试创建该级目录。创建失败只告警并继续处理下一级，
// 之后上传到缺失目录的文件会各自报错。
func (u *Uploader) EnsureRemoteDir(remotePath string) {
	current := ""
	if strings.HasPrefix(remotePath, "/") {
		current = "/"
	}

	for _, segment := range strings.Split(remotePath, "/") {
		if segment == "" {
			continue // 开头、结尾或连续的 /
		}
		if current == "" || current == "/" {
			current += segment
		} else {
			current += "/" + segment
		}

		_, err := u.FS.Stat(current)
		if err == nil {
			u.logger().Debug("remote dir exists", "path", current)
			continue
		}
		u.logger().Debug("remote dir missing", "path", current, "err", err)

		if err := u.FS.Mkdir(current); err != nil {
			u.printf("  ⚠ 无法创建远程目录 %s（请检查权限或父目录）: %v\n", current, err)
			continue
		}
		u.printf("  ✓ 创建远程目录 %s\n", current)
	}
}

// UploadTree 确保 remoteDir 存在后深度优先遍历 localDir：
// 普通文件上传到 remoteDir + "/" + 相对路径，子目录先确保远程目录存在再处理其内容，
// 符号链接、设备文件等其他类型一律跳过（不上传、不跟随）。
//
// 遍历使用显式栈（kr/fs.Walker），不受目录深度影响；同一目录内按文件名排序。
// 只有 ctx 被取消时返回错误，单项失败不计入返回值。
func (u *Uploader) UploadTree(ctx context.Context, localDir, remoteDir string) error {
	root := localDir
	if resolved, err := filepath.EvalSymlinks(localDir); err == nil {
		root = resolved
	}
	base := strings.TrimRight(remoteDir, "/")

	walker := fs.Walk(root)
	for walker.Step() {
		if err := ctx.Err(); err != nil {
			return err
		}

		localPath := walker.Path()
		rel, err := filepath.Rel(root, localPath)
		if err != nil {
			u.printf("  ❌ 无法解析本地路径 %s: %v\n", localPath, err)
			continue
		}
		rel = filepath.ToSlash(rel)

		if err := walker.Err(); err != nil {
			u.printf("  ❌ 无法读取本地路径 %s: %v\n", rel, err)
			continue
		}

		remotePath := remoteDir
		if rel != "." {
			remotePath = base + "/" + rel
		}

		info := walker.Stat()
		if rel != "." && u.excluded(info.Name()) {
			u.logger().Debug("excluded", "path", rel)
			if info.IsDir() {
				walker.SkipDir()
			}
			continue
		}

		switch mode := info.Mode(); {
		case mode.IsDir():
			u.EnsureRemoteDir(remotePath)
		case mode.IsRegular():
			u.putFile(localPath, remotePath, rel, info.Size())
		default:
			u.printf("  ⚠ 跳过 %s（%s，不是普通文件或目录）\n", rel, describeMode(mode))
		}
	}

	return nil
}

func (u *Uploader) putFile(localPath, remotePath, rel string, size int64) {
	u.printf("  ↑ %s (%s)\n", rel, humanize.Bytes(uint64(size)))

	n, err := u.FS.Put(localPath, remotePath)
	if err != nil {
		u.printf("  ❌ 上传 %s 失败: %v\n", rel, err)
		return
	}
	u.logger().Debug("uploaded", "local", localPath, "remote", remotePath, "bytes", n)
}

func (u *Uploader) excluded(name string) bool {
	for _, pattern := range u.Exclude {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

// describeMode 返回非普通文件的类型描述
func describeMode(mode os.FileMode) string {
	switch {
	case mode&os.ModeSymlink != 0:
		return "符号链接"
	case mode&os.ModeDevice != 0:
		return "设备文件"
	case mode&os.ModeNamedPipe != 0:
		return "命名管道"
	case mode&os.ModeSocket != 0:
		return "socket"
	default:
		return "未知类型"
	}
}
