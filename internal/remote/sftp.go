package remote

import (
	"os"
)

// FileSystem 抽象 SFTP 通道上的远程文件系统操作，支持 mock 测试
type FileSystem interface {
	// Stat 查询远程路径元数据，路径不存在时返回错误
	Stat(path string) (os.FileInfo, error)
	// Mkdir 创建单级远程目录（父目录必须已存在）
	Mkdir(path string) error
	// Put 将本地文件内容写入远程路径，返回写入字节数
	Put(localPath, remotePath string) (int64, error)
}

// Session 一次已认证的远程连接：SSH 传输层 + 其上的 SFTP 通道。
// Close 依次关闭通道和传输层，每层只关闭一次。
type Session interface {
	FileSystem
	Close() error
}
