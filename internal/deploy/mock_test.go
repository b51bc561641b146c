package deploy_test

import (
	"errors"
	"os"
	"path"
	"strings"
	"time"
)

// memFS 内存中的远程文件系统，记录每一次 Stat/Mkdir/Put 调用
type memFS struct {
	dirs  map[string]bool
	files map[string]string // 远程路径 → 本地路径
	ops   []string

	MkdirFunc func(path string) error
	PutFunc   func(localPath, remotePath string) (int64, error)
}

func newMemFS(existing ...string) *memFS {
	m := &memFS{
		dirs:  make(map[string]bool),
		files: make(map[string]string),
	}
	for _, dir := range existing {
		m.dirs[dir] = true
	}
	return m
}

func (m *memFS) Stat(p string) (os.FileInfo, error) {
	m.ops = append(m.ops, "stat "+p)
	if m.dirs[p] {
		return fakeDirInfo{name: path.Base(p)}, nil
	}
	return nil, os.ErrNotExist
}

func (m *memFS) Mkdir(p string) error {
	m.ops = append(m.ops, "mkdir "+p)
	if m.MkdirFunc != nil {
		if err := m.MkdirFunc(p); err != nil {
			return err
		}
	}
	m.dirs[p] = true
	return nil
}

func (m *memFS) Put(localPath, remotePath string) (int64, error) {
	m.ops = append(m.ops, "put "+remotePath)
	if m.PutFunc != nil {
		return m.PutFunc(localPath, remotePath)
	}
	if parent := path.Dir(remotePath); parent != "." && !m.dirs[parent] {
		return 0, errors.New("no such file or directory")
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return 0, err
	}
	m.files[remotePath] = localPath
	return info.Size(), nil
}

// opsWithPrefix 过滤出指定类型的操作，如 "mkdir "、"put "
func (m *memFS) opsWithPrefix(prefixes ...string) []string {
	var result []string
	for _, op := range m.ops {
		for _, prefix := range prefixes {
			if strings.HasPrefix(op, prefix) {
				result = append(result, op)
				break
			}
		}
	}
	return result
}

type fakeDirInfo struct {
	name string
}

func (f fakeDirInfo) Name() string       { return f.name }
func (f fakeDirInfo) Size() int64        { return 0 }
func (f fakeDirInfo) Mode() os.FileMode  { return os.ModeDir | 0755 }
func (f fakeDirInfo) ModTime() time.Time { return time.Time{} }
func (f fakeDirInfo) IsDir() bool        { return true }
func (f fakeDirInfo) Sys() interface{}   { return nil }

// fakeSession 在 memFS 之上记录 Close 次数
type fakeSession struct {
	*memFS
	closeCount int
	closeErr   error
}

func (s *fakeSession) Close() error {
	s.closeCount++
	return s.closeErr
}
