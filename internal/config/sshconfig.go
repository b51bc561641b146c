package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// ApplySSHConfigFile 读取 ssh config 文件并解析主机别名；文件不存在时忽略
func (c *Config) ApplySSHConfigFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("读取 ssh config 失败: %w", err)
	}
	defer f.Close()

	return c.ApplySSHConfig(f)
}

// ApplySSHConfig 将 Host 视为 ssh config 中的别名，解析 HostName/Port/User/
// UserKnownHostsFile 填充空字段。StrictHostKeyChecking no 等价于跳过主机密钥校验。
func (c *Config) ApplySSHConfig(r io.Reader) error {
	if c.Host == "" {
		return nil
	}

	cfg, err := ssh_config.Decode(r)
	if err != nil {
		return fmt.Errorf("解析 ssh config 失败: %w", err)
	}

	alias := c.Host
	if hostName, _ := cfg.Get(alias, "HostName"); hostName != "" {
		c.Host = hostName
	}
	if portStr, _ := cfg.Get(alias, "Port"); portStr != "" && c.Port == 0 {
		port, err := parsePort(portStr)
		if err != nil {
			return fmt.Errorf("ssh config 中 %s 的 Port 无效: %w", alias, err)
		}
		c.Port = port
	}
	if user, _ := cfg.Get(alias, "User"); user != "" {
		fillString(&c.Username, user)
	}
	if files, _ := cfg.Get(alias, "UserKnownHostsFile"); c.KnownHostsFile == "" {
		// 可能列出多个文件，只取第一个
		if fields := strings.Fields(files); len(fields) > 0 {
			c.KnownHostsFile = expandHome(fields[0])
		}
	}
	if strict, _ := cfg.Get(alias, "StrictHostKeyChecking"); strings.EqualFold(strict, "no") {
		c.InsecureIgnoreHostKey = true
	}

	return nil
}
