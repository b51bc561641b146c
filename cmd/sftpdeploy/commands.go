package main

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/hwuu/sftpdeploy/internal/config"
	"github.com/hwuu/sftpdeploy/internal/deploy"
)

func newUploadCmd(dial deploy.SessionFactory, sources config.Sources) *cobra.Command {
	var (
		flags   config.Config
		verbose bool
	)

	cmd := &cobra.Command{
		Use:          "upload",
		Short:        "将本地目录上传到远程服务器",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(&flags, sources)
			if err != nil {
				return err
			}

			// 密码不接受命令行参数，缺失时交互输入
			if cfg.Password == "" {
				prompter := config.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
				password, err := prompter.PromptPassword(fmt.Sprintf("%s@%s 的密码: ", cfg.Username, cfg.Host))
				if err != nil {
					return fmt.Errorf("读取密码失败: %w", err)
				}
				cfg.Password = password
			}

			deployer := &deploy.Deployer{
				Dial:   dial,
				Output: cmd.OutOrStdout(),
				Logger: newLogger(cmd.ErrOrStderr(), verbose),
			}
			return deployer.Run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.Host, "host", "", "服务器地址或 ~/.ssh/config 中的 Host 别名")
	f.IntVarP(&flags.Port, "port", "p", 0, "SSH 端口（默认 22）")
	f.StringVarP(&flags.Username, "user", "u", "", "登录用户名")
	f.StringVar(&flags.LocalRoot, "local", "", "本地源目录（默认 "+config.DefaultLocalRoot+"）")
	f.StringVar(&flags.RemoteRoot, "remote", "", "远程目标目录（默认 "+config.DefaultRemoteRoot+"）")
	f.StringVar(&flags.KnownHostsFile, "known-hosts", "", "known_hosts 文件（默认 ~/.ssh/known_hosts）")
	f.BoolVar(&flags.InsecureIgnoreHostKey, "insecure-ignore-host-key", false, "跳过主机密钥校验（不安全）")
	f.DurationVar(&flags.Timeout, "timeout", 0, "连接超时（默认 10s）")
	f.StringSliceVar(&flags.Exclude, "exclude", nil, "排除的文件名 glob 模式，可重复")
	f.BoolVarP(&verbose, "verbose", "v", false, "输出调试日志")

	return cmd
}

func newInitCmd(credentialsPath func() (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:          "init",
		Short:        "交互式创建 ~/.sftpdeploy/credentials",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := credentialsPath()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			prompter := config.NewPrompter(cmd.InOrStdin(), out)

			if _, err := os.Stat(path); err == nil {
				overwrite, err := prompter.PromptConfirm(fmt.Sprintf("%s 已存在，是否覆盖?", path), false)
				if err != nil {
					return err
				}
				if !overwrite {
					fmt.Fprintln(out, "已取消")
					return nil
				}
			}

			cred, err := promptCredentials(prompter)
			if err != nil {
				return err
			}
			if err := config.SaveCredentialsTo(path, cred); err != nil {
				return err
			}

			fmt.Fprintf(out, "✓ 凭证已保存到 %s\n", path)
			return nil
		},
	}
}

func promptCredentials(prompter *config.Prompter) (*config.Credentials, error) {
	host, err := prompter.Prompt("服务器地址: ")
	if err != nil {
		return nil, err
	}
	if host == "" {
		return nil, config.ErrMissingHost
	}

	portStr, err := prompter.PromptWithDefault("SSH 端口", strconv.Itoa(config.DefaultPort))
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidPort, portStr)
	}

	defaultUser := ""
	if u, err := user.Current(); err == nil {
		defaultUser = u.Username
	}
	username, err := prompter.PromptWithDefault("用户名", defaultUser)
	if err != nil {
		return nil, err
	}
	if username == "" {
		return nil, config.ErrMissingUser
	}

	password, err := prompter.PromptPassword("密码: ")
	if err != nil {
		return nil, err
	}

	return &config.Credentials{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
	}, nil
}

func newLogger(w io.Writer, verbose bool) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		Prefix:          "sftpdeploy",
		ReportTimestamp: true,
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}
