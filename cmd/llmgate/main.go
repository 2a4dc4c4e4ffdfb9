// =============================================================================
// llmgate 命令行入口
// =============================================================================
// 使用方法:
//
//	llmgate generate -m gpt-4o-mini -p "Hello"                   # 单模型
//	llmgate generate -m gpt-4o-mini -m claude-3-5-sonnet -p "Hi"  # 多模型并发
//	llmgate generate -m gemini-1.5-flash -p "Describe" --image https://x/cat.png
//	llmgate generate -m gpt-4o --type summarize_text --data text=@article.txt
//	llmgate vendors                                              # 厂商注册表
//	llmgate version
// =============================================================================
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// 构建时通过 ldflags 注入
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
