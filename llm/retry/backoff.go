package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/BaSui01/llmgate/config"
	"github.com/BaSui01/llmgate/types"
)

// Policy 定义重试策略配置
type Policy struct {
	MaxAttempts  int           // 最大尝试次数（含首次，1 表示不重试）
	InitialDelay time.Duration // 初始延迟时间
	MaxDelay     time.Duration // 最大延迟时间，同时约束 Retry-After
	Multiplier   float64       // 延迟时间倍增因子（指数退避）
	Jitter       bool          // 是否添加 ±25% 随机抖动
}

// DefaultPolicy 返回默认的重试策略
// 适用于大部分 LLM API 调用场景
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// PolicyFromConfig 将配置转换为策略，非法值回退到默认值
func PolicyFromConfig(c config.RetryConfig) Policy {
	return Policy{
		MaxAttempts:  c.MaxAttempts,
		InitialDelay: c.InitialDelay.Std(),
		MaxDelay:     c.MaxDelay.Std(),
		Multiplier:   c.Multiplier,
		Jitter:       c.Jitter,
	}.normalized()
}

// normalized 参数校验
func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = def.Multiplier
	}
	return p
}

// schedule 基于 cenkalti/backoff 的指数退避序列，最多 MaxAttempts-1 次等待
func (p Policy) schedule() backoff.BackOff {
	eb := &backoff.ExponentialBackOff{
		InitialInterval:     p.InitialDelay,
		RandomizationFactor: 0,
		Multiplier:          p.Multiplier,
		MaxInterval:         p.MaxDelay,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	if p.Jitter {
		eb.RandomizationFactor = 0.25
	}
	eb.Reset()
	return backoff.WithMaxRetries(eb, uint64(p.MaxAttempts-1))
}

// Option 配置 Retryer
type Option func(*Retryer)

// WithSleep 替换等待函数（测试中用于跳过真实等待）
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Retryer) { r.sleep = sleep }
}

// WithOnRetry 设置每次进入等待前的回调
func WithOnRetry(fn func(attempt int, err *types.Error, delay time.Duration)) Option {
	return func(r *Retryer) { r.onRetry = fn }
}

// Retryer 执行重试状态机，不可变，可并发使用
type Retryer struct {
	policy  Policy
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
	onRetry func(attempt int, err *types.Error, delay time.Duration)
}

// New 创建重试器
func New(policy Policy, logger *zap.Logger, opts ...Option) *Retryer {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Retryer{
		policy: policy.normalized(),
		logger: logger.With(zap.String("component", "retry")),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy 返回生效的策略
func (r *Retryer) Policy() Policy { return r.policy }

// sleepContext 等待延迟，同时监听 context 取消
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
