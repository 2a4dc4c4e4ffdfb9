/*
Package testutil 提供 llmgate 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 响应断言: AssertSuccess / AssertFailure 按错误 Kind 与 Reason 断言
  - 厂商桩: VendorServer 基于 httptest，按序回放状态码与响应体，
    记录请求并可通过 gjson 路径检查请求体
  - 数据工具: MustJSON / MustParseJSON

# 子包

  - testutil/mocks: MockProvider（llm.Provider），支持固定响应、
    错误脚本、延迟与调用记录
*/
package testutil
