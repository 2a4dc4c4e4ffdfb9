/*
Package types 提供 llmgate 的全局共享类型定义。

types 是最底层的公共包，不依赖任何内部包，为 config、llm、quick 等上层
模块提供统一的类型契约。

# 核心类型

  - Prompt：调用方输入，PlainText / Structured / RawParts 三选一
  - ImageRef：图片引用，ImageURL 或 ImageSpec{URL, Detail}
  - ContentPart：规范化后的厂商内容片段（text / image）
  - Response：不可变的调用结果，携带 token 统计与 metadata
  - Error / Kind：结构化错误体系，含 Reason、HTTP 状态码、Retryable 标记
*/
package types
