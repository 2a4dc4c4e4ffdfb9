// Package factory 是厂商解析与客户端构建的唯一入口：显式厂商按名称（含别名）解析，
// 省略时按模型名的有序模式表推断；同时持有厂商描述注册表。
// 它导入全部 provider 子包，避免 llm 包与各 provider 之间的循环依赖。
package factory
