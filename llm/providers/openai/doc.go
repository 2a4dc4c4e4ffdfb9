// Package openai 提供 OpenAI Chat Completions 提供者。
//
// 信封由 openaicompat 实现；本包声明 Descriptor（gpt-4o-mini 默认模型、
// 支持图片 detail、文本在前）以及 OpenAI-Organization / OpenAI-Project 头。
package openai
