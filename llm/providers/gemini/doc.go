/*
包 gemini 提供 Google Gemini 的 Provider 实现，调用
/v1beta/models/{model}:generateContent。

  - 认证使用 x-goog-api-key 请求头
  - 内容部件为 {"text"}、{"fileData"} 或 {"inlineData"}；data URL 内联，
    其余 URL 以 fileData 引用并按扩展名推断 mimeType
  - 图片排在文本之前，不支持 detail
  - system 提示经 systemInstruction 传递，max_tokens 与 temperature 经 generationConfig
  - 用量取自 usageMetadata.promptTokenCount / candidatesTokenCount
*/
package gemini
