/*
包 server 管理 CLI 附带的辅助 HTTP 端点（如 Prometheus /metrics）。

Manager 封装 net/http.Server：Start 同步完成监听后在后台服务，
Shutdown 在配置的超时内排空连接且可重复调用，Errors 暴露
异步服务错误，Addr 返回实际监听地址（支持 ":0" 随机端口）。
*/
package server
