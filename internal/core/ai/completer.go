package ai

import (
	"context"
)

// CompletionRequest 發送給文字補全服務的請求
type CompletionRequest struct {
	Model        string `json:"model"`
	MaxTokens    int    `json:"max_tokens"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	UserPrompt   string `json:"user_prompt"`
}

// Usage 使用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse 文字補全服務的回應。
// 模型是不可靠的外部依賴：Content 可能為空、可能不是合法 JSON，
// StopReason 可能是 length（被 token 上限截斷）。
type CompletionResponse struct {
	Content    string `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      Usage  `json:"usage"`
}

// Completer 定義文字補全介面。
// 服務在進程啟動時建構一次，之後以依賴注入傳給各元件，測試可直接替換 mock。
type Completer interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}
