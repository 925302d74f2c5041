package remote

import "github.com/zhouzirui/chatbox/internal/model/chat"

// Request is one user turn addressed to the conversational service.
type Request struct {
	Message string
	ChatID  string
	// History holds the transcript before this turn. Transports that keep
	// their own conversation memory ignore it.
	History []chat.Message
}

// Reply is the service's answer to a Request.
type Reply struct {
	Text    string
	Sources []chat.Source
}

// UploadResult acknowledges a document added to the service's knowledge base.
type UploadResult struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
}

type chatRequest struct {
	Message string `json:"message"`
	ChatID  string `json:"chat_id,omitempty"`
}

type chatResponse struct {
	Reply   *string      `json:"reply"`
	Answer  *string      `json:"answer"`
	Sources []chatSource `json:"sources"`
	Error   string       `json:"error"`
}

type chatSource struct {
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata"`
}
