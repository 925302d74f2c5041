package remote

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/chatbox/internal/config"
	"github.com/zhouzirui/chatbox/internal/model/chat"
)

// ArkReplier answers directly from a hosted chat model instead of the HTTP
// endpoint. Conversation memory comes from the transcript history.
type ArkReplier struct {
	chain        compose.Runnable[map[string]any, *schema.Message]
	systemPrompt string
	historyLimit int
	logger       zerolog.Logger
}

// NewArkReplier builds the prompt chain on top of the configured Ark model.
func NewArkReplier(ctx context.Context, cfg config.ArkConfig, logger zerolog.Logger) (*ArkReplier, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "create chat model")
	}
	return newArkReplier(ctx, chatModel, cfg, logger)
}

func newArkReplier(ctx context.Context, chatModel model.ChatModel, cfg config.ArkConfig, logger zerolog.Logger) (*ArkReplier, error) {
	template := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "compile chat chain")
	}

	return &ArkReplier{
		chain:        runnable,
		systemPrompt: cfg.SystemPrompt,
		historyLimit: cfg.HistoryLimit,
		logger:       logger,
	}, nil
}

// Reply runs the chain for one user turn.
func (a *ArkReplier) Reply(ctx context.Context, req Request) (Reply, error) {
	input := map[string]any{
		"system":  a.systemPrompt,
		"history": historyMessages(req.History, a.historyLimit),
		"query":   req.Message,
	}

	response, err := a.chain.Invoke(ctx, input)
	if err != nil {
		return Reply{}, transportError(errors.Wrap(err, "run chat chain"))
	}
	if response == nil {
		return Reply{}, malformedError(ErrMissingReply)
	}

	a.logger.Debug().Str("chat_id", req.ChatID).Int("length", len(response.Content)).Msg("ark reply generated")
	return Reply{Text: response.Content}, nil
}

// historyMessages keeps the last limit user and bot turns; system turns are
// local error notes and never reach the model.
func historyMessages(messages []chat.Message, limit int) []*schema.Message {
	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Sender {
		case chat.SenderUser:
			history = append(history, schema.UserMessage(msg.Text))
		case chat.SenderBot:
			history = append(history, schema.AssistantMessage(msg.Text, nil))
		}
	}

	if limit <= 0 {
		return nil
	}
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}
