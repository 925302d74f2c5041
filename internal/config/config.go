package config

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Transports understood by CHATBOX_TRANSPORT.
const (
	TransportHTTP = "http"
	TransportArk  = "ark"
)

// Config aggregates everything the widget needs at startup.
type Config struct {
	Server ServerConfig
	Remote RemoteConfig
	Ark    ArkConfig
	UI     UIConfig
	Log    LogConfig
}

// ServerConfig describes the browser widget listener.
type ServerConfig struct {
	Addr string `env:"CHATBOX_ADDR"`
	Port string `env:"PORT,default=8080"`
}

// RemoteConfig describes the conversational service reached over HTTP.
type RemoteConfig struct {
	Transport  string        `env:"CHATBOX_TRANSPORT,default=http" validate:"oneof=http ark"`
	BaseURL    string        `env:"CHATBOX_BASE_URL,default=http://localhost:7860" validate:"required,url"`
	ChatPath   string        `env:"CHATBOX_CHAT_PATH,default=/chat" validate:"required,startswith=/"`
	UploadPath string        `env:"CHATBOX_UPLOAD_PATH,default=/upload" validate:"required,startswith=/"`
	Timeout    time.Duration `env:"CHATBOX_TIMEOUT,default=60s" validate:"min=0"`
	SendChatID bool          `env:"CHATBOX_SEND_CHAT_ID,default=false"`
	ChatID     string        `env:"CHATBOX_CHAT_ID"`
}

// ArkConfig describes the optional Ark chat model transport.
type ArkConfig struct {
	APIKey       string `env:"ARK_API_KEY"`
	AccessKey    string `env:"ARK_ACCESS_KEY"`
	SecretKey    string `env:"ARK_SECRET_KEY"`
	Model        string `env:"ARK_MODEL"`
	BaseURL      string `env:"ARK_BASE_URL,default=https://ark.cn-beijing.volces.com/api/v3"`
	Region       string `env:"ARK_REGION,default=cn-beijing"`
	SystemPrompt string `env:"ARK_SYSTEM_PROMPT,default=You are a helpful assistant."`
	HistoryLimit int    `env:"ARK_HISTORY_LIMIT,default=10" validate:"min=0"`
}

// UIConfig tunes the terminal widget.
type UIConfig struct {
	Markdown bool `env:"CHATBOX_MARKDOWN,default=true"`
}

// LogConfig describes log output.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL,default=info" validate:"oneof=trace debug info warn error disabled"`
	Format string `env:"LOG_FORMAT,default=console" validate:"oneof=console json"`
	File   string `env:"LOG_FILE"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	sections := []struct {
		name string
		dst  any
	}{
		{"server", &cfg.Server},
		{"remote", &cfg.Remote},
		{"ark", &cfg.Ark},
		{"ui", &cfg.UI},
		{"log", &cfg.Log},
	}
	for _, section := range sections {
		if _, err := env.UnmarshalFromEnviron(section.dst); err != nil {
			return nil, errors.Wrapf(err, "load %s config", section.name)
		}
	}

	addr, err := cfg.Server.ListenAddr()
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr
	cfg.Remote.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Remote.BaseURL), "/")
	cfg.Ark.APIKey = strings.TrimSpace(cfg.Ark.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	v := validator.New()
	for _, section := range []any{c.Remote, c.Ark, c.Log} {
		if err := v.Struct(section); err != nil {
			return errors.Wrap(err, "invalid configuration")
		}
	}
	if c.Remote.Transport == TransportArk && !c.Ark.Enabled() {
		return errors.New("invalid configuration: CHATBOX_TRANSPORT=ark requires ARK_MODEL and ARK_API_KEY or ARK_ACCESS_KEY/ARK_SECRET_KEY")
	}
	return nil
}

// ListenAddr resolves the address the browser widget binds to.
// CHATBOX_ADDR wins; otherwise PORT may be a bare port or a full host:port.
func (c ServerConfig) ListenAddr() (string, error) {
	if addr := strings.TrimSpace(c.Addr); addr != "" {
		return addr, nil
	}

	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.Contains(port, ":") {
		return port, nil
	}
	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}
	return ":" + port, nil
}

// ChatURL is the absolute URL of the chat endpoint.
func (c RemoteConfig) ChatURL() (string, error) {
	return joinURL(c.BaseURL, c.ChatPath)
}

// UploadURL is the absolute URL of the document upload endpoint.
func (c RemoteConfig) UploadURL() (string, error) {
	return joinURL(c.BaseURL, c.UploadPath)
}

func joinURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrapf(err, "parse base url %q", base)
	}
	return u.JoinPath(path).String(), nil
}

// Enabled reports whether enough credentials are present to build a chat model.
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel creates an Ark chat model from the configuration.
func (c ArkConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, errors.New("ark credentials or model missing: provide ARK_MODEL with ARK_API_KEY or ARK_ACCESS_KEY/ARK_SECRET_KEY")
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.Model,
	})
}
