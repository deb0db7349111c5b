package notify

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"
	"github.com/torfstack/sideload/internal/logging"
	"github.com/torfstack/sideload/internal/version"
)

type Telegram struct {
	client *req.Client
	apiURL string
	token  string
	chatID int64
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func NewTelegram(apiURL, token string, chatID int64) *Telegram {
	client := req.C().
		SetTimeout(15 * time.Second).
		SetUserAgent(version.AppName + "/" + version.Version).
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal)
	return &Telegram{
		client: client,
		apiURL: strings.TrimSuffix(apiURL, "/"),
		token:  token,
		chatID: chatID,
	}
}

func (t *Telegram) Send(ctx context.Context, msg string) bool {
	if t.token == "" || t.chatID == 0 {
		logging.Debug("Telegram bot token or chat id not set, skipping message")
		return false
	}
	if msg == "" {
		logging.Warnf("Refusing to send an empty telegram message")
		return false
	}

	var result telegramResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetQueryParam("chat_id", strconv.FormatInt(t.chatID, 10)).
		SetQueryParam("text", msg).
		SetSuccessResult(&result).
		SetErrorResult(&result).
		Get(t.apiURL + "/bot" + t.token + "/sendMessage")
	if err != nil {
		logging.Errorf("Could not send telegram message to %d: %s", t.chatID, t.redact(err.Error()))
		return false
	}
	if resp.IsErrorState() || !result.OK {
		desc := result.Description
		if desc == "" {
			desc = resp.Status
		}
		logging.Errorf("Telegram refused message to %d: %s", t.chatID, desc)
		return false
	}

	logging.Debugf("Telegram message delivered to %d", t.chatID)
	return true
}

func (t *Telegram) redact(s string) string {
	return strings.ReplaceAll(s, t.token, "*****")
}
