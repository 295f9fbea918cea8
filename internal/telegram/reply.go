package telegram

// A webhook may answer a delivery with a Bot API call in its response body.
// Telegram executes it without a second round trip, and the caller never
// learns whether it succeeded.
// https://core.telegram.org/bots/api#making-requests-when-getting-updates

// Welcome message and button label sent after a start.
const (
	WelcomeText  = "Готово! Нажми кнопку ниже, чтобы открыть канал 👇"
	ChannelLabel = "Открыть канал"
)

type InlineKeyboardButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// SendMessageReply is a sendMessage call returned as a webhook response.
type SendMessageReply struct {
	Method      string                `json:"method"`
	ChatID      int64                 `json:"chat_id"`
	Text        string                `json:"text"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// Ack is the body for deliveries that need no reply.
type Ack struct {
	OK bool `json:"ok"`
}

// WelcomeReply builds the channel-button message for chatID.
func WelcomeReply(chatID int64, channelURL string) SendMessageReply {
	return SendMessageReply{
		Method: "sendMessage",
		ChatID: chatID,
		Text:   WelcomeText,
		ReplyMarkup: &InlineKeyboardMarkup{
			InlineKeyboard: [][]InlineKeyboardButton{
				{{Text: ChannelLabel, URL: channelURL}},
			},
		},
	}
}
