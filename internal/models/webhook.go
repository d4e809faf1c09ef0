package models

// WebhookEvent — входящий callback провайдера мессенджера.
type WebhookEvent struct {
	Event    string       `json:"event"`
	Instance string       `json:"instance"`
	Data     *MessageData `json:"data,omitempty"`
}

// События провайдера, которые обрабатываются: messages.upsert запускает
// атрибуцию, messages.update несёт статусы доставки. Остальное игнорируется.
const (
	EventMessagesUpsert = "messages.upsert"
	EventMessagesUpdate = "messages.update"
)

// MessageData — конверт сообщения в формате провайдера.
type MessageData struct {
	Key      MessageKey     `json:"key"`
	Message  MessageContent `json:"message"`
	PushName string         `json:"pushName,omitempty"`
	Status   string         `json:"status,omitempty"`
}

// MessageKey идентифицирует сообщение и отправителя.
type MessageKey struct {
	RemoteJID string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

// MessageContent — текстовое содержимое (обычный или расширенный вариант).
type MessageContent struct {
	Conversation        string               `json:"conversation,omitempty"`
	ExtendedTextMessage *ExtendedTextMessage `json:"extendedTextMessage,omitempty"`
}

// ExtendedTextMessage — расширенный текстовый вариант сообщения.
type ExtendedTextMessage struct {
	Text string `json:"text"`
}

// Text возвращает текст сообщения независимо от варианта.
func (m *MessageData) Text() string {
	if m.Message.Conversation != "" {
		return m.Message.Conversation
	}
	if m.Message.ExtendedTextMessage != nil {
		return m.Message.ExtendedTextMessage.Text
	}
	return ""
}

// InboundMessage — санитизированное входящее сообщение после Webhook Ingress.
type InboundMessage struct {
	Phone        string `json:"phone"`
	Text         string `json:"text"`
	ExternalID   string `json:"external_id"`
	Status       string `json:"status"`
	ContactName  string `json:"contact_name,omitempty"`
	InstanceName string `json:"instance_name"`
	FromMe       bool   `json:"from_me"`
}
