package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const defaultTelegramAPI = "https://api.telegram.org"

// TelegramService posts order notifications to the admin chat.
type TelegramService struct {
	botToken    string
	adminChatID string
	apiBase     string
	client      *http.Client
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		apiBase:     defaultTelegramAPI,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// WithAPIBase points the service at another Bot API host.
func (s *TelegramService) WithAPIBase(base string) *TelegramService {
	s.apiBase = strings.TrimRight(base, "/")
	return s
}

// Enabled reports whether both token and admin chat are configured.
func (s *TelegramService) Enabled() bool {
	return s.botToken != "" && s.adminChatID != ""
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends an HTML message to the specified chat.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" {
		log.Debug().Msg("telegram bot token not configured")
		return nil
	}

	body, err := json.Marshal(telegramMessage{ChatID: chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(ctx context.Context, text string) error {
	if s.adminChatID == "" {
		log.Debug().Msg("telegram admin chat not configured")
		return nil
	}
	return s.SendMessage(ctx, s.adminChatID, text)
}

// FormatPrice formats amount with two decimals, thousand separators and currency.
func FormatPrice(amount decimal.Decimal, currency string) string {
	if currency == "" {
		currency = "PHP"
	}

	fixed := amount.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")

	var result strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(digit)
	}

	return fmt.Sprintf("%s%s.%s %s", sign, result.String(), frac, currency)
}

var statusLabels = map[string]string{
	"pending":          "⏳ Pending",
	"processing":       "📦 Processing",
	"out_for_delivery": "🚚 Out for delivery",
	"delivered":        "✅ Delivered",
	"cancelled":        "❌ Cancelled",
}

// Publish renders order events for the admin chat.
func (s *TelegramService) Publish(ctx context.Context, event OrderEvent) error {
	if !s.Enabled() {
		return nil
	}

	switch event.Type {
	case EventOrderPlaced:
		return s.SendToAdmin(ctx, renderNewOrder(event))
	case EventOrderStatusChanged:
		return s.SendToAdmin(ctx, renderStatusChange(event))
	}
	return nil
}

func renderNewOrder(event OrderEvent) string {
	var items strings.Builder
	for i, item := range event.Items {
		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		fmt.Fprintf(&items, "%d. <b>%s</b> (%s)\n   %d x %s = %s\n",
			i+1,
			html.EscapeString(item.ProductName),
			html.EscapeString(item.VariantLabel),
			item.Quantity,
			FormatPrice(item.UnitPrice, event.Currency),
			FormatPrice(lineTotal, event.Currency),
		)
	}

	message := fmt.Sprintf(`<b>🛒 NEW ORDER</b>
<b>📋 Order:</b> %s
<b>👤 Customer:</b> %s
<b>✉️ Email:</b> %s
<b>📦 Items:</b>
%s
<b>🚚 Shipping:</b> %s
<b>💰 Total:</b> %s
<b>💳 Payment:</b> %s
<b>📍 Status:</b> %s
━━━━━━━━━━━━━━━━━━`,
		event.OrderNumber,
		html.EscapeString(event.CustomerName),
		html.EscapeString(event.CustomerEmail),
		items.String(),
		FormatPrice(event.ShippingFee, event.Currency),
		FormatPrice(event.TotalAmount, event.Currency),
		html.EscapeString(event.PaymentMethod),
		statusLabels[string(event.Status)],
	)
	return strings.TrimSpace(message)
}

func renderStatusChange(event OrderEvent) string {
	return fmt.Sprintf("<b>🔔 ORDER UPDATE</b>\n<b>📋 Order:</b> %s\n<b>📍 Status:</b> %s → %s",
		event.OrderNumber,
		statusLabels[string(event.PreviousState)],
		statusLabels[string(event.Status)],
	)
}
