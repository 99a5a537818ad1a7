package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/example/stackpay/internal/models"
)

// TelegramNotifier posts transaction state changes to a Telegram admin chat.
// It no-ops cleanly when unconfigured and never lets delivery failures leak
// into the payment path.
type TelegramNotifier struct {
	botToken    string
	adminChatID string
}

// NewTelegramNotifier creates a TelegramNotifier.
func NewTelegramNotifier(botToken, adminChatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken:    botToken,
		adminChatID: adminChatID,
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to the specified chat.
func (s *TelegramNotifier) SendMessage(chatID, text string) error {
	if s.botToken == "" {
		log.Println("[Telegram] bot token not configured")
		return nil
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.botToken)

	msg := telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[Telegram] failed to send message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Telegram] unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// NotifyTransactionState reports a terminal transaction transition to the
// admin chat. Fired asynchronously; errors are logged only.
func (s *TelegramNotifier) NotifyTransactionState(txn *models.Transaction) {
	if s.adminChatID == "" {
		return
	}

	message := fmt.Sprintf(`<b>Transaction %s</b>
<b>State:</b> %s
<b>Merchant order:</b> %s
<b>Amount:</b> %s`,
		txn.TransactionID,
		txn.State,
		txn.MerchantOrderID,
		txn.Amount,
	)

	go func() {
		if err := s.SendMessage(s.adminChatID, message); err != nil {
			log.Printf("[Telegram] transaction state notification failed: %v", err)
		}
	}()
}
