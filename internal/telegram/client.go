package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client представляет клиент для работы с Telegram Bot API
type Client struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
}

// User представляет пользователя Telegram
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// Chat представляет чат Telegram
type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

// Message представляет сообщение Telegram
type Message struct {
	MessageID int    `json:"message_id"`
	From      User   `json:"from"`
	Chat      Chat   `json:"chat"`
	Date      int    `json:"date"`
	Text      string `json:"text"`
}

// Update представляет обновление от Telegram
type Update struct {
	UpdateID int      `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// GetUpdatesResponse представляет ответ на запрос обновлений
type GetUpdatesResponse struct {
	OK     bool     `json:"ok"`
	Result []Update `json:"result"`
}

// SendMessageRequest представляет запрос на отправку сообщения
type SendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// SendMessageResponse представляет ответ на отправку сообщения
type SendMessageResponse struct {
	OK     bool    `json:"ok"`
	Result Message `json:"result"`
}

// NewClient создает новый экземпляр Client
func NewClient(token string) *Client {
	return &Client{
		Token:   token,
		BaseURL: "https://api.telegram.org/bot" + token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetMe получает информацию о боте
func (c *Client) GetMe() (map[string]interface{}, error) {
	resp, err := c.HTTPClient.Get(c.BaseURL + "/getMe")
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса getMe: %w", err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ошибка декодирования ответа: %w", err)
	}
	return result, nil
}

// GetUpdates получает обновления от Telegram
func (c *Client) GetUpdates(offset, limit int) (*GetUpdatesResponse, error) {
	params := url.Values{}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	reqURL := c.BaseURL + "/getUpdates"
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	resp, err := c.HTTPClient.Get(reqURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса getUpdates: %w", err)
	}
	defer resp.Body.Close()

	var result GetUpdatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ошибка декодирования ответа: %w", err)
	}
	return &result, nil
}

// SendMessage отправляет сообщение в чат
func (c *Client) SendMessage(chatID int64, text string, parseMode string) (*SendMessageResponse, error) {
	request := SendMessageRequest{
		ChatID:    chatID,
		Text:      text,
		ParseMode: parseMode,
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("ошибка маршалинга запроса: %w", err)
	}

	resp, err := c.HTTPClient.Post(
		c.BaseURL+"/sendMessage",
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка отправки сообщения: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	var result SendMessageResponse
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		return nil, fmt.Errorf("ошибка декодирования ответа: %w", err)
	}

	if !result.OK {
		var errorResponse map[string]interface{}
		if err := json.Unmarshal(bodyBytes, &errorResponse); err == nil {
			if description, ok := errorResponse["description"].(string); ok {
				log.Printf("[TelegramAPI] Ошибка отправки сообщения в чат %d: %s", chatID, description)
				return &result, fmt.Errorf("Telegram API error: %s", description)
			}
		}
		return &result, fmt.Errorf("Telegram API вернул ошибку: OK=false")
	}

	return &result, nil
}

// SendMessageHTML отправляет HTML-сообщение
func (c *Client) SendMessageHTML(chatID int64, text string) (*SendMessageResponse, error) {
	return c.SendMessage(chatID, text, "HTML")
}

// SetWebhook устанавливает webhook для бота
func (c *Client) SetWebhook(webhookURL string) (map[string]interface{}, error) {
	params := url.Values{}
	params.Set("url", webhookURL)

	resp, err := c.HTTPClient.PostForm(c.BaseURL+"/setWebhook", params)
	if err != nil {
		return nil, fmt.Errorf("ошибка установки webhook: %w", err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ошибка декодирования ответа: %w", err)
	}
	return result, nil
}

// DeleteWebhook удаляет webhook
func (c *Client) DeleteWebhook() (map[string]interface{}, error) {
	resp, err := c.HTTPClient.PostForm(c.BaseURL+"/deleteWebhook", url.Values{})
	if err != nil {
		return nil, fmt.Errorf("ошибка удаления webhook: %w", err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ошибка декодирования ответа: %w", err)
	}
	return result, nil
}

// ParseUpdate разбирает обновление из тела webhook-запроса
func (c *Client) ParseUpdate(body io.Reader) (*Update, error) {
	var update Update
	if err := json.NewDecoder(body).Decode(&update); err != nil {
		return nil, fmt.Errorf("ошибка разбора обновления: %w", err)
	}
	return &update, nil
}
