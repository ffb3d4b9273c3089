// Package api HTTP клиент локального управляющего API узла.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iudanet/peersync/pkg/api"
)

// Error ответ API с кодом не 2xx
type Error struct {
	Message    string
	Kind       string
	StatusCode int
}

func (e *Error) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("node error (%d, %s): %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("node error (%d): %s", e.StatusCode, e.Message)
}

// IsNotFound сообщает, что API ответил 404
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client представляет HTTP клиент управляющего API
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient создает новый API клиент. token передается в Authorization: Bearer.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			// ожидание синхронизации с wait=true может быть долгим
			Timeout: 5 * time.Minute,
		},
	}
}

// Health проверяет доступность узла
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/health", nil, &resp); err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	return &resp, nil
}

// Status возвращает состояние узла
func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/status", nil, &resp); err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return &resp, nil
}

// PutRecord создает или обновляет запись
func (c *Client) PutRecord(ctx context.Context, id string, req api.PutRecordRequest) (*api.Record, error) {
	var resp api.Record
	if err := c.doRequest(ctx, http.MethodPut, "/api/v1/records/"+escapeID(id), req, &resp); err != nil {
		return nil, fmt.Errorf("put record request failed: %w", err)
	}
	return &resp, nil
}

// GetRecord возвращает запись с открытым payload
func (c *Client) GetRecord(ctx context.Context, id string) (*api.Record, error) {
	var resp api.Record
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/records/"+escapeID(id), nil, &resp); err != nil {
		return nil, fmt.Errorf("get record request failed: %w", err)
	}
	return &resp, nil
}

// DeleteRecord помечает запись удаленной
func (c *Client) DeleteRecord(ctx context.Context, id string) (*api.Record, error) {
	var resp api.Record
	if err := c.doRequest(ctx, http.MethodDelete, "/api/v1/records/"+escapeID(id), nil, &resp); err != nil {
		return nil, fmt.Errorf("delete record request failed: %w", err)
	}
	return &resp, nil
}

// ListRecords возвращает записи без payload
func (c *Client) ListRecords(ctx context.Context, includeDeleted bool) (*api.RecordList, error) {
	path := "/api/v1/records"
	if includeDeleted {
		path += "?deleted=true"
	}
	var resp api.RecordList
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list records request failed: %w", err)
	}
	return &resp, nil
}

// Audit возвращает журнал аудита записи
func (c *Client) Audit(ctx context.Context, id string) (*api.AuditList, error) {
	var resp api.AuditList
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/audit/"+escapeID(id), nil, &resp); err != nil {
		return nil, fmt.Errorf("audit request failed: %w", err)
	}
	return &resp, nil
}

// Peers возвращает известные узлы аккаунта
func (c *Client) Peers(ctx context.Context) (*api.PeerList, error) {
	var resp api.PeerList
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/peers", nil, &resp); err != nil {
		return nil, fmt.Errorf("peers request failed: %w", err)
	}
	return &resp, nil
}

// Pin закрепляет публичный ключ узла
func (c *Client) Pin(ctx context.Context, nodeID, publicKeyHex string) (*api.Peer, error) {
	var resp api.Peer
	path := "/api/v1/peers/" + url.PathEscape(nodeID) + "/pin"
	if err := c.doRequest(ctx, http.MethodPost, path, api.PinRequest{PublicKey: publicKeyHex}, &resp); err != nil {
		return nil, fmt.Errorf("pin request failed: %w", err)
	}
	return &resp, nil
}

// Sync запускает синхронизацию
func (c *Client) Sync(ctx context.Context, req api.SyncRequest) (*api.SessionList, error) {
	var resp api.SessionList
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/sync", req, &resp); err != nil {
		return nil, fmt.Errorf("sync request failed: %w", err)
	}
	return &resp, nil
}

// Sessions возвращает историю сессий. limit <= 0 - значение по умолчанию узла.
func (c *Client) Sessions(ctx context.Context, limit int) (*api.SessionList, error) {
	path := "/api/v1/sessions"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp api.SessionList
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("sessions request failed: %w", err)
	}
	return &resp, nil
}

// Session возвращает одну сессию
func (c *Client) Session(ctx context.Context, id string) (*api.Session, error) {
	var resp api.Session
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/sessions/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, fmt.Errorf("session request failed: %w", err)
	}
	return &resp, nil
}

// CancelSession отменяет активную сессию
func (c *Client) CancelSession(ctx context.Context, id string) (*api.Session, error) {
	var resp api.Session
	path := "/api/v1/sessions/" + url.PathEscape(id) + "/cancel"
	if err := c.doRequest(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("cancel request failed: %w", err)
	}
	return &resp, nil
}

// ResumeSession возобновляет прерванную сессию
func (c *Client) ResumeSession(ctx context.Context, id string) (*api.Session, error) {
	var resp api.Session
	path := "/api/v1/sessions/" + url.PathEscape(id) + "/resume"
	if err := c.doRequest(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("resume request failed: %w", err)
	}
	return &resp, nil
}

// Config возвращает текущие настройки синхронизации
func (c *Client) Config(ctx context.Context) (*api.SyncSettings, error) {
	var resp api.SyncSettings
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/config", nil, &resp); err != nil {
		return nil, fmt.Errorf("config request failed: %w", err)
	}
	return &resp, nil
}

// UpdateConfig заменяет настройки синхронизации
func (c *Client) UpdateConfig(ctx context.Context, settings api.SyncSettings) (*api.SyncSettings, error) {
	var resp api.SyncSettings
	if err := c.doRequest(ctx, http.MethodPut, "/api/v1/config", settings, &resp); err != nil {
		return nil, fmt.Errorf("update config request failed: %w", err)
	}
	return &resp, nil
}

// Export возвращает диагностическую выгрузку
func (c *Client) Export(ctx context.Context) (*api.Export, error) {
	var resp api.Export
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/export", nil, &resp); err != nil {
		return nil, fmt.Errorf("export request failed: %w", err)
	}
	return &resp, nil
}

// escapeID экранирует сегменты id, сохраняя '/'
func escapeID(id string) string {
	parts := strings.Split(id, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			apiErr.Message = errResp.Error
			apiErr.Kind = errResp.Kind
		}
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
