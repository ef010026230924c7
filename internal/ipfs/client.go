// Пакет ipfs — HTTP-клиент узла IPFS (Kubo RPC API).
// Реестр хранит содержимое файлов в IPFS и оперирует только CID;
// клиент покрывает две операции: Add (POST /api/v0/add) и
// Cat (POST /api/v0/cat).
package ipfs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client — клиент RPC API узла IPFS.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New создаёт IPFS-клиент.
// nodeURL — адрес RPC API узла (например, http://localhost:5001).
func New(nodeURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(nodeURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger.With(slog.String("component", "ipfs_client")),
	}
}

// addResponse — ответ узла на /api/v0/add.
type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// Add загружает содержимое в IPFS и возвращает CID и размер в байтах.
func (c *Client) Add(ctx context.Context, name string, content io.Reader) (cid string, size int64, err error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, content); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	reqURL := c.baseURL + "/api/v0/add?cid-version=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, pr)
	if err != nil {
		return "", 0, fmt.Errorf("создание запроса add: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("запрос add к IPFS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", 0, fmt.Errorf("IPFS add вернул статус %d: %s", resp.StatusCode, string(body))
	}

	var ar addResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return "", 0, fmt.Errorf("декодирование ответа add: %w", err)
	}

	size, err = strconv.ParseInt(ar.Size, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("некорректный размер в ответе add: %w", err)
	}

	c.logger.Debug("Содержимое загружено в IPFS",
		slog.String("cid", ar.Hash),
		slog.Int64("size", size),
	)

	return ar.Hash, size, nil
}

// Cat возвращает поток содержимого по CID.
// Закрытие возвращённого io.ReadCloser обязательно.
func (c *Client) Cat(ctx context.Context, cid string) (io.ReadCloser, error) {
	reqURL := c.baseURL + "/api/v0/cat?arg=" + url.QueryEscape(cid)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("создание запроса cat: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос cat к IPFS: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("IPFS cat вернул статус %d: %s", resp.StatusCode, string(body))
	}

	return resp.Body, nil
}

// ReadinessChecker — проверка доступности узла IPFS для health endpoint.
type ReadinessChecker struct {
	client *Client
}

// NewReadinessChecker создаёт проверку готовности узла IPFS.
func NewReadinessChecker(client *Client) *ReadinessChecker {
	return &ReadinessChecker{client: client}
}

// CheckReady запрашивает версию узла (POST /api/v0/version).
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.client.baseURL+"/api/v0/version", nil)
	if err != nil {
		return "fail", fmt.Sprintf("узел IPFS недоступен: %v", err)
	}

	resp, err := c.client.httpClient.Do(req)
	if err != nil {
		return "fail", fmt.Sprintf("узел IPFS недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "fail", fmt.Sprintf("узел IPFS вернул статус %d", resp.StatusCode)
	}
	return "ok", "узел доступен"
}
