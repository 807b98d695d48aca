// Package chatapi is the client for the chat backend's REST API.
package chatapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"wechat/internal/errors"
	"wechat/internal/models"
	"wechat/pkg/chatapi/types"

	"github.com/sirupsen/logrus"
)

type Client interface {
	types.Uploader
	types.HistoryFetcher
	types.UserLister
}

// Routes are the backend paths the client calls, relative to the base URL.
type Routes struct {
	Upload  string
	History string
	Users   string
}

type ChatClient struct {
	baseURL string
	routes  Routes
	client  *http.Client
	logger  *logrus.Logger
}

func NewClient(baseURL string, routes Routes, httpClient *http.Client) Client {
	return NewClientWithLogger(baseURL, routes, httpClient, nil)
}

// NewClientWithLogger is NewClient with an explicit logger.
func NewClientWithLogger(baseURL string, routes Routes, httpClient *http.Client, logger *logrus.Logger) Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	return &ChatClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		routes:  routes,
		client:  httpClient,
		logger:  logger,
	}
}

// Upload streams the file as multipart/form-data with the fields file,
// senderId and receiverId, and returns the URL the backend stored it under.
func (c *ChatClient) Upload(ctx context.Context, req types.UploadRequest) (*types.UploadResponse, error) {
	endpoint := c.baseURL + c.routes.Upload

	if req.Body == nil {
		return nil, errors.NewValidationError("file", req.Filename, "upload body is empty")
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	body := req.Body
	if req.Progress != nil {
		body = &progressReader{r: req.Body, total: req.Size, report: req.Progress}
	}

	var writeErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		writeErr = writeUploadForm(mw, req, body)
		if writeErr != nil {
			pw.CloseWithError(writeErr)
			return
		}
		pw.Close()
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		pr.Close()
		wg.Wait()
		return nil, errors.NewAPIError(errors.ErrCodeUploadFailed, endpoint, 0, fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Accept", "application/json")

	c.logger.WithFields(logrus.Fields{
		"endpoint":     endpoint,
		"filename":     req.Filename,
		"content_type": req.ContentType,
		"size":         req.Size,
	}).Debug("Uploading file")

	resp, err := c.client.Do(httpReq)
	// Unblock the writer if the transport gave up before draining the body
	pr.Close()
	wg.Wait()
	if err != nil {
		return nil, errors.NewAPIError(errors.ErrCodeUploadFailed, endpoint, 0, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	if writeErr != nil && writeErr != io.ErrClosedPipe {
		return nil, errors.NewAPIError(errors.ErrCodeUploadFailed, endpoint, 0, fmt.Errorf("failed to stream file: %w", writeErr))
	}

	if err := checkStatus(resp); err != nil {
		return nil, errors.NewAPIError(errors.ErrCodeUploadFailed, endpoint, resp.StatusCode, err)
	}

	var result types.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.NewAPIError(errors.ErrCodeUploadFailed, endpoint, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}
	if result.URL == "" {
		return nil, errors.NewAPIError(errors.ErrCodeUploadFailed, endpoint, resp.StatusCode, fmt.Errorf("response has no url"))
	}

	return &result, nil
}

func writeUploadForm(mw *multipart.Writer, req types.UploadRequest, body io.Reader) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(req.Filename)))
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}
	if err := mw.WriteField("senderId", req.SenderID); err != nil {
		return fmt.Errorf("failed to write senderId: %w", err)
	}
	if err := mw.WriteField("receiverId", req.ReceiverID); err != nil {
		return fmt.Errorf("failed to write receiverId: %w", err)
	}
	return mw.Close()
}

// FetchHistory returns the persisted messages of userID in server order.
func (c *ChatClient) FetchHistory(ctx context.Context, userID string) ([]models.HistoryMessage, error) {
	endpoint := fmt.Sprintf("%s%s/%s", c.baseURL, c.routes.History, url.PathEscape(userID))

	var history []models.HistoryMessage
	if err := c.getJSON(ctx, endpoint, errors.ErrCodeHistoryFetch, &history); err != nil {
		return nil, err
	}
	if history == nil {
		history = []models.HistoryMessage{}
	}
	return history, nil
}

// ListUsers returns every user except userID.
func (c *ChatClient) ListUsers(ctx context.Context, userID string) ([]models.Contact, error) {
	endpoint := fmt.Sprintf("%s%s/%s", c.baseURL, c.routes.Users, url.PathEscape(userID))

	var users []models.Contact
	if err := c.getJSON(ctx, endpoint, errors.ErrCodeBackendAPI, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *ChatClient) getJSON(ctx context.Context, endpoint string, code errors.ErrorCode, out interface{}) error {
	c.logger.WithField("endpoint", endpoint).Debug("Calling chat backend")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.NewAPIError(code, endpoint, 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.NewAPIError(code, endpoint, 0, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		c.logger.WithFields(logrus.Fields{
			"endpoint": endpoint,
			"status":   resp.StatusCode,
		}).Error("Chat backend returned error status")
		return errors.NewAPIError(code, endpoint, resp.StatusCode, err)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewAPIError(code, endpoint, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr types.ErrorResponse
	if json.Unmarshal(bodyBytes, &apiErr) == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Error)
		}
	}
	return fmt.Errorf("status %d, body: %s", resp.StatusCode, string(bodyBytes))
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

type progressReader struct {
	r      io.Reader
	sent   int64
	total  int64
	report func(sent, total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.report(p.sent, p.total)
	}
	return n, err
}
