package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/wa-broadcast/internal/adapters/common"
	"github.com/example/wa-broadcast/internal/config"
	"github.com/example/wa-broadcast/internal/logger"
)

const (
	defaultBaseURL      = "https://graph.facebook.com"
	defaultSendTimeout  = 30 * time.Second
	defaultMaxBodyBytes = 64 * 1024
)

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// CloudOption customises the behaviour of the Cloud API provider.
type CloudOption func(*CloudProvider)

// WithHTTPClient overrides the HTTP client used to talk to the Graph API.
func WithHTTPClient(client HTTPClient) CloudOption {
	return func(p *CloudProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithBaseURL sets the Graph API host. Useful for tests.
func WithBaseURL(baseURL string) CloudOption {
	return func(p *CloudProvider) {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTimeout bounds each send request. Uploads get twice as long.
func WithTimeout(d time.Duration) CloudOption {
	return func(p *CloudProvider) {
		if d > 0 {
			p.sendTimeout = d
			p.uploadTimeout = 2 * d
		}
	}
}

// CloudProvider implements Provider against the WhatsApp Cloud API
// (graph.facebook.com/{version}/{phone-number-id}/...).
type CloudProvider struct {
	logger        zerolog.Logger
	phoneNumberID string
	accessToken   string
	graphVersion  string
	baseURL       string
	httpClient    HTTPClient
	sendTimeout   time.Duration
	uploadTimeout time.Duration
	maxBodyBytes  int64
}

// NewCloudProvider constructs a Cloud API backed provider.
func NewCloudProvider(cfg config.ProviderConfig, logger zerolog.Logger, opts ...CloudOption) (*CloudProvider, error) {
	if strings.TrimSpace(cfg.PhoneNumberID) == "" {
		return nil, errors.New("whatsapp cloud provider: phone number id is required")
	}
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("whatsapp cloud provider: access token is required")
	}
	if strings.TrimSpace(cfg.GraphVersion) == "" {
		return nil, errors.New("whatsapp cloud provider: graph version is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	provider := &CloudProvider{
		logger:        logger,
		phoneNumberID: strings.TrimSpace(cfg.PhoneNumberID),
		accessToken:   strings.TrimSpace(cfg.AccessToken),
		graphVersion:  strings.TrimSpace(cfg.GraphVersion),
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:    &http.Client{},
		sendTimeout:   defaultSendTimeout,
		uploadTimeout: 2 * defaultSendTimeout,
		maxBodyBytes:  defaultMaxBodyBytes,
	}
	if cfg.Timeout > 0 {
		provider.sendTimeout = cfg.Timeout
		provider.uploadTimeout = 2 * cfg.Timeout
	}

	for _, opt := range opts {
		if opt != nil {
			opt(provider)
		}
	}

	if provider.baseURL == "" {
		provider.baseURL = defaultBaseURL
	}
	return provider, nil
}

func (p *CloudProvider) endpoint(resource string) string {
	return fmt.Sprintf("%s/%s/%s/%s", p.baseURL, url.PathEscape(p.graphVersion), url.PathEscape(p.phoneNumberID), resource)
}

// UploadMedia streams the file at path to the media endpoint as multipart
// form data and returns the media id the provider assigned.
func (p *CloudProvider) UploadMedia(ctx context.Context, path, mimeType string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &APIError{Op: OpUpload, Err: common.WrapPermanent(err)}
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, p.uploadTimeout)
	defer cancel()

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeMediaForm(mw, f, filepath.Base(path), mimeType))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("media"), pr)
	if err != nil {
		return "", &APIError{Op: OpUpload, Err: common.WrapPermanent(err)}
	}
	req.Header.Set("Authorization", "Bearer "+p.accessToken)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	p.logger.Debug().
		Str("path", path).
		Str("mime", mimeType).
		Msg("uploading media")

	status, body, err := p.do(req)
	if err != nil {
		return "", transportError(OpUpload, err)
	}
	if status < 200 || status >= 300 {
		return "", statusError(OpUpload, status, body)
	}

	var parsed mediaResponse
	if err := json.Unmarshal([]byte(body), &parsed); err != nil || strings.TrimSpace(parsed.ID) == "" {
		return "", &APIError{
			Op:         OpUpload,
			StatusCode: status,
			Message:    "response missing media id",
			Body:       common.TruncateRaw(body, common.DefaultRawBodyLimit),
			Err:        common.WrapPermanent(errors.New("response missing media id")),
		}
	}
	return parsed.ID, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeMediaForm(mw *multipart.Writer, src io.Reader, filename, mimeType string) error {
	if err := mw.WriteField("messaging_product", "whatsapp"); err != nil {
		return err
	}
	if err := mw.WriteField("type", mimeType); err != nil {
		return err
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filename)))
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return err
	}
	return mw.Close()
}

// SendTemplate sends a pre-approved template message with no parameters.
func (p *CloudProvider) SendTemplate(ctx context.Context, to, name, language string) (string, error) {
	return p.sendMessage(ctx, OpTemplate, &messageRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template: &templateContent{
			Name:     name,
			Language: templateLanguage{Code: language},
		},
	})
}

// SendDocument sends the uploaded media as a document message.
func (p *CloudProvider) SendDocument(ctx context.Context, to string, doc Document) (string, error) {
	return p.sendMessage(ctx, OpDocument, &messageRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "document",
		Document: &documentContent{
			ID:       doc.MediaID,
			Filename: doc.Filename,
			Caption:  doc.Caption,
		},
	})
}

func (p *CloudProvider) sendMessage(ctx context.Context, op Op, payload *messageRequest) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", &APIError{Op: op, Err: common.WrapPermanent(err)}
	}

	ctx, cancel := context.WithTimeout(ctx, p.sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("messages"), bytes.NewReader(data))
	if err != nil {
		return "", &APIError{Op: op, Err: common.WrapPermanent(err)}
	}
	req.Header.Set("Authorization", "Bearer "+p.accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	p.logger.Debug().
		Str("op", string(op)).
		Str("to", logger.Phone(p.logger, payload.To)).
		Msg("sending message")

	status, body, err := p.do(req)
	if err != nil {
		return "", transportError(op, err)
	}
	if status < 200 || status >= 300 {
		return "", statusError(op, status, body)
	}

	var parsed messageResponse
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		p.logger.Warn().
			Str("op", string(op)).
			Err(err).
			Msg("could not decode send response")
		return UnknownMessageID, nil
	}
	if len(parsed.Messages) == 0 || parsed.Messages[0].ID == "" {
		p.logger.Warn().
			Str("op", string(op)).
			Str("to", logger.Phone(p.logger, payload.To)).
			Msg("send response carried no message id")
		return UnknownMessageID, nil
	}
	return parsed.Messages[0].ID, nil
}

func (p *CloudProvider) do(req *http.Request) (int, string, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := p.readBody(resp.Body)
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, body, nil
}

func (p *CloudProvider) readBody(rc io.ReadCloser) (string, error) {
	if rc == nil {
		return "", nil
	}
	data, err := io.ReadAll(io.LimitReader(rc, p.maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(data), nil
}
