package template

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"remind/internal/notification"
	logx "remind/pkg/logx"
)

// HTTPService calls an external draft generator over JSON HTTP.
//
// Wire contract: POST {subject, body, business_name, regenerate} ->
// 200 {"rendered_template": "..."}; anything else is a generation failure.
type HTTPService struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
	log      logx.Logger
}

func NewHTTP(endpoint string, timeout time.Duration, log logx.Logger) *HTTPService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPService{
		endpoint: endpoint,
		timeout:  timeout,
		client:   &http.Client{},
		log:      log,
	}
}

type generateResponse struct {
	RenderedTemplate string `json:"rendered_template"`
}

func (s *HTTPService) Generate(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", notification.ErrGenerationFailed, err)
	}

	// Per-call timeout; the parent ctx still wins so navigation away
	// aborts an in-flight call.
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(cctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", notification.ErrGenerationFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(httpReq)
	if err != nil {
		s.log.Warn("template generation call failed", logx.Err(err), logx.Duration("took", time.Since(start)))
		return "", fmt.Errorf("%w: %v", notification.ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", notification.ErrGenerationFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.log.Warn("template generator rejected request",
			logx.Int("status", resp.StatusCode), logx.Duration("took", time.Since(start)))
		return "", fmt.Errorf("%w: generator returned %d", notification.ErrGenerationFailed, resp.StatusCode)
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", notification.ErrGenerationFailed, err)
	}
	if strings.TrimSpace(out.RenderedTemplate) == "" {
		return "", fmt.Errorf("%w: generator returned an empty template", notification.ErrGenerationFailed)
	}

	s.log.Debug("template generated",
		logx.Bool("regenerate", req.Regenerate), logx.Duration("took", time.Since(start)))
	return out.RenderedTemplate, nil
}
