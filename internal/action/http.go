package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/stepline-org/stepline/internal/logger"
	"github.com/stepline-org/stepline/internal/logger/tag"
)

// httpAction performs an HTTP request. Params:
//
//	url:     request URL (required)
//	method:  HTTP method, default GET
//	headers: map of request headers
//	body:    request body string
type httpAction struct {
	client *resty.Client
}

func newHTTPAction() *httpAction {
	return &httpAction{client: resty.New()}
}

func (a *httpAction) Run(ctx context.Context, params Params) error {
	url := params.String("url", "")
	if url == "" {
		return fmt.Errorf("http action requires a %q parameter", "url")
	}
	method := strings.ToUpper(params.String("method", "GET"))

	req := a.client.R().SetContext(ctx)
	if headers := params.StringMap("headers"); headers != nil {
		req.SetHeaders(headers)
	}
	if body := params.String("body", ""); body != "" {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		return fmt.Errorf("http request %s %s failed: %w", method, url, err)
	}

	logger.Debug(ctx, "HTTP request completed",
		tag.Step(params.String(ParamStepName, "")),
		"method", method,
		"url", url,
		"status", resp.StatusCode(),
	)

	if resp.IsError() {
		return fmt.Errorf("http request %s %s returned status %d", method, url, resp.StatusCode())
	}
	return nil
}
