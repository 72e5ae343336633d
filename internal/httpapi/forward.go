package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/gearforge/gearforge/internal/errs"
	"github.com/gearforge/gearforge/internal/gear"
	"github.com/gearforge/gearforge/internal/urlguard"
)

// httpForwarder implements gear.Forwarder by POSTing the forward payload
// as JSON to url, validated through the same urlguard.Guard an HTTP
// patch node uses: gear-to-gear fan-out gets the identical SSRF
// protection as engine-dispatched HTTP nodes.
type httpForwarder struct {
	client *http.Client
	guard  *urlguard.Guard
}

func newHTTPForwarder(guard *urlguard.Guard) *httpForwarder {
	return &httpForwarder{client: &http.Client{}, guard: guard}
}

func (f *httpForwarder) Forward(ctx context.Context, url string, payload gear.ForwardPayload) error {
	parsed, err := f.guard.ValidateHTTPURL(ctx, url)
	if err != nil {
		return err
	}

	deadline := urlguard.WithTimeout(ctx, urlguard.DefaultTimeout)
	defer deadline.Cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return errs.Wrap(errs.BadRequest, "failed to marshal forward payload", err)
	}

	req, err := http.NewRequestWithContext(deadline.Ctx, http.MethodPost, parsed.String(), bytes.NewReader(body))
	if err != nil {
		return errs.Wrap(errs.InvalidURL, "failed to build forward request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return errs.Wrap(errs.HTTPStatus, "forward request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errs.HTTPStatusErr(resp.StatusCode, "forward target returned non-2xx")
	}
	return nil
}
