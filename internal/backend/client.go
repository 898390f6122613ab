package backend

import (
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

	"github.com/go-kratos/kratos/v2/log"

	"github.com/intelligrit/durian-map/internal/model"
)

// Source is the read side of the orchard data service.
type Source interface {
	List(ctx context.Context) ([]model.Orchard, error)
	Get(ctx context.Context, id int64) (*model.Orchard, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.Orchard, error)
}

// FetchError is a failed orchard fetch. StatusCode is 0 for transport
// failures.
type FetchError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("orchard service returned status %d: %s", e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("orchard service returned status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("orchard service unreachable: %v", e.Err)
	}
	return "orchard fetch failed: " + e.Message
}

func (e *FetchError) Unwrap() error {
	return e.Err
}


// envelope is the backend's response wrapper.
type envelope[T any] struct {
	Success bool    `json:"success"`
	Code    int     `json:"code"`
	Message string  `json:"message"`
	Error   *string `json:"error"`
	Data    T       `json:"data"`
}

// Client talks to the orchard REST API.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client

	log *log.Helper
}

// NewClient creates a client for baseURL (for example "http://host/api").
func NewClient(baseURL, token string, timeout time.Duration, logger log.Logger) *Client {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: timeout},
		log:        log.NewHelper(logger),
	}
}

// List returns every orchard. Records that cannot be decoded are skipped.
func (c *Client) List(ctx context.Context) ([]model.Orchard, error) {
	return c.list(ctx, nil)
}

// ListByOwner returns the orchards owned by ownerID.
func (c *Client) ListByOwner(ctx context.Context, ownerID string) ([]model.Orchard, error) {
	return c.list(ctx, url.Values{"ownerId": {ownerID}})
}

func (c *Client) list(ctx context.Context, query url.Values) ([]model.Orchard, error) {
	var env envelope[[]json.RawMessage]
	if err := c.get(ctx, "/orchards", query, &env); err != nil {
		return nil, err
	}
	list := make([]model.Orchard, 0, len(env.Data))
	for i, raw := range env.Data {
		o, err := c.decodeOrchard(raw)
		if err != nil {
			c.log.Warnf("skipping orchard record %d: %v", i, err)
			continue
		}
		list = append(list, o)
	}
	return list, nil
}

// Get returns one orchard, or nil when the service does not know id.
func (c *Client) Get(ctx context.Context, id int64) (*model.Orchard, error) {
	var env envelope[json.RawMessage]
	err := c.get(ctx, "/orchards/"+strconv.FormatInt(id, 10), nil, &env)
	var fe *FetchError
	if errors.As(err, &fe) && fe.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, nil
	}
	o, err := c.decodeOrchard(env.Data)
	if err != nil {
		return nil, &FetchError{StatusCode: http.StatusOK, Message: "malformed response", Err: err}
	}
	return &o, nil
}

// wireOrchard shadows Types so that service types this build does not know
// are dropped instead of failing the record.
type wireOrchard struct {
	model.Orchard
	Types []string `json:"types"`
}

func (c *Client) decodeOrchard(raw json.RawMessage) (model.Orchard, error) {
	var w wireOrchard
	if err := json.Unmarshal(raw, &w); err != nil {
		return model.Orchard{}, err
	}
	o := w.Orchard
	o.Types = make([]model.OrchardType, 0, len(w.Types))
	for _, name := range w.Types {
		t, err := model.ParseOrchardType(name)
		if err != nil {
			c.log.Warnf("orchard %d: ignoring %v", o.ID, err)
			continue
		}
		o.Types = append(o.Types, t)
	}
	return o, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &FetchError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		var env envelope[json.RawMessage]
		json.Unmarshal(body, &env)
		return &FetchError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &FetchError{StatusCode: resp.StatusCode, Message: "malformed response", Err: err}
	}
	return nil
}
