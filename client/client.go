// Package client is a typed client for the record procedures with an
// in-process query cache that follows the server's invalidation rules.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"clinic-records/cachekeys"
	"clinic-records/handlers"
	"clinic-records/models"
	"clinic-records/schema"

	"github.com/go-resty/resty/v2"
)

const rpcPath = "/api/trpc/"

type Option func(*Client)

// WithToken sends token as a bearer session token.
func WithToken(token string) Option {
	return func(c *Client) {
		if token != "" {
			c.http.SetAuthToken(token)
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

type Client struct {
	http  *resty.Client
	cache *QueryCache

	mu      sync.Mutex
	pending map[string]bool
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetRetryCount(0).
			SetTimeout(10 * time.Second),
		cache:   NewQueryCache(),
		pending: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cache exposes the query cache, mainly for inspection.
func (c *Client) Cache() *QueryCache {
	return c.cache
}

// Pending reports whether a call to the mutation procedure is running.
func (c *Client) Pending(procedure string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[procedure]
}

func (c *Client) ListRecords(ctx context.Context, in schema.ListRecordsInput) (handlers.ListRecordsOutput, error) {
	var out handlers.ListRecordsOutput
	err := query(ctx, c, cachekeys.RecordAll, in, true, &out)
	return out, err
}

// GetRecord returns nil without error when the record does not exist.
func (c *Client) GetRecord(ctx context.Context, id string) (*handlers.RecordDetail, error) {
	var out *handlers.RecordDetail
	err := query(ctx, c, cachekeys.RecordSpecific, id, true, &out)
	return out, err
}

func (c *Client) Suggest(ctx context.Context, prefix string) ([]models.RecordSummary, error) {
	var out []models.RecordSummary
	err := query(ctx, c, cachekeys.RecordSuggest, schema.SuggestInput{Prefix: prefix}, false, &out)
	return out, err
}

func (c *Client) AddRecord(ctx context.Context, in schema.Record) (handlers.RecordResponse, error) {
	return mutate(ctx, c, cachekeys.RecordAdd, in, func(out handlers.RecordResponse) string { return out.ID })
}

func (c *Client) EditRecord(ctx context.Context, in schema.RecordEdit) (handlers.RecordResponse, error) {
	return mutate(ctx, c, cachekeys.RecordEdit, in, func(out handlers.RecordResponse) string { return out.ID })
}

func (c *Client) DeleteRecord(ctx context.Context, id string) (handlers.RecordResponse, error) {
	return mutate(ctx, c, cachekeys.RecordDelete, id, func(handlers.RecordResponse) string { return id })
}

func (c *Client) AddTransaction(ctx context.Context, in schema.TransactionAdd) (models.Transaction, error) {
	return mutate(ctx, c, cachekeys.TransactionAdd, in, entryOwner)
}

func (c *Client) EditTransaction(ctx context.Context, in schema.TransactionEdit) (models.Transaction, error) {
	return mutate(ctx, c, cachekeys.TransactionEdit, in, entryOwner)
}

func (c *Client) DeleteTransaction(ctx context.Context, id string) (models.Transaction, error) {
	return mutate(ctx, c, cachekeys.TransactionDelete, id, entryOwner)
}

func entryOwner(out models.Transaction) string {
	return out.RecordID
}

func validate(in any) error {
	if id, ok := in.(string); ok {
		return schema.ValidateID(id)
	}
	return schema.Validate(in)
}

func query[O any](ctx context.Context, c *Client, procedure string, in any, cached bool, out *O) error {
	if err := validate(in); err != nil {
		return err
	}

	key := cachekeys.Key(procedure, in)
	if cached {
		if raw, ok := c.cache.Get(key); ok {
			return json.Unmarshal(raw, out)
		}
	}

	var ticket uint64
	if cached {
		ticket = c.cache.Begin(key)
	}

	input, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s input: %w", procedure, err)
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("input", string(input)).
		Get(rpcPath + procedure)
	if err != nil {
		return fmt.Errorf("%s: %w", procedure, err)
	}

	data, err := decode(resp)
	if err != nil {
		return err
	}
	if cached {
		c.cache.Store(key, ticket, data)
	}
	return json.Unmarshal(data, out)
}

func mutate[I, O any](ctx context.Context, c *Client, procedure string, in I, touched func(O) string) (O, error) {
	var out O
	if err := validate(in); err != nil {
		return out, err
	}

	c.mu.Lock()
	if c.pending[procedure] {
		c.mu.Unlock()
		return out, ErrMutationInFlight
	}
	c.pending[procedure] = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, procedure)
		c.mu.Unlock()
	}()

	body, err := json.Marshal(in)
	if err != nil {
		return out, fmt.Errorf("encode %s input: %w", procedure, err)
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(rpcPath + procedure)
	if err != nil {
		return out, fmt.Errorf("%s: %w", procedure, err)
	}

	data, err := decode(resp)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode %s output: %w", procedure, err)
	}

	for _, prefix := range cachekeys.Invalidates(cachekeys.Mutation{Procedure: procedure, RecordID: touched(out)}) {
		c.cache.Invalidate(prefix)
	}
	return out, nil
}

type envelope struct {
	Result *struct {
		Data json.RawMessage `json:"data"`
	} `json:"result"`
	Error *Error `json:"error"`
}

func decode(resp *resty.Response) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, &Error{
			Status:  resp.StatusCode(),
			Code:    CodeInternal,
			Message: fmt.Sprintf("unexpected response (%s)", resp.Status()),
		}
	}
	if env.Error != nil {
		env.Error.Status = resp.StatusCode()
		return nil, env.Error
	}
	if env.Result == nil {
		return nil, &Error{Status: resp.StatusCode(), Code: CodeInternal, Message: "response has no result"}
	}
	return env.Result.Data, nil
}
