package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Product struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	Image       string    `json:"image"`
	InStock     bool      `json:"inStock"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type NewProduct struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Category    string   `json:"category"`
	Image       string   `json:"image,omitempty"`
	InStock     *bool    `json:"inStock,omitempty"`
}

// ProductChanges sends only the non-nil fields.
type ProductChanges struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Image       *string  `json:"image,omitempty"`
	InStock     *bool    `json:"inStock,omitempty"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *Session

	// Store persists the session across processes; nil keeps it in memory only.
	Store SessionStore
}

func NewClient(baseURL string, session *Session) *Client {
	if session == nil {
		session = NewSession()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: session,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *Client) Session() *Session {
	return c.session
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if tok := c.session.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &APIError{Status: resp.StatusCode, Message: payload.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) Signup(ctx context.Context, name, email, password string) (*User, error) {
	var res struct {
		User User `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/signup", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res.User, nil
}

// Login exchanges credentials for a token and records it in the session
// and, when configured, the store.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var res struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
		User      User      `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &res)
	if err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, fmt.Errorf("login: empty token in response")
	}

	c.session.Set(res.Token, res.User)
	if c.Store != nil {
		if err := c.Store.Save(c.session.snapshot()); err != nil {
			return &res.User, err
		}
	}
	return &res.User, nil
}

// Logout forgets the session locally. Tokens are stateless, so the server
// is not contacted.
func (c *Client) Logout() error {
	c.session.Clear()
	if c.Store != nil {
		return c.Store.Clear()
	}
	return nil
}

func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	var items []Product
	if err := c.do(ctx, http.MethodGet, "/products", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func productPath(id string) string {
	return "/products/" + url.PathEscape(id)
}

type productResponse struct {
	Success bool    `json:"success"`
	Product Product `json:"product"`
}

func (c *Client) GetProduct(ctx context.Context, id string) (*Product, error) {
	var res productResponse
	if err := c.do(ctx, http.MethodGet, productPath(id), nil, &res); err != nil {
		return nil, err
	}
	return &res.Product, nil
}

func (c *Client) CreateProduct(ctx context.Context, p NewProduct) (*Product, error) {
	var res productResponse
	if err := c.do(ctx, http.MethodPost, "/products", p, &res); err != nil {
		return nil, err
	}
	return &res.Product, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id string, ch ProductChanges) (*Product, error) {
	var res productResponse
	if err := c.do(ctx, http.MethodPut, productPath(id), ch, &res); err != nil {
		return nil, err
	}
	return &res.Product, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, productPath(id), nil, nil)
}
