// Package backend is the HTTP client for the storefront API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"julianmorley.ca/con-plar/topup-storefront/pkg/global"
	"julianmorley.ca/con-plar/topup-storefront/pkg/models"
)

// Client talks to the storefront backend. The server session lives in the cookie jar.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[struct{}]
}

const breakerFailures = 5

func NewClient(baseURL string, timeout time.Duration) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		// Only transport failures trip the breaker; 4xx answers mean the backend is up.
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:    "backend",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !errors.Is(err, global.ErrNetwork)
			},
		}),
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type sessionEnvelope struct {
	Usuario *models.Session `json:"usuario"`
	Error   string          `json:"error"`
}

// GET /config
func (c *Client) GetConfig(ctx context.Context) (models.StoreConfig, error) {
	var cfg models.StoreConfig
	err := c.do(ctx, http.MethodGet, "/config", nil, &cfg)
	return cfg, err
}

// GET /productos
func (c *Client) GetProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := c.do(ctx, http.MethodGet, "/productos", nil, &products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

// CurrentUser calls GET /usuario. Any non-success status comes back as ErrAuth.
func (c *Client) CurrentUser(ctx context.Context) (*models.Session, error) {
	var env sessionEnvelope
	if err := c.do(ctx, http.MethodGet, "/usuario", nil, &env); err != nil {
		return nil, err
	}
	if env.Usuario == nil {
		return nil, global.NewServiceError(global.ErrAuth, "", "NO_SESSION")
	}
	return env.Usuario, nil
}

// GET /usuario/historial
func (c *Client) PurchaseHistory(ctx context.Context) ([]models.PurchaseRecord, error) {
	var records []models.PurchaseRecord
	if err := c.do(ctx, http.MethodGet, "/usuario/historial", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// POST /login
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.Session, error) {
	var env sessionEnvelope
	if err := c.do(ctx, http.MethodPost, "/login", req, &env); err != nil {
		return nil, err
	}
	if env.Usuario == nil {
		msg := env.Error
		if msg == "" {
			msg = "Credenciales inválidas"
		}
		return nil, &global.ServiceError{Err: global.ErrAuth, Message: msg, Code: "LOGIN_FAILED"}
	}
	return env.Usuario, nil
}

// POST /registro
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) error {
	var env sessionEnvelope
	if err := c.do(ctx, http.MethodPost, "/registro", req, &env); err != nil {
		return err
	}
	if env.Error != "" {
		return &global.ServiceError{Err: global.ErrValidation, Message: env.Error, Code: "REGISTER_FAILED"}
	}
	return nil
}

// POST /logout
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/logout", nil, nil)
}

// CreateOrder calls POST /orden. 401 means the session expired.
func (c *Client) CreateOrder(ctx context.Context, order models.OrderRequest) error {
	return c.do(ctx, http.MethodPost, "/orden", order, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.send(ctx, method, path, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &global.ServiceError{Err: fmt.Errorf("%w: %v", global.ErrNetwork, err), Message: "No se pudo conectar con el servidor.", Code: "BACKEND_UNAVAILABLE"}
	}
	return err
}

func (c *Client) send(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return global.NewServiceError(global.ErrNetwork, "failed to marshal request", "MARSHAL_ERROR")
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return global.NewServiceError(global.ErrNetwork, "failed to create request", "REQUEST_ERROR")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &global.ServiceError{Err: fmt.Errorf("%w: %v", global.ErrNetwork, err), Code: "HTTP_ERROR"}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return global.NewServiceError(global.ErrNetwork, "failed to decode response", "DECODE_ERROR")
	}
	return nil
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body errorBody
	_ = json.Unmarshal(raw, &body)
	msg := body.Error
	if msg == "" {
		msg = body.Message
	}

	kind := global.ErrNetwork
	code := "BACKEND_ERROR"
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = global.ErrAuth
		code = "UNAUTHORIZED"
	case http.StatusNotFound:
		kind = global.ErrNotFound
		code = "NOT_FOUND"
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		kind = global.ErrValidation
		code = "REJECTED"
	}
	if msg == "" {
		msg = fmt.Sprintf("el servidor respondió %d", resp.StatusCode)
	}
	return global.NewServiceError(kind, msg, code)
}
