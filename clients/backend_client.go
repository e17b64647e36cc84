package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"storefront-service/models"
)

// ErrNotFound is returned when the backend has no such resource, either by
// answering 404 or by answering with a null body.
var ErrNotFound = errors.New("resource not found")

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// BackendClient is the typed client for the storefront REST backend.
type BackendClient struct {
	gw *GatewayClient
}

func NewBackendClient(gw *GatewayClient) *BackendClient {
	return &BackendClient{gw: gw}
}

func (c *BackendClient) ListProducts(ctx context.Context) ([]models.Product, error) {
	body, err := c.get(ctx, "/products", nil)
	if err != nil {
		return nil, err
	}
	return decodeList[models.Product](body)
}

func (c *BackendClient) GetProduct(ctx context.Context, id string) (models.Product, error) {
	var p models.Product
	body, err := c.get(ctx, "/product/"+url.PathEscape(id), nil)
	if err != nil {
		return p, err
	}
	if isNull(body) {
		return p, ErrNotFound
	}
	if err := decodeObject(body, &p); err != nil {
		return p, err
	}
	if p.ID == "" {
		return p, ErrNotFound
	}
	return p, nil
}

func (c *BackendClient) SearchProducts(ctx context.Context, name string) ([]models.Product, error) {
	body, err := c.get(ctx, "/search", url.Values{"name": {name}})
	if err != nil {
		return nil, err
	}
	return decodeList[models.Product](body)
}

func (c *BackendClient) GetComments(ctx context.Context, id string) (models.Comments, error) {
	var out models.Comments
	body, err := c.get(ctx, "/comment/"+url.PathEscape(id), nil)
	if err != nil {
		return out, err
	}
	if isNull(body) {
		return out, ErrNotFound
	}
	if err := decodeObject(body, &out); err != nil {
		return out, err
	}
	if out.Comments == nil {
		out.Comments = []string{}
	}
	return out, nil
}

func (c *BackendClient) PostComment(ctx context.Context, id string, comment models.NewComment) error {
	_, err := c.send(ctx, http.MethodPost, "/comment/"+url.PathEscape(id), comment)
	return err
}

func (c *BackendClient) ListOrders(ctx context.Context) ([]models.Order, error) {
	body, err := c.get(ctx, "/orders", nil)
	if err != nil {
		return nil, err
	}
	return decodeList[models.Order](body)
}

// CreateOrder persists order and returns the backend's inserted id.
func (c *BackendClient) CreateOrder(ctx context.Context, order models.Order) (string, error) {
	body, err := c.send(ctx, http.MethodPost, "/order", order)
	if err != nil {
		return "", err
	}

	var env models.Envelope[models.CreatedOrder]
	if err := json.Unmarshal(body, &env); err == nil && env.Data.InsertedID != "" {
		return env.Data.InsertedID, nil
	}
	var created models.CreatedOrder
	if err := json.Unmarshal(body, &created); err == nil && created.InsertedID != "" {
		return created.InsertedID, nil
	}
	return "", &APIError{StatusCode: http.StatusBadGateway, Message: "order was not created"}
}

func (c *BackendClient) AddUser(ctx context.Context, user models.UserRecord) error {
	_, err := c.send(ctx, http.MethodPost, "/user", user)
	return err
}

func (c *BackendClient) GetUser(ctx context.Context, email string) (models.UserRecord, error) {
	var u models.UserRecord
	body, err := c.get(ctx, "/user/"+url.PathEscape(email), nil)
	if err != nil {
		return u, err
	}
	if isNull(body) {
		return u, ErrNotFound
	}
	if err := decodeObject(body, &u); err != nil {
		return u, err
	}
	if u.Email == "" {
		return u, ErrNotFound
	}
	return u, nil
}

func (c *BackendClient) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	resp, err := c.gw.Do(ctx, http.MethodGet, path, query, requestHeaders(ctx), nil)
	if err != nil {
		return nil, err
	}
	return checkResponse(resp)
}

func (c *BackendClient) send(ctx context.Context, method, path string, payload any) ([]byte, error) {
	resp, err := c.gw.DoJSON(ctx, method, path, nil, requestHeaders(ctx), payload)
	if err != nil {
		return nil, err
	}
	return checkResponse(resp)
}

func checkResponse(resp *http.Response) ([]byte, error) {
	body, err := ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: ErrorMessage(body, resp.StatusCode)}
	}
	return body, nil
}

// decodeList accepts either a bare JSON array or a {"data": [...]} envelope.
func decodeList[T any](body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	out := []T{}
	if len(trimmed) == 0 || isNull(trimmed) {
		return out, nil
	}
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return out, nil
	}

	var env models.Envelope[[]T]
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if env.Data != nil {
		out = env.Data
	}
	return out, nil
}

// decodeObject accepts either a bare object or a {"data": {...}} envelope.
func decodeObject[T any](body []byte, v *T) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if raw, ok := probe["data"]; ok && len(probe) <= 3 && !isNull(raw) && bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		body = raw
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isNull(b []byte) bool {
	t := bytes.TrimSpace(b)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
