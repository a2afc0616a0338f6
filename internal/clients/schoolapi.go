package clients

import (
	"bytes"
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

	"school-admin/internal/domain"
)

// APIError is a non-2xx answer from the school API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("school api %s %s: http status %d", e.Method, e.Path, e.StatusCode)
}

type SchoolAPIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SchoolAPIClient talks to the school backend that owns leads, fee records and receipts.
type SchoolAPIClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewSchoolAPIClient(cfg SchoolAPIConfig) *SchoolAPIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SchoolAPIClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type leadPayload struct {
	UUID         string `json:"uuid"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	MobileNumber string `json:"mobileNumber"`
	CustomID     string `json:"customId"`
	Category     string `json:"category"`
	Status       string `json:"status"`
}

func (p leadPayload) toDomain() domain.Lead {
	return domain.Lead{
		UUID:     p.UUID,
		FullName: p.FirstName + " " + p.LastName,
		Email:    p.Email,
		Phone:    p.MobileNumber,
		CustomID: p.CustomID,
		Category: p.Category,
		Status:   domain.LeadStatus(p.Status),
	}
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

type countResponse struct {
	Count int `json:"count"`
}

type statusUpdate struct {
	UUID   string `json:"uuid"`
	Status string `json:"status"`
}

// ListLeadsByStatus fetches one page of leads for a status tab.
func (c *SchoolAPIClient) ListLeadsByStatus(ctx context.Context, status domain.LeadStatus, page domain.Page) ([]domain.Lead, error) {
	q := url.Values{}
	q.Set("status", string(status))
	q.Set("offset", strconv.Itoa(page.Offset))
	q.Set("pageSize", strconv.Itoa(page.PageSize))

	var env envelope
	if err := c.getJSON(ctx, "/form/status", q, &env); err != nil {
		return nil, err
	}
	payloads, err := decodeOneOrMany[leadPayload](env.Data)
	if err != nil {
		return nil, fmt.Errorf("decode leads: %w", err)
	}

	out := make([]domain.Lead, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, p.toDomain())
	}
	return out, nil
}

func (c *SchoolAPIClient) CountLeads(ctx context.Context, status domain.LeadStatus) (int, error) {
	q := url.Values{}
	q.Set("status", string(status))

	var resp countResponse
	if err := c.getJSON(ctx, "/form/count", q, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *SchoolAPIClient) UpdateLeadStatus(ctx context.Context, uuid string, status domain.LeadStatus) error {
	q := url.Values{}
	q.Set("uuid", uuid)
	q.Set("status", string(status))
	return c.sendJSON(ctx, http.MethodPatch, "/form/updateStatus", q, statusUpdate{UUID: uuid, Status: string(status)})
}

// ListFeeRecords fetches the fee records of every class.
func (c *SchoolAPIClient) ListFeeRecords(ctx context.Context) ([]domain.FeeRecord, error) {
	var env envelope
	if err := c.getJSON(ctx, "/form/getAllClass/receipt", nil, &env); err != nil {
		return nil, err
	}
	recs, err := decodeOneOrMany[domain.FeeRecord](env.Data)
	if err != nil {
		return nil, fmt.Errorf("decode fee records: %w", err)
	}
	return recs, nil
}

func (c *SchoolAPIClient) ListFeeRecordsByClass(ctx context.Context, class string) ([]domain.FeeRecord, error) {
	q := url.Values{}
	q.Set("class", class)

	var env envelope
	if err := c.getJSON(ctx, "/form/getClassName", q, &env); err != nil {
		return nil, err
	}
	recs, err := decodeOneOrMany[domain.FeeRecord](env.Data)
	if err != nil {
		return nil, fmt.Errorf("decode fee records: %w", err)
	}
	return recs, nil
}

// ListReceipts fetches every receipt; the endpoint answers with an array or a single object.
func (c *SchoolAPIClient) ListReceipts(ctx context.Context) ([]domain.Receipt, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/fee-receipt-generate", nil, &raw); err != nil {
		return nil, err
	}
	recs, err := decodeOneOrMany[domain.Receipt](raw)
	if err != nil {
		return nil, fmt.Errorf("decode receipts: %w", err)
	}
	return recs, nil
}

// FindReceipt looks a receipt up by custom id. Any non-2xx answer means the
// receipt does not exist yet and is reported as domain.ErrReceiptNotFound.
func (c *SchoolAPIClient) FindReceipt(ctx context.Context, customID string) (*domain.Receipt, error) {
	q := url.Values{}
	q.Set("customId", customID)

	var rec domain.Receipt
	err := c.getJSON(ctx, "/fee-receipt-generate/byId", q, &rec)
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return nil, domain.ErrReceiptNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *SchoolAPIClient) CreateReceipt(ctx context.Context, r domain.Receipt) error {
	q := url.Values{}
	q.Set("customId", r.CustomID)
	return c.sendJSON(ctx, http.MethodPost, "/fee-receipt-generate", q, r)
}

func (c *SchoolAPIClient) UpdateReceipt(ctx context.Context, r domain.Receipt) error {
	q := url.Values{}
	q.Set("customId", r.CustomID)
	return c.sendJSON(ctx, http.MethodPatch, "/fee-receipt-generate", q, r)
}

// DownloadFeeCSV returns the CSV export produced by the school API.
func (c *SchoolAPIClient) DownloadFeeCSV(ctx context.Context) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/form/fee/details/csv", nil, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Method: req.Method, Path: req.URL.Path, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return data, nil
}

func (c *SchoolAPIClient) newRequest(ctx context.Context, method, path string, q url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return req, nil
}

func (c *SchoolAPIClient) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *SchoolAPIClient) sendJSON(ctx context.Context, method, path string, q url.Values, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := c.newRequest(ctx, method, path, q, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *SchoolAPIClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &APIError{Method: req.Method, Path: req.URL.Path, StatusCode: resp.StatusCode}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// decodeOneOrMany accepts a JSON array, a single object or null.
func decodeOneOrMany[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}
	if trimmed[0] == '[' {
		var many []T
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return nil, err
		}
		return many, nil
	}
	var one T
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, err
	}
	return []T{one}, nil
}
