package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

type TestClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewTestClient(t *testing.T) *TestClient {
	t.Helper()

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New failed: %v", err)
	}

	return &TestClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
		},
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

type UserDTO struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	TokenVersion int64  `json:"token_version"`
	IsActive     bool   `json:"is_active"`
}

type JwtAccessToken struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenVersion int64  `json:"token_version"`
}

type AuthLoginResponse struct {
	User  UserDTO        `json:"user"`
	Token JwtAccessToken `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type MedicineDTO struct {
	ID           int64   `json:"id"`
	SKU          string  `json:"sku"`
	Name         string  `json:"name"`
	Manufacturer string  `json:"manufacturer"`
	Price        float64 `json:"price"`
	Quantity     int64   `json:"quantity"`
	ExpiryDate   string  `json:"expiry_date"`
}

type MedicineListResponse struct {
	Items []MedicineDTO `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

type MedicineCreateRequest struct {
	SKU          string  `json:"sku"`
	Name         string  `json:"name"`
	Manufacturer string  `json:"manufacturer"`
	Price        float64 `json:"price"`
	Quantity     int64   `json:"quantity"`
	ExpiryDate   string  `json:"expiry_date,omitempty"`
}

type MedicineUpdateRequest struct {
	SKU          string  `json:"sku"`
	Name         string  `json:"name"`
	Manufacturer string  `json:"manufacturer"`
	Price        float64 `json:"price"`
	ExpiryDate   string  `json:"expiry_date,omitempty"`
}

type StockAdjustRequest struct {
	ChangeAmount int64  `json:"change_amount"`
	Reason       string `json:"reason,omitempty"`
	ChangedBy    string `json:"changed_by,omitempty"`
}

type StockAdjustResponse struct {
	Success  bool        `json:"success"`
	Medicine MedicineDTO `json:"medicine"`
}

type StockHistoryDTO struct {
	ID           int64  `json:"id"`
	MedicineID   int64  `json:"medicine_id"`
	ChangeAmount int64  `json:"change_amount"`
	Reason       string `json:"reason"`
	ChangedBy    string `json:"changed_by"`
	ChangedAt    string `json:"changed_at"`
}

func (c *TestClient) doJSON(
	ctx context.Context,
	t *testing.T,
	method string,
	path string,
	bearer string,
	bodyBytes []byte,
) (*http.Response, []byte) {
	t.Helper()

	var reqBody io.Reader
	if bodyBytes != nil {
		reqBody = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		t.Fatalf("http.NewRequest failed: %v", err)
	}

	if bodyBytes != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		t.Fatalf("HTTP.Do failed: %v", err)
	}

	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}

	return resp, data
}

func requireStatus(t *testing.T, resp *http.Response, want int, body []byte) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("status=%d want=%d body=%s", resp.StatusCode, want, string(body))
	}
}

func mustDecodeError(t *testing.T, body []byte) ErrorResponse {
	t.Helper()
	var v ErrorResponse
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("json.Unmarshal(ErrorResponse) failed: %v body=%s", err, string(body))
	}
	return v
}

func mustDecodeSuccess(t *testing.T, body []byte) SuccessResponse {
	t.Helper()
	var v SuccessResponse
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("json.Unmarshal(SuccessResponse) failed: %v body=%s", err, string(body))
	}
	return v
}

func mustDecodeLogin(t *testing.T, body []byte) AuthLoginResponse {
	t.Helper()
	var v AuthLoginResponse
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("json.Unmarshal(AuthLoginResponse) failed: %v body=%s", err, string(body))
	}
	return v
}

func mustDecodeMedicine(t *testing.T, body []byte) MedicineDTO {
	t.Helper()
	var v MedicineDTO
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("json.Unmarshal(MedicineDTO) failed: %v body=%s", err, string(body))
	}
	return v
}

func mustDecodeMedicineList(t *testing.T, body []byte) MedicineListResponse {
	t.Helper()
	var v MedicineListResponse
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("json.Unmarshal(MedicineListResponse) failed: %v body=%s", err, string(body))
	}
	return v
}

func mustDecodeAdjust(t *testing.T, body []byte) StockAdjustResponse {
	t.Helper()
	var v StockAdjustResponse
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("json.Unmarshal(StockAdjustResponse) failed: %v body=%s", err, string(body))
	}
	return v
}

func mustDecodeHistory(t *testing.T, body []byte) []StockHistoryDTO {
	t.Helper()
	var v []StockHistoryDTO
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("json.Unmarshal([]StockHistoryDTO) failed: %v body=%s", err, string(body))
	}
	return v
}

func toStr(v int64) string {
	return strconv.FormatInt(v, 10)
}

func adminLogin(t *testing.T, c *TestClient, ctx context.Context) string {
	t.Helper()

	//管理者でログインしてaccess_tokenを取得
	req := LoginRequest{Email: "a@example.com", Password: "password123"}
	b, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("json.Marshal(LoginRequest) failed: %v", err)
	}

	resp, body := c.doJSON(ctx, t, http.MethodPost, "/auth/login", "", b)

	//200OKであることを確認
	requireStatus(t, resp, http.StatusOK, body)

	//JSONを構造体に変換し、tokenが空じゃないことを確認
	login := mustDecodeLogin(t, body)
	if strings.TrimSpace(login.Token.AccessToken) == "" {
		t.Fatalf("access token is empty: body=%s", string(body))
	}

	return login.Token.AccessToken
}

// ユニークなSKUの医薬品を作ってIDを返す共通ヘルパー。
func createMedicine(t *testing.T, c *TestClient, ctx context.Context, access string, name string, quantity int64) int64 {
	t.Helper()

	sku := "E2E-" + time.Now().Format("20060102-150405.000000000")
	create := MedicineCreateRequest{
		SKU:          sku,
		Name:         name,
		Manufacturer: "e2e pharma",
		Price:        980,
		Quantity:     quantity,
	}
	createJSON, _ := json.Marshal(create)
	resp, body := c.doJSON(ctx, t, http.MethodPost, "/admin/medicines", access, createJSON)
	requireStatus(t, resp, http.StatusOK, body)
	_ = mustDecodeSuccess(t, body)

	// 作成APIはmessageしか返さないので、SKUで検索してIDを拾う
	resp, body = c.doJSON(ctx, t, http.MethodGet, "/medicines?page=1&limit=20&q="+sku, "", nil)
	requireStatus(t, resp, http.StatusOK, body)
	list := mustDecodeMedicineList(t, body)
	if len(list.Items) == 0 {
		t.Fatalf("medicine not found after create: sku=%s body=%s", sku, string(body))
	}
	return list.Items[0].ID
}
