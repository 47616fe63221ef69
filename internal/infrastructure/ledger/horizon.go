package ledger

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// HorizonClient 通过 Horizon REST 接口读取账户
type HorizonClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHorizonClient(baseURL string, timeout time.Duration) *HorizonClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HorizonClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// LoadAccount GET /accounts/{id}
func (c *HorizonClient) LoadAccount(ctx context.Context, accountID string) (*AccountSnapshot, error) {
	endpoint := c.baseURL + "/accounts/" + url.PathEscape(accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrAccountNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("horizon 返回 %d: %s", resp.StatusCode, gjson.GetBytes(body, "detail").String())
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("horizon 返回了无效的 JSON")
	}

	return parseAccount(body)
}

func parseAccount(body []byte) (*AccountSnapshot, error) {
	doc := gjson.ParseBytes(body)
	account := &AccountSnapshot{
		ID:       doc.Get("account_id").String(),
		Sequence: doc.Get("sequence").String(),
	}

	var parseErr error
	doc.Get("balances").ForEach(func(_, b gjson.Result) bool {
		amount, err := decimal.NewFromString(b.Get("balance").String())
		if err != nil {
			parseErr = fmt.Errorf("解析余额失败: %w", err)
			return false
		}
		account.Balances = append(account.Balances, AssetBalance{
			AssetType:   b.Get("asset_type").String(),
			AssetCode:   b.Get("asset_code").String(),
			AssetIssuer: b.Get("asset_issuer").String(),
			Balance:     amount,
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return account, nil
}

// parseRejection 从 Horizon 错误体中提取结果码：
// extras.result_codes.transaction 和 extras.result_codes.operations（数组或字符串）
func parseRejection(body []byte) (*RejectionError, bool) {
	codes := gjson.GetBytes(body, "extras.result_codes")
	if !codes.Exists() {
		return nil, false
	}

	r := &RejectionError{
		Transaction: codes.Get("transaction").String(),
		Detail:      gjson.GetBytes(body, "detail").String(),
	}
	ops := codes.Get("operations")
	if ops.IsArray() {
		for _, op := range ops.Array() {
			r.Operations = append(r.Operations, op.String())
		}
	} else if ops.String() != "" {
		r.Operations = []string{ops.String()}
	}
	return r, true
}
