package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// ============================================================================
// 签名服务客户端
// ============================================================================
//
// 分发账户和合约管理员的私钥不进入本服务。
// 需要签名的操作（支付、manageData、合约调用）通过 JSON-RPC 2.0
// 交给签名 sidecar 构建、签名并提交。
//
// 账本拒绝交易时，sidecar 在 error.data 中原样返回 Horizon 的错误体，
// 这里从中提取结果码，生成 RejectionError。
//
// ============================================================================

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      uint64        `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError JSON-RPC 错误对象
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("signer rpc error %d: %s", e.Code, e.Message)
}

type SignerClient struct {
	rpcURL     string
	httpClient *http.Client
	nextID     atomic.Uint64
}

func NewSignerClient(rpcURL string, timeout time.Duration) *SignerClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &SignerClient{
		rpcURL:     rpcURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Call 发起一次 JSON-RPC 调用
func (c *SignerClient) Call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response (status %d): %w", resp.StatusCode, err)
	}

	if rpcResp.Error != nil {
		if rejection, ok := parseRejection(rpcResp.Error.Data); ok {
			if rejection.Detail == "" {
				rejection.Detail = rpcResp.Error.Message
			}
			return nil, rejection
		}
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

func (c *SignerClient) SubmitPayment(ctx context.Context, req PaymentRequest) (*Receipt, error) {
	return c.callForReceipt(ctx, "submitPayment", req)
}

func (c *SignerClient) SubmitManageData(ctx context.Context, req ManageDataRequest) (*Receipt, error) {
	return c.callForReceipt(ctx, "submitManageData", req)
}

func (c *SignerClient) Simulate(ctx context.Context, call ContractCall) (*Simulation, error) {
	result, err := c.Call(ctx, "simulateInvocation", call)
	if err != nil {
		return nil, err
	}

	var sim Simulation
	if err := json.Unmarshal(result, &sim); err != nil {
		return nil, fmt.Errorf("unmarshal simulation: %w", err)
	}
	return &sim, nil
}

func (c *SignerClient) Send(ctx context.Context, call ContractCall, sim *Simulation) (*Receipt, error) {
	result, err := c.Call(ctx, "sendInvocation", call, sim)
	if err != nil {
		return nil, err
	}

	var sent struct {
		Hash        string `json:"hash"`
		ErrorResult string `json:"error_result"`
	}
	if err := json.Unmarshal(result, &sent); err != nil {
		return nil, fmt.Errorf("unmarshal send result: %w", err)
	}
	if sent.ErrorResult != "" {
		return nil, &RejectionError{Transaction: sent.ErrorResult}
	}
	return &Receipt{TxHash: sent.Hash}, nil
}

func (c *SignerClient) callForReceipt(ctx context.Context, method string, params interface{}) (*Receipt, error) {
	result, err := c.Call(ctx, method, params)
	if err != nil {
		return nil, err
	}

	var receipt Receipt
	if err := json.Unmarshal(result, &receipt); err != nil {
		return nil, fmt.Errorf("unmarshal receipt: %w", err)
	}
	if receipt.TxHash == "" {
		return nil, fmt.Errorf("签名服务未返回交易哈希")
	}
	return &receipt, nil
}
