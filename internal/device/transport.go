package device

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"
)

type Transport interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// RPCError is an error object returned by the gateway itself, as opposed to
// a failure reaching it.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("gateway error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func request(method string, params any) ([]byte, error) {
	return json.Marshal(map[string]any{"jsonrpc": "2.0", "id": 1, "method": method, "params": params})
}

type HTTPTransport struct {
	Endpoint string
	Username string
	Password string
	Timeout  time.Duration
	Client   *http.Client
}

func DefaultHTTPTransport(endpoint string) *HTTPTransport {
	return &HTTPTransport{Endpoint: endpoint, Timeout: 5 * time.Second}
}

func (t *HTTPTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	data, err := request(method, params)
	if err != nil {
		return nil, err
	}
	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: t.Timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.Username != "" {
		req.SetBasicAuth(t.Username, t.Password)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("gateway status %d", resp.StatusCode)
	}
	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, err
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

// StdioTransport runs the gateway command once per call, writing the request
// to stdin and reading the response from stdout.
type StdioTransport struct {
	Command string
	Args    []string
	Timeout time.Duration
}

func DefaultStdioTransport(cmd string, args []string) *StdioTransport {
	return &StdioTransport{Command: cmd, Args: args, Timeout: 5 * time.Second}
}

func (t *StdioTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	data, err := request(method, params)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, t.Command, t.Args...)
	cmd.Stdin = strings.NewReader(string(data))
	output, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	var resp rpcResponse
	if err := json.Unmarshal(output, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

var errEmptyResult = errors.New("empty result")
