package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"voble/internal/chain"
)

func TestAccountInfoMissingAccount(t *testing.T) {
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":null}}`), nil
	})
	_, ok, err := c.AccountInfo(context.Background(), chain.Address{1})
	if err != nil {
		t.Fatalf("AccountInfo() error = %v", err)
	}
	if ok {
		t.Fatal("expected missing account")
	}
}

func TestAccountInfoDecodesBase64(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("hello"))
	var gotMethod string
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(req.Body)
		var r struct {
			Method string `json:"method"`
		}
		_ = json.Unmarshal(body, &r)
		gotMethod = r.Method
		return jsonResponse(200, `{"jsonrpc":"2.0","id":1,"result":{"value":{"data":["`+payload+`","base64"]}}}`), nil
	})
	data, ok, err := c.AccountInfo(context.Background(), chain.Address{1})
	if err != nil || !ok {
		t.Fatalf("AccountInfo() = ok %v err %v", ok, err)
	}
	if string(data) != "hello" {
		t.Fatalf("data = %q, want hello", data)
	}
	if gotMethod != "getAccountInfo" {
		t.Fatalf("method = %q, want getAccountInfo", gotMethod)
	}
}

func TestCallSurfacesProgramLogs(t *testing.T) {
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"jsonrpc":"2.0","id":1,"error":{"code":-32002,"message":"Transaction simulation failed","data":{"err":{"InstructionError":[0,{"Custom":6032}]},"logs":["Program log: AnchorError. Error Code: TicketAlreadyUsed."]}}}`), nil
	})
	err := c.Call(context.Background(), "sendTransaction", nil, nil)
	var rpcErr *Error
	if !errors.As(err, &rpcErr) {
		t.Fatalf("err = %T %v, want *Error", err, err)
	}
	if rpcErr.Code != -32002 || len(rpcErr.Logs) != 1 {
		t.Fatalf("unexpected rpc error: %+v", rpcErr)
	}
	if !IsTicketAlreadyUsed(err) {
		t.Fatalf("IsTicketAlreadyUsed(%v) = false", err)
	}
	if IsNetworkError(err) {
		t.Fatal("program error classified as network error")
	}
}

func TestCallNon2xxIsUnavailable(t *testing.T) {
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(503, `upstream down`), nil
	})
	err := c.Call(context.Background(), "getLatestBlockhash", nil, nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if !IsNetworkError(err) {
		t.Fatal("503 not classified as network error")
	}
}

func TestWithTokenAddsQueryParam(t *testing.T) {
	var gotURL string
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		return jsonResponse(200, `{"jsonrpc":"2.0","id":1,"result":null}`), nil
	})
	if err := c.WithToken("tok-1").Call(context.Background(), "getHealth", nil, nil); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !strings.Contains(gotURL, "token=tok-1") {
		t.Fatalf("url = %q, want token query", gotURL)
	}
	if strings.Contains(c.Endpoint(), "token=") {
		t.Fatalf("WithToken mutated the base client: %q", c.Endpoint())
	}
}

func TestIsProgramRejection(t *testing.T) {
	tests := []struct {
		err  string
		logs []string
		want bool
	}{
		{`{"InstructionError":[0,{"Custom":6031}]}`, nil, true},
		{`"AccountNotFound"`, []string{"Program log: Error Code: InvalidTicketReceipt"}, true},
		{`"AccountNotFound"`, []string{"Program log: Unauthorized"}, true},
		{`"BlockhashNotFound"`, nil, false},
		{``, []string{"Program consumed 200 units"}, false},
	}
	for _, tt := range tests {
		if got := IsProgramRejection(tt.err, tt.logs); got != tt.want {
			t.Fatalf("IsProgramRejection(%q, %v) = %v, want %v", tt.err, tt.logs, got, tt.want)
		}
	}
}

func TestDescribeError(t *testing.T) {
	tests := map[string]string{
		"insufficient lamports for fee":    "Insufficient SOL balance for transaction",
		"Blockhash not found":              "Transaction expired, please try again",
		"account Address already in use":   "Account already exists or is in use",
		"Transaction simulation failed: x": "Transaction simulation failed",
		"User rejected the request":        "Transaction was rejected",
		"something else entirely":          "something else entirely",
	}
	for in, want := range tests {
		if got := DescribeError(errors.New(in)); got != want {
			t.Fatalf("DescribeError(%q) = %q, want %q", in, got, want)
		}
	}
	if got := DescribeError(nil); got != "" {
		t.Fatalf("expected empty for nil, got %q", got)
	}
}

func TestIsTicketAlreadyUsed(t *testing.T) {
	if !IsTicketAlreadyUsed(errors.New(`custom program error: 0x1790`)) {
		t.Fatalf("expected hex code to match")
	}
	if !IsTicketAlreadyUsed(&Error{Message: "failed", Logs: []string{"Error Code: TicketAlreadyUsed. Error Number: 6032."}}) {
		t.Fatalf("expected logs to match")
	}
	if IsTicketAlreadyUsed(errors.New("BlockhashNotFound")) {
		t.Fatalf("unexpected match")
	}
}
