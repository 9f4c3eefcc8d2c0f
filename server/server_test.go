package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/scopeproxy/factory"
	"github.com/chazu/scopeproxy/internal/assets"
)

const (
	valueHolderID = "github.com/chazu/scopeproxy/internal/assets.ValueHolder"
	calculatorID  = "github.com/chazu/scopeproxy/internal/assets.Calculator"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func bg() context.Context {
	return context.Background()
}

func newTestFactory(t *testing.T) *factory.Factory {
	t.Helper()
	f := factory.New()
	for _, instance := range []any{&assets.ValueHolder{}, &assets.Calculator{}} {
		if _, err := f.Model(instance); err != nil {
			t.Fatalf("Model(%T): %v", instance, err)
		}
	}
	return f
}

func msg(t *testing.T, fields map[string]any) *connect.Request[structpb.Struct] {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return connect.NewRequest(s)
}

func expectCode(t *testing.T, err error, code connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", code)
	}
	if got := connect.CodeOf(err); got != code {
		t.Fatalf("expected %v, got %v (%v)", code, got, err)
	}
}

// testClient calls procedures of a running ScopeServer over HTTP.
type testClient struct {
	t   *testing.T
	srv *httptest.Server
}

func newTestClient(t *testing.T, f *factory.Factory) *testClient {
	s := New(f)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		s.Stop()
	})
	return &testClient{t: t, srv: srv}
}

func (c *testClient) call(procedure string, fields map[string]any) (*structpb.Struct, error) {
	client := connect.NewClient[structpb.Struct, structpb.Struct](c.srv.Client(), c.srv.URL+procedure)
	resp, err := client.CallUnary(bg(), msg(c.t, fields))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *testClient) mustCall(procedure string, fields map[string]any) map[string]any {
	c.t.Helper()
	out, err := c.call(procedure, fields)
	if err != nil {
		c.t.Fatalf("%s: %v", procedure, err)
	}
	return out.AsMap()
}

// ---------------------------------------------------------------------------
// ModelService
// ---------------------------------------------------------------------------

func TestDescribe_ValueHolder(t *testing.T) {
	svc := NewModelService(newTestFactory(t))

	resp, err := svc.Describe(bg(), msg(t, map[string]any{"typeId": valueHolderID}))
	if err != nil {
		t.Fatalf("Describe returned error: %v", err)
	}
	out := resp.Msg.AsMap()
	if out["typeId"] != valueHolderID {
		t.Errorf("typeId = %v", out["typeId"])
	}

	props := out["properties"].([]any)
	if len(props) != 1 {
		t.Fatalf("expected 1 property, got %d", len(props))
	}
	value := props[0].(map[string]any)
	if value["name"] != "Value" || value["visibility"] != "public" || value["type"] != "string" {
		t.Errorf("unexpected property %v", value)
	}

	methods := out["methods"].([]any)
	if len(methods) != 1 || methods[0].(map[string]any)["name"] != "Get" {
		t.Errorf("unexpected methods %v", methods)
	}
}

func TestDescribe_Errors(t *testing.T) {
	svc := NewModelService(newTestFactory(t))

	_, err := svc.Describe(bg(), msg(t, map[string]any{}))
	expectCode(t, err, connect.CodeInvalidArgument)

	_, err = svc.Describe(bg(), msg(t, map[string]any{"typeId": "example.com/nowhere.Missing"}))
	expectCode(t, err, connect.CodeFailedPrecondition)
}

func TestGenerate_DefaultContract(t *testing.T) {
	svc := NewModelService(newTestFactory(t))

	resp, err := svc.Generate(bg(), msg(t, map[string]any{"typeId": valueHolderID}))
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	out := resp.Msg.AsMap()
	if out["name"] != "ValueHolderProxy" || out["fileName"] != "valueholderproxy_gen.go" {
		t.Errorf("unexpected source %v / %v", out["name"], out["fileName"])
	}
	if code, _ := out["code"].(string); !strings.Contains(code, "func NewValueHolderProxy(") {
		t.Errorf("generated code lacks constructor:\n%s", code)
	}
	if len(out["fingerprint"].(string)) != 64 {
		t.Errorf("fingerprint = %v", out["fingerprint"])
	}
}

func TestGenerate_RenamedContract(t *testing.T) {
	svc := NewModelService(newTestFactory(t))

	resp, err := svc.Generate(bg(), msg(t, map[string]any{
		"typeId":      valueHolderID,
		"constructor": "Make",
		"setPrefix":   "Before",
		"setSuffix":   "After",
	}))
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	code := resp.Msg.AsMap()["code"].(string)
	for _, want := range []string{"func MakeValueHolderProxy(", ") Before(method string", ") After(method string"} {
		if !strings.Contains(code, want) {
			t.Errorf("generated code lacks %q", want)
		}
	}

	_, err = svc.Generate(bg(), msg(t, map[string]any{"typeId": valueHolderID, "setPrefix": "lower"}))
	expectCode(t, err, connect.CodeInvalidArgument)
}

// ---------------------------------------------------------------------------
// ProxyService over HTTP
// ---------------------------------------------------------------------------

func TestProxyService_Lifecycle(t *testing.T) {
	c := newTestClient(t, newTestFactory(t))

	created := c.mustCall(CreateProcedure, map[string]any{"typeId": valueHolderID})
	h := created["handle"].(string)
	if created["typeId"] != valueHolderID {
		t.Errorf("typeId = %v", created["typeId"])
	}

	c.mustCall(SetProcedure, map[string]any{"handle": h, "property": "Value", "value": "z"})
	if got := c.mustCall(CallProcedure, map[string]any{"handle": h, "method": "Get"})["result"]; got != "z" {
		t.Errorf("Get = %v, want z", got)
	}
	if got := c.mustCall(GetProcedure, map[string]any{"handle": h, "property": "Value"})["value"]; got != "z" {
		t.Errorf("Value = %v, want z", got)
	}

	data := c.mustCall(SnapshotProcedure, map[string]any{"handle": h})["data"].(string)
	restored := c.mustCall(RestoreProcedure, map[string]any{"data": data})["handle"].(string)
	if restored == h {
		t.Fatal("restore reused the original handle")
	}
	if got := c.mustCall(CallProcedure, map[string]any{"handle": restored, "method": "Get"})["result"]; got != "z" {
		t.Errorf("restored Get = %v, want z", got)
	}

	if released := c.mustCall(ReleaseProcedure, map[string]any{"handle": h})["released"]; released != true {
		t.Errorf("released = %v", released)
	}
	_, err := c.call(CallProcedure, map[string]any{"handle": h, "method": "Get"})
	expectCode(t, err, connect.CodeNotFound)
}

func TestProxyService_CallResults(t *testing.T) {
	c := newTestClient(t, newTestFactory(t))
	h := c.mustCall(CreateProcedure, map[string]any{"typeId": calculatorID})["handle"].(string)

	got := c.mustCall(CallProcedure, map[string]any{"handle": h, "method": "DivMod", "args": []any{7, 2}})["result"]
	pair, ok := got.([]any)
	if !ok || len(pair) != 2 || pair[0] != float64(3) || pair[1] != float64(1) {
		t.Errorf("DivMod = %v", got)
	}

	if got := c.mustCall(CallProcedure, map[string]any{"handle": h, "method": "Divide", "args": []any{9, 3}})["result"]; got != float64(3) {
		t.Errorf("Divide = %v", got)
	}

	_, err := c.call(CallProcedure, map[string]any{"handle": h, "method": "Divide", "args": []any{1, 0}})
	expectCode(t, err, connect.CodeUnknown)
	if !strings.Contains(err.Error(), assets.ErrDivideByZero.Error()) {
		t.Errorf("error lost the method's message: %v", err)
	}

	if got := c.mustCall(GetProcedure, map[string]any{"handle": h, "property": "Calls"})["value"]; got != float64(3) {
		t.Errorf("Calls = %v, want 3", got)
	}
	c.mustCall(SetProcedure, map[string]any{"handle": h, "property": "Calls", "value": 10})
	if got := c.mustCall(GetProcedure, map[string]any{"handle": h, "property": "Calls"})["value"]; got != float64(10) {
		t.Errorf("Calls = %v, want 10", got)
	}
}

func TestProxyService_Errors(t *testing.T) {
	c := newTestClient(t, newTestFactory(t))
	h := c.mustCall(CreateProcedure, map[string]any{"typeId": calculatorID})["handle"].(string)

	tests := []struct {
		name      string
		procedure string
		fields    map[string]any
		code      connect.Code
	}{
		{"unregistered type", CreateProcedure, map[string]any{"typeId": "example.com/x.Missing"}, connect.CodeNotFound},
		{"missing handle", CallProcedure, map[string]any{"method": "Divide"}, connect.CodeInvalidArgument},
		{"unknown method", CallProcedure, map[string]any{"handle": h, "method": "Multiply"}, connect.CodeNotFound},
		{"bad arguments", CallProcedure, map[string]any{"handle": h, "method": "Divide", "args": []any{"a", "b"}}, connect.CodeInvalidArgument},
		{"unknown property", GetProcedure, map[string]any{"handle": h, "property": "Missing"}, connect.CodeNotFound},
		{"type mismatch", SetProcedure, map[string]any{"handle": h, "property": "Calls", "value": "many"}, connect.CodeInvalidArgument},
		{"bad snapshot", RestoreProcedure, map[string]any{"data": "!!"}, connect.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.call(tt.procedure, tt.fields)
			expectCode(t, err, tt.code)
		})
	}
}

// ---------------------------------------------------------------------------
// HandleStore
// ---------------------------------------------------------------------------

func TestHandleStore_IDs(t *testing.T) {
	f := newTestFactory(t)
	store := NewHandleStore()

	seen := make(map[string]bool)
	for i := 0; i < 8; i++ {
		p, err := f.CreateProxy(assets.NewValueHolder(), nil, nil)
		if err != nil {
			t.Fatalf("CreateProxy: %v", err)
		}
		id := store.Create(p)
		if seen[id] {
			t.Fatalf("duplicate handle %s", id)
		}
		seen[id] = true

		if !strings.HasPrefix(id, handlePrefix) {
			t.Fatalf("handle %q lacks prefix %q", id, handlePrefix)
		}
		if _, err := uuid.Parse(strings.TrimPrefix(id, handlePrefix)); err != nil {
			t.Errorf("handle %q does not carry a UUID: %v", id, err)
		}
	}
	if store.Len() != 8 {
		t.Errorf("Len = %d, want 8", store.Len())
	}
}

func TestHandleStore_Sweep(t *testing.T) {
	f := newTestFactory(t)
	p, err := f.CreateProxy(assets.NewValueHolder(), nil, nil)
	if err != nil {
		t.Fatalf("CreateProxy: %v", err)
	}

	store := NewHandleStore()
	id := store.Create(p)
	if got, ok := store.Lookup(id); !ok || got != p {
		t.Fatalf("Lookup(%s) = %v, %v", id, got, ok)
	}

	if n := store.Sweep(time.Hour); n != 0 {
		t.Errorf("fresh handle swept (%d)", n)
	}
	time.Sleep(5 * time.Millisecond)
	if n := store.Sweep(time.Millisecond); n != 1 {
		t.Errorf("expected 1 swept handle, got %d", n)
	}
	if store.Len() != 0 {
		t.Errorf("store still holds %d handles", store.Len())
	}
	if store.Release(id) {
		t.Error("releasing a swept handle reported success")
	}
}
