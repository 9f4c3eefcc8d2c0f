package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"reflect"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/scopeproxy/factory"
	"github.com/chazu/scopeproxy/model"
	"github.com/chazu/scopeproxy/proxy"
)

// Procedure paths served by ProxyService.
const (
	CreateProcedure   = "/scopeproxy.v1.ProxyService/Create"
	CallProcedure     = "/scopeproxy.v1.ProxyService/Call"
	GetProcedure      = "/scopeproxy.v1.ProxyService/Get"
	SetProcedure      = "/scopeproxy.v1.ProxyService/Set"
	SnapshotProcedure = "/scopeproxy.v1.ProxyService/Snapshot"
	RestoreProcedure  = "/scopeproxy.v1.ProxyService/Restore"
	ReleaseProcedure  = "/scopeproxy.v1.ProxyService/Release"
)

// ProxyService drives proxies of registered types remotely. Proxies live
// in a HandleStore and are addressed by handle.
type ProxyService struct {
	factory *factory.Factory
	handles *HandleStore
}

// NewProxyService creates a ProxyService.
func NewProxyService(f *factory.Factory, handles *HandleStore) *ProxyService {
	return &ProxyService{factory: f, handles: handles}
}

// Create wraps a zero instance of {"typeId": ...} and returns its handle.
// The type must be registered with the factory.
func (s *ProxyService) Create(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	typeID, err := requireString(req.Msg, "typeId")
	if err != nil {
		return nil, err
	}
	t, ok := s.factory.Registry().Lookup(typeID)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("%w: type %s is not registered", model.ErrUnsupportedTarget, typeID))
	}
	p, err := s.factory.CreateProxy(reflect.New(t).Interface(), nil, nil)
	if err != nil {
		return nil, connectError(err)
	}
	return s.handleResponse(p)
}

// Call invokes {"handle", "method", "args": [...]} and returns
// {"result": ...}.
func (s *ProxyService) Call(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	id, err := requireString(req.Msg, "handle")
	if err != nil {
		return nil, err
	}
	method, err := requireString(req.Msg, "method")
	if err != nil {
		return nil, err
	}
	args := req.Msg.GetFields()["args"].GetListValue().AsSlice()

	var result any
	err = s.handles.Do(id, func(p *proxy.Proxy) error {
		var err error
		result, err = p.Call(method, args...)
		return err
	})
	if err != nil {
		return nil, connectError(err)
	}
	return valueResponse("result", result)
}

// Get reads {"handle", "property"} and returns {"value": ...}.
func (s *ProxyService) Get(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	id, err := requireString(req.Msg, "handle")
	if err != nil {
		return nil, err
	}
	name, err := requireString(req.Msg, "property")
	if err != nil {
		return nil, err
	}

	var value any
	err = s.handles.Do(id, func(p *proxy.Proxy) error {
		var err error
		value, err = p.Get(name)
		return err
	})
	if err != nil {
		return nil, connectError(err)
	}
	return valueResponse("value", value)
}

// Set writes {"handle", "property", "value"}. The value is decoded into the
// property's current dynamic type.
func (s *ProxyService) Set(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	id, err := requireString(req.Msg, "handle")
	if err != nil {
		return nil, err
	}
	name, err := requireString(req.Msg, "property")
	if err != nil {
		return nil, err
	}
	raw := req.Msg.GetFields()["value"]

	err = s.handles.Do(id, func(p *proxy.Proxy) error {
		current, err := p.Get(name)
		if err != nil {
			return err
		}
		value, err := fromValue(raw, current)
		if err != nil {
			return fmt.Errorf("%w: %v", proxy.ErrTypeMismatch, err)
		}
		return p.Set(name, value)
	})
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&structpb.Struct{}), nil
}

// Snapshot returns {"data": base64} for {"handle"}.
func (s *ProxyService) Snapshot(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	id, err := requireString(req.Msg, "handle")
	if err != nil {
		return nil, err
	}

	var data []byte
	err = s.handles.Do(id, func(p *proxy.Proxy) error {
		var err error
		data, err = p.MarshalBinary()
		return err
	})
	if err != nil {
		return nil, connectError(err)
	}
	return valueResponse("data", base64.StdEncoding.EncodeToString(data))
}

// Restore rebuilds a proxy from {"data": base64} and returns its handle.
func (s *ProxyService) Restore(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	encoded, err := requireString(req.Msg, "data")
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	p, err := s.factory.Restore(data)
	if err != nil {
		return nil, connectError(err)
	}
	return s.handleResponse(p)
}

// Release drops {"handle"} and returns {"released": bool}.
func (s *ProxyService) Release(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	id, err := requireString(req.Msg, "handle")
	if err != nil {
		return nil, err
	}
	return valueResponse("released", s.handles.Release(id))
}

func (s *ProxyService) handleResponse(p *proxy.Proxy) (*connect.Response[structpb.Struct], error) {
	out, err := structpb.NewStruct(map[string]any{
		"handle": s.handles.Create(p),
		"typeId": p.Type().Model().TypeID(),
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

func valueResponse(key string, v any) (*connect.Response[structpb.Struct], error) {
	pv, err := toValue(v)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&structpb.Struct{
		Fields: map[string]*structpb.Value{key: pv},
	}), nil
}
