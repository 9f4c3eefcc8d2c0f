package server

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/scopeproxy/artifact"
	"github.com/chazu/scopeproxy/factory"
	"github.com/chazu/scopeproxy/model"
	"github.com/chazu/scopeproxy/proxy"
)

// Procedure paths served by ModelService.
const (
	DescribeProcedure = "/scopeproxy.v1.ModelService/Describe"
	GenerateProcedure = "/scopeproxy.v1.ModelService/Generate"
)

// ModelService answers structural questions about target types.
type ModelService struct {
	factory *factory.Factory
}

// NewModelService creates a ModelService.
func NewModelService(f *factory.Factory) *ModelService {
	return &ModelService{factory: f}
}

// Describe returns the classified model of {"typeId": ...}.
func (s *ModelService) Describe(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	typeID, err := requireString(req.Msg, "typeId")
	if err != nil {
		return nil, err
	}
	m, err := s.factory.ModelOf(typeID)
	if err != nil {
		return nil, connectError(err)
	}
	out, err := modelToStruct(m)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// Generate returns the typed wrapper source of {"typeId": ...}. The
// optional "constructor", "setPrefix" and "setSuffix" fields override the
// default contract.
func (s *ModelService) Generate(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	typeID, err := requireString(req.Msg, "typeId")
	if err != nil {
		return nil, err
	}
	c := artifact.DefaultContract
	fields := req.Msg.GetFields()
	if v := fields["constructor"].GetStringValue(); v != "" {
		c.Constructor = v
	}
	if v := fields["setPrefix"].GetStringValue(); v != "" {
		c.SetPrefix = v
	}
	if v := fields["setSuffix"].GetStringValue(); v != "" {
		c.SetSuffix = v
	}
	if err := c.Validate(); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	src, err := s.factory.Generate(typeID, c)
	if err != nil {
		return nil, connectError(err)
	}

	skipped := make([]any, len(src.Skipped))
	for i, sk := range src.Skipped {
		skipped[i] = map[string]any{"method": sk.Method, "reason": sk.Reason}
	}
	out, err := structpb.NewStruct(map[string]any{
		"typeId":      src.TypeID,
		"package":     src.Package,
		"name":        src.Name,
		"fileName":    src.FileName(),
		"fingerprint": hex.EncodeToString(src.Fingerprint[:]),
		"code":        string(src.Code),
		"skipped":     skipped,
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

func requireString(msg *structpb.Struct, name string) (string, error) {
	v := msg.GetFields()[name].GetStringValue()
	if v == "" {
		return "", connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%s is required", name))
	}
	return v, nil
}

// connectError maps pipeline errors to RPC codes. Errors returned by the
// target's own methods carry no sentinel and map to CodeUnknown.
func connectError(err error) *connect.Error {
	var ce *connect.Error
	if errors.As(err, &ce) {
		return ce
	}
	code := connect.CodeUnknown
	switch {
	case errors.Is(err, errHandleNotFound), errors.Is(err, model.ErrUnknownMember):
		code = connect.CodeNotFound
	case errors.Is(err, model.ErrUnsupportedTarget):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, proxy.ErrUnsetUnsupported):
		code = connect.CodeUnimplemented
	case errors.Is(err, proxy.ErrBadArguments),
		errors.Is(err, proxy.ErrTypeMismatch),
		errors.Is(err, proxy.ErrNotReferenceable):
		code = connect.CodeInvalidArgument
	case errors.Is(err, model.ErrInvariantViolation):
		code = connect.CodeInternal
	}
	return connect.NewError(code, err)
}
