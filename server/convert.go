package server

import (
	"encoding/json"
	"fmt"
	"reflect"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/scopeproxy/model"
)

// modelToStruct renders a classified model for Describe responses.
func modelToStruct(m *model.Model) (*structpb.Struct, error) {
	props := m.Properties()

	properties := make([]any, 0, props.Len())
	for _, d := range props.Instance() {
		properties = append(properties, map[string]any{
			"declaringType": d.ID.DeclaringType,
			"name":          d.ID.Name,
			"visibility":    d.Visibility.String(),
			"type":          d.Type.String(),
			"untyped":       d.Untyped,
			"nullable":      d.Nullable,
			"hasDefault":    d.HasDefault,
			"referenceable": d.Referenceable,
			"unsettable":    d.Unsettable,
		})
	}

	methods := make([]any, 0, len(m.Methods()))
	for _, md := range m.Methods() {
		params := make([]any, len(md.Params))
		for i, p := range md.Params {
			params[i] = map[string]any{
				"name":        p.Name,
				"type":        p.Type.String(),
				"byReference": p.ByReference,
				"variadic":    p.Variadic,
			}
		}
		results := make([]any, len(md.Results))
		for i, r := range md.Results {
			results[i] = r.String()
		}
		methods = append(methods, map[string]any{
			"name":        md.Name,
			"params":      params,
			"results":     results,
			"returnsVoid": md.ReturnsVoid,
			"returnsErr":  md.ReturnsErr,
		})
	}

	chain := make([]any, 0)
	for _, c := range m.Chain() {
		chain = append(chain, c)
	}

	return structpb.NewStruct(map[string]any{
		"typeId":     m.TypeID(),
		"chain":      chain,
		"properties": properties,
		"methods":    methods,
	})
}

// toValue converts a Go value into a structpb.Value, going through JSON
// for anything structpb cannot take directly (typed slices, structs).
func toValue(v any) (*structpb.Value, error) {
	if pv, err := structpb.NewValue(v); err == nil {
		return pv, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cannot encode %T: %w", v, err)
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return structpb.NewValue(generic)
}

// fromValue converts a structpb.Value to a value shaped like like. When
// like is nil the generic JSON form is returned.
func fromValue(v *structpb.Value, like any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, nil
	}
	if like == nil {
		return v.AsInterface(), nil
	}
	data, err := v.MarshalJSON()
	if err != nil {
		return nil, err
	}
	target := reflect.New(reflect.TypeOf(like))
	if err := json.Unmarshal(data, target.Interface()); err != nil {
		return nil, fmt.Errorf("cannot decode %s as %T: %w", data, like, err)
	}
	return target.Elem().Interface(), nil
}
