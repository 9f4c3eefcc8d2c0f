package proxy_test

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/chazu/scopeproxy/internal/assets"
	"github.com/chazu/scopeproxy/model"
	"github.com/chazu/scopeproxy/proxy"
)

func TestSynchronizationSymmetry(t *testing.T) {
	instance := assets.NewClassWithPublicProperties()
	p := mustProxy(t, instance)

	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("Property%d", i)

		if err := p.Set(name, "through proxy"); err != nil {
			t.Fatalf("Set %s: %v", name, err)
		}
		field := reflect.ValueOf(instance).Elem().FieldByName(name)
		if field.String() != "through proxy" {
			t.Errorf("%s: write through proxy not visible on instance", name)
		}

		field.SetString("through instance")
		got, err := p.Get(name)
		if err != nil {
			t.Fatalf("Get %s: %v", name, err)
		}
		if got != "through instance" {
			t.Errorf("%s: write on instance not visible through proxy, got %v", name, got)
		}
	}
}

func TestProtectedPropertiesAreAccessible(t *testing.T) {
	p := mustProxy(t, assets.NewBaseClass())

	got, err := p.Get("protectedProperty")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "protectedPropertyDefault" {
		t.Errorf("unexpected protected value %v", got)
	}
	if err := p.Set("protectedProperty", "changed"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, _ := p.Get("protectedProperty"); got != "changed" {
		t.Errorf("protected write lost, got %v", got)
	}
}

func TestPrivatePropertiesAreNotAccessible(t *testing.T) {
	base := assets.NewBaseClass()
	p := mustProxy(t, base)

	if _, err := p.Get("privateProperty"); !errors.Is(err, model.ErrUnknownMember) {
		t.Errorf("expected ErrUnknownMember, got %v", err)
	}
	if err := p.Set("privateProperty", "x"); !errors.Is(err, model.ErrUnknownMember) {
		t.Errorf("expected ErrUnknownMember, got %v", err)
	}
	if p.Isset("privateProperty") {
		t.Errorf("private property reported as set")
	}
	if base.PrivateProperty() != "privatePropertyDefault" {
		t.Errorf("private property changed")
	}
}

func TestSetTypeMismatch(t *testing.T) {
	p := mustProxy(t, assets.NewValueHolder())
	if err := p.Set("Value", 42); !errors.Is(err, proxy.ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
	if err := p.Set("Value", nil); !errors.Is(err, proxy.ErrTypeMismatch) {
		t.Errorf("nil into string: expected ErrTypeMismatch, got %v", err)
	}
}

func TestIssetIsComputedAtCallTime(t *testing.T) {
	instance := &assets.ClassWithMixedTypedProperties{}
	p := mustProxy(t, instance)

	if p.Isset("PublicNullableString") {
		t.Errorf("nil pointer reported as set")
	}
	s := "value"
	instance.PublicNullableString = &s
	if !p.Isset("PublicNullableString") {
		t.Errorf("pointer set on instance not observed")
	}
	if err := p.Set("PublicNullableString", nil); err != nil {
		t.Fatalf("Set nil: %v", err)
	}
	if instance.PublicNullableString != nil || p.Isset("PublicNullableString") {
		t.Errorf("nil write not synchronized")
	}

	if !p.Isset("PublicString") {
		t.Errorf("non-nilable property must always be set")
	}
	if p.Isset("PublicUntyped") {
		t.Errorf("nil untyped property reported as set")
	}
	if p.Isset("NoSuchProperty") {
		t.Errorf("unknown property reported as set")
	}
}

func TestMapPropertyWritesAreShared(t *testing.T) {
	instance := &assets.ClassWithPublicMapProperty{MapProperty: map[string]string{}}
	p := mustProxy(t, instance)

	v, err := p.Get("MapProperty")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	v.(map[string]string)["key"] = "value"
	if instance.MapProperty["key"] != "value" {
		t.Errorf("map write through proxy not visible on instance")
	}
}

func TestRef(t *testing.T) {
	instance := &assets.ClassWithMixedTypedProperties{}
	p := mustProxy(t, instance)

	ref, err := p.Ref("PublicString")
	if err != nil {
		t.Fatalf("Ref: %v", err)
	}
	*ref.(*string) = "by reference"
	if instance.PublicString != "by reference" {
		t.Errorf("write through reference lost")
	}

	ref, err = p.Ref("protectedInt")
	if err != nil {
		t.Fatalf("Ref protected: %v", err)
	}
	*ref.(*int) = 9
	if got, _ := p.Get("protectedInt"); got != 9 {
		t.Errorf("write through protected reference lost, got %v", got)
	}

	if _, err := p.Ref("PublicLazyString"); !errors.Is(err, proxy.ErrNotReferenceable) {
		t.Errorf("lazy property: expected ErrNotReferenceable, got %v", err)
	}
	if _, err := p.Ref("PublicLazyUntyped"); err != nil {
		t.Errorf("lazy untyped property stays referenceable, got %v", err)
	}
}

func TestUnsetIsUnsupported(t *testing.T) {
	p := mustProxy(t, assets.NewValueHolder())
	for _, name := range []string{"Value", "Missing"} {
		if err := p.Unset(name); !errors.Is(err, proxy.ErrUnsetUnsupported) {
			t.Errorf("Unset(%s): expected ErrUnsetUnsupported, got %v", name, err)
		}
	}
	if got, _ := p.Get("Value"); got != "d" {
		t.Errorf("failed Unset changed the value to %v", got)
	}
}

func TestShadowedPropertyResolvesToDerived(t *testing.T) {
	instance := &assets.Derived{Shared: "derived"}
	instance.Base.Shared = "base"
	p := mustProxy(t, instance)

	if got, _ := p.Get("Shared"); got != "derived" {
		t.Errorf("expected derived Shared, got %v", got)
	}
	p.Set("BaseOnly", "inherited")
	if instance.BaseOnly != "inherited" {
		t.Errorf("inherited property write lost")
	}
	if got, _ := p.Call("Describe"); got != "base:base" {
		t.Errorf("promoted method: got %v", got)
	}
}
