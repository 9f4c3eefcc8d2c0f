package proxy_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/chazu/scopeproxy/internal/assets"
	"github.com/chazu/scopeproxy/model"
	"github.com/chazu/scopeproxy/proxy"
)

func TestCallForwardsOnceWithOriginalArguments(t *testing.T) {
	counter := &assets.VoidCounter{}
	p := mustProxy(t, counter)

	var order []string
	var seen []any
	p.SetPrefixInterceptor("Increment", func(_ *proxy.Proxy, instance any, method string, params proxy.Params, _ *bool) (any, error) {
		order = append(order, "prefix")
		if instance != any(counter) {
			t.Errorf("prefix got instance %v, want wrapped counter", instance)
		}
		if method != "Increment" {
			t.Errorf("prefix got method %q", method)
		}
		seen = params.Values()
		return nil, nil
	})
	p.SetSuffixInterceptor("Increment", func(_ *proxy.Proxy, _ any, _ string, _ proxy.Params, returnValue any, _ *bool) (any, error) {
		order = append(order, "suffix")
		if returnValue != nil {
			t.Errorf("void method produced %v", returnValue)
		}
		return nil, nil
	})

	got, err := p.Call("Increment", 3)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != nil {
		t.Errorf("void method returned %v", got)
	}
	if counter.Counter != 3 {
		t.Errorf("expected real method to run once, counter = %d", counter.Counter)
	}
	if !reflect.DeepEqual(order, []string{"prefix", "suffix"}) {
		t.Errorf("unexpected hook order %v", order)
	}
	if !reflect.DeepEqual(seen, []any{3}) {
		t.Errorf("prefix saw %v", seen)
	}
}

func TestPrefixShortCircuitSkipsRealCall(t *testing.T) {
	counter := &assets.VoidCounter{}
	p := mustProxy(t, counter)

	suffixRan := false
	p.SetPrefixInterceptor("Increment", func(_ *proxy.Proxy, _ any, _ string, _ proxy.Params, returnEarly *bool) (any, error) {
		*returnEarly = true
		return "ignored for void", nil
	})
	p.SetSuffixInterceptor("Increment", func(*proxy.Proxy, any, string, proxy.Params, any, *bool) (any, error) {
		suffixRan = true
		return nil, nil
	})

	got, err := p.Call("Increment", 1)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != nil {
		t.Errorf("void method returned %v after short-circuit", got)
	}
	if counter.Counter != 0 {
		t.Errorf("real method ran after short-circuit")
	}
	if suffixRan {
		t.Errorf("suffix ran after short-circuit")
	}
}

func TestSuffixOverridesResult(t *testing.T) {
	base := assets.NewBaseClass()
	p := mustProxy(t, base)

	var realResult any
	p.SetSuffixInterceptor("PublicMethod", func(_ *proxy.Proxy, _ any, _ string, _ proxy.Params, returnValue any, returnEarly *bool) (any, error) {
		realResult = returnValue
		*returnEarly = true
		return "overridden", nil
	})

	got, err := p.Call("PublicMethod")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != "overridden" {
		t.Errorf("expected overridden, got %v", got)
	}
	if realResult != "publicMethodDefault" {
		t.Errorf("suffix saw %v", realResult)
	}
}

func TestSuffixWithoutReturnEarlyKeepsResult(t *testing.T) {
	p := mustProxy(t, assets.NewBaseClass())
	p.SetSuffixInterceptor("PublicMethod", func(*proxy.Proxy, any, string, proxy.Params, any, *bool) (any, error) {
		return "discarded", nil
	})
	if got, _ := p.Call("PublicMethod"); got != "publicMethodDefault" {
		t.Errorf("expected real result, got %v", got)
	}
}

func TestHookErrorsPropagateUnchanged(t *testing.T) {
	boom := errors.New("boom")

	t.Run("prefix", func(t *testing.T) {
		counter := &assets.VoidCounter{}
		p := mustProxy(t, counter)
		suffixRan := false
		p.SetPrefixInterceptor("Increment", func(*proxy.Proxy, any, string, proxy.Params, *bool) (any, error) {
			return nil, boom
		})
		p.SetSuffixInterceptor("Increment", func(*proxy.Proxy, any, string, proxy.Params, any, *bool) (any, error) {
			suffixRan = true
			return nil, nil
		})
		if _, err := p.Call("Increment", 1); err != boom {
			t.Fatalf("expected boom, got %v", err)
		}
		if counter.Counter != 0 || suffixRan {
			t.Errorf("prefix error must skip the real call and the suffix")
		}
	})

	t.Run("suffix", func(t *testing.T) {
		counter := &assets.VoidCounter{}
		p := mustProxy(t, counter)
		p.SetSuffixInterceptor("Increment", func(*proxy.Proxy, any, string, proxy.Params, any, *bool) (any, error) {
			return nil, boom
		})
		if _, err := p.Call("Increment", 2); err != boom {
			t.Fatalf("expected boom, got %v", err)
		}
		if counter.Counter != 2 {
			t.Errorf("suffix error must keep committed side effects, counter = %d", counter.Counter)
		}
	})

	t.Run("real call", func(t *testing.T) {
		calc := &assets.Calculator{}
		p := mustProxy(t, calc)
		suffixRan := false
		p.SetSuffixInterceptor("Divide", func(*proxy.Proxy, any, string, proxy.Params, any, *bool) (any, error) {
			suffixRan = true
			return nil, nil
		})
		if _, err := p.Call("Divide", 1, 0); err != assets.ErrDivideByZero {
			t.Fatalf("expected ErrDivideByZero, got %v", err)
		}
		if suffixRan {
			t.Errorf("failing real call must skip the suffix")
		}
	})
}

func TestPanicsPropagate(t *testing.T) {
	p := mustProxy(t, assets.NewValueHolder())
	p.SetPrefixInterceptor("Get", func(*proxy.Proxy, any, string, proxy.Params, *bool) (any, error) {
		panic("hook panic")
	})
	defer func() {
		if r := recover(); r != "hook panic" {
			t.Errorf("expected hook panic, got %v", r)
		}
	}()
	p.Call("Get")
	t.Errorf("Call returned after a panicking hook")
}

func TestResultMapping(t *testing.T) {
	calc := &assets.Calculator{}
	p := mustProxy(t, calc)

	got, err := p.Call("Divide", 7, 2)
	if err != nil {
		t.Fatalf("Divide: %v", err)
	}
	if got != 3 {
		t.Errorf("Divide: expected 3, got %v", got)
	}

	got, err = p.Call("DivMod", 7, 2)
	if err != nil {
		t.Fatalf("DivMod: %v", err)
	}
	vals, err := proxy.Results(got, 2)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if vals[0] != 3 || vals[1] != 1 {
		t.Errorf("DivMod: got %v", vals)
	}
	if calc.Calls != 2 {
		t.Errorf("expected 2 real calls, got %d", calc.Calls)
	}

	q, err := proxy.As[int](got)
	if err == nil || !errors.Is(err, proxy.ErrTypeMismatch) {
		t.Errorf("As on a multi-result value should fail, got %v, %v", q, err)
	}
}

func TestCallArgumentErrors(t *testing.T) {
	p := mustProxy(t, &assets.VoidCounter{})

	if _, err := p.Call("Missing"); !errors.Is(err, model.ErrUnknownMember) {
		t.Errorf("unknown method: expected ErrUnknownMember, got %v", err)
	}
	if _, err := p.Call("Increment"); !errors.Is(err, proxy.ErrBadArguments) {
		t.Errorf("missing argument: expected ErrBadArguments, got %v", err)
	}
	if _, err := p.Call("Increment", "one"); !errors.Is(err, proxy.ErrBadArguments) {
		t.Errorf("wrong type: expected ErrBadArguments, got %v", err)
	}
	if _, err := p.Call("Increment", 1, 2); !errors.Is(err, proxy.ErrBadArguments) {
		t.Errorf("extra argument: expected ErrBadArguments, got %v", err)
	}
	if _, err := p.Call("Increment", int64(4)); err != nil {
		t.Errorf("numeric conversion: %v", err)
	}
}

func TestByReferenceParameter(t *testing.T) {
	p := mustProxy(t, assets.NewBaseClass())

	var out string
	got, err := p.Call("PublicByReferenceMethod", &out)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != "publicByReferenceMethodDefault" {
		t.Errorf("unexpected result %v", got)
	}
	if out != "written" {
		t.Errorf("write through pointer parameter lost: %q", out)
	}
}

func TestNilArgumentForPointerParameter(t *testing.T) {
	p := mustProxy(t, &assets.ClassWithSelfHint{})
	got, err := p.Call("SelfHintMethod", nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got.(*assets.ClassWithSelfHint) != nil {
		t.Errorf("expected nil result, got %v", got)
	}
}

func TestVariadicMethod(t *testing.T) {
	c := &assets.ClassWithVariadicMethod{}
	p := mustProxy(t, c)

	var params proxy.Params
	p.SetPrefixInterceptor("Foo", func(_ *proxy.Proxy, _ any, _ string, ps proxy.Params, _ *bool) (any, error) {
		params = ps
		return nil, nil
	})

	if _, err := p.Call("Foo", "Ocramius", "Malukenho"); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if c.Bar == nil || *c.Bar != "Ocramius" {
		t.Errorf("Bar = %v", c.Bar)
	}
	if !reflect.DeepEqual(c.Baz, []string{"Malukenho"}) {
		t.Errorf("Baz = %v", c.Baz)
	}
	if params.Len() != 2 {
		t.Fatalf("expected 2 declared parameters, got %d", params.Len())
	}
	if v, _ := params.Value("arg1"); !reflect.DeepEqual(v, []string{"Malukenho"}) {
		t.Errorf("variadic snapshot = %v", v)
	}

	if _, err := p.Call("Foo", "only"); err != nil {
		t.Fatalf("Call without variadic arguments: %v", err)
	}
	if len(c.Baz) != 0 {
		t.Errorf("expected no variadic values, got %v", c.Baz)
	}
}

func TestVariadicByReferencePropagates(t *testing.T) {
	p := mustProxy(t, &assets.ClassWithByRefVariadicMethod{})

	args := []string{"Ocramius", "original", "Malukenho"}
	got, err := p.Call("Tuz", args)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if args[1] != "changed" {
		t.Errorf("caller slice not updated: %v", args)
	}
	if !reflect.DeepEqual(got, []string{"Ocramius", "changed", "Malukenho"}) {
		t.Errorf("unexpected result %v", got)
	}
}

func TestHookReceivesProxy(t *testing.T) {
	holder := assets.NewValueHolder()
	p := mustProxy(t, holder)
	p.SetPrefixInterceptor("Get", func(self *proxy.Proxy, _ any, _ string, _ proxy.Params, returnEarly *bool) (any, error) {
		if self != p {
			t.Errorf("hook received a different proxy")
		}
		v, err := self.Get("Value")
		*returnEarly = true
		return v.(string) + "!", err
	})
	if got, _ := p.Call("Get"); got != "d!" {
		t.Errorf("expected d!, got %v", got)
	}
}
