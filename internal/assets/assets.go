// Package assets holds proxy target types shared by tests.
package assets

import "errors"

// EmptyClass has no members.
type EmptyClass struct{}

// BaseClass mixes visibilities and method shapes.
type BaseClass struct {
	PublicProperty    string
	protectedProperty string `proxy:"protected"`
	privateProperty   string
}

// NewBaseClass returns a BaseClass with its default values.
func NewBaseClass() *BaseClass {
	return &BaseClass{
		PublicProperty:    "publicPropertyDefault",
		protectedProperty: "protectedPropertyDefault",
		privateProperty:   "privatePropertyDefault",
	}
}

func (b *BaseClass) PublicMethod() string {
	return "publicMethodDefault"
}

func (b *BaseClass) PublicTypeHintedMethod(param *EmptyClass) string {
	return "publicTypeHintedMethodDefault"
}

// PublicByReferenceMethod writes through its pointer argument.
func (b *BaseClass) PublicByReferenceMethod(out *string) string {
	*out = "written"
	return "publicByReferenceMethodDefault"
}

// PrivateProperty exposes the private field for assertions.
func (b *BaseClass) PrivateProperty() string { return b.privateProperty }

// ClassWithSelfHint returns its argument.
type ClassWithSelfHint struct{}

func (c *ClassWithSelfHint) SelfHintMethod(parameter *ClassWithSelfHint) *ClassWithSelfHint {
	return parameter
}

// ClassWithMixedProperties has three properties per visibility.
type ClassWithMixedProperties struct {
	PublicProperty0 string
	PublicProperty1 string
	PublicProperty2 string

	protectedProperty0 string `proxy:"protected"`
	protectedProperty1 string `proxy:"protected"`
	protectedProperty2 string `proxy:"protected"`

	privateProperty0 string
	privateProperty1 string
	privateProperty2 string
}

// ClassWithPrivateProperties declares ten private properties.
type ClassWithPrivateProperties struct {
	property0 string
	property1 string
	property2 string
	property3 string
	property4 string
	property5 string
	property6 string
	property7 string
	property8 string
	property9 string
}

// ClassWithCollidingPrivateInheritedProperties redeclares a private name
// of its ancestor.
type ClassWithCollidingPrivateInheritedProperties struct {
	ClassWithPrivateProperties
	property0 string
}

// NewClassWithCollidingPrivateInheritedProperties sets both property0 fields.
func NewClassWithCollidingPrivateInheritedProperties() *ClassWithCollidingPrivateInheritedProperties {
	c := &ClassWithCollidingPrivateInheritedProperties{property0: "childClassProperty0"}
	c.ClassWithPrivateProperties.property0 = "property0"
	return c
}

// Property0s returns the ancestor's and the derived property0.
func (c *ClassWithCollidingPrivateInheritedProperties) Property0s() (string, string) {
	return c.ClassWithPrivateProperties.property0, c.property0
}

// ClassWithMixedTypedProperties covers nullability, laziness and untyped fields.
type ClassWithMixedTypedProperties struct {
	PublicUntyped        any
	PublicLazyUntyped    any `proxy:"lazy"`
	PublicBool           bool
	PublicLazyBool       bool `proxy:"lazy"`
	PublicString         string
	PublicLazyString     string `proxy:"lazy"`
	PublicNullableString *string
	PublicLazyNullable   *string `proxy:"lazy"`
	PublicSlice          []string
	PublicObject         *EmptyClass    `proxy:"lazy"`
	protectedInt         int            `proxy:"protected"`
	protectedLazyInt     int            `proxy:"protected,lazy"`
	protectedNullableMap map[string]int `proxy:"protected"`
	privateFloat         float64
	privateLazyFloat     float64 `proxy:"lazy"`
	privateNullableIface error
	privateSkipped       string `proxy:"-"`
}

// ClassWithPublicProperties has ten public string properties.
type ClassWithPublicProperties struct {
	Property0 string
	Property1 string
	Property2 string
	Property3 string
	Property4 string
	Property5 string
	Property6 string
	Property7 string
	Property8 string
	Property9 string
}

// NewClassWithPublicProperties sets each property to its own name.
func NewClassWithPublicProperties() *ClassWithPublicProperties {
	return &ClassWithPublicProperties{
		Property0: "property0",
		Property1: "property1",
		Property2: "property2",
		Property3: "property3",
		Property4: "property4",
		Property5: "property5",
		Property6: "property6",
		Property7: "property7",
		Property8: "property8",
		Property9: "property9",
	}
}

// ClassWithPublicMapProperty holds a map that callers write keys into.
type ClassWithPublicMapProperty struct {
	MapProperty map[string]string
}

// ClassWithVariadicMethod records the arguments of Foo.
type ClassWithVariadicMethod struct {
	Bar *string
	Baz []string
}

func (c *ClassWithVariadicMethod) Foo(bar string, baz ...string) {
	c.Bar = &bar
	c.Baz = baz
}

// ClassWithByRefVariadicMethod changes the second variadic argument in place.
type ClassWithByRefVariadicMethod struct{}

func (c *ClassWithByRefVariadicMethod) Tuz(params ...string) []string {
	if len(params) > 1 {
		params[1] = "changed"
	}
	return params
}

// VoidCounter accumulates increments.
type VoidCounter struct {
	Counter int
}

func (c *VoidCounter) Increment(amount int) {
	c.Counter += amount
}

// ValueHolder returns its value.
type ValueHolder struct {
	Value string
}

// NewValueHolder returns a holder with the default value "d".
func NewValueHolder() *ValueHolder {
	return &ValueHolder{Value: "d"}
}

func (v *ValueHolder) Get() string {
	return v.Value
}

// ErrDivideByZero is returned by Calculator.Divide.
var ErrDivideByZero = errors.New("divide by zero")

// Calculator has multi-result and error-returning methods.
type Calculator struct {
	Calls int
}

func (c *Calculator) Divide(a, b int) (int, error) {
	c.Calls++
	if b == 0 {
		return 0, ErrDivideByZero
	}
	return a / b, nil
}

func (c *Calculator) DivMod(a, b int) (int, int) {
	c.Calls++
	return a / b, a % b
}

// Node references other nodes and holds nested state for clone tests.
type Node struct {
	Name     string
	Tags     []string
	Attrs    map[string]string
	Next     *Node
	counter  int
	Callback func() string `proxy:"-"`
}

// NewNode builds a two-node chain.
func NewNode() *Node {
	return &Node{
		Name:    "head",
		Tags:    []string{"a", "b"},
		Attrs:   map[string]string{"k": "v"},
		Next:    &Node{Name: "tail"},
		counter: 7,
	}
}

// Counter exposes the private counter.
func (n *Node) Counter() int { return n.counter }

// Bump increments the private counter.
func (n *Node) Bump() int {
	n.counter++
	return n.counter
}

// Derived overrides a public property of its ancestor.
type Derived struct {
	Base
	Shared string
	own    string
}

// Base is the ancestor of Derived.
type Base struct {
	Shared   string
	BaseOnly string
	own      string
}

func (b *Base) Describe() string { return "base:" + b.Shared }

// Derived returns the derived Shared value.
func (d *Derived) Name() string { return d.Shared }

// Envelope keeps unexported state below its own fields.
type Envelope struct {
	Label  string
	Inner  Sealed
	Shared *Sealed
	Alias  *Sealed
	notify func()
}

// Sealed has one exported and one unexported field.
type Sealed struct {
	Visible string
	hidden  int
	onOpen  func() string
}

// NewEnvelope returns an envelope whose Shared and Alias point at the same
// Sealed value.
func NewEnvelope() *Envelope {
	shared := &Sealed{Visible: "shared", hidden: 9, onOpen: func() string { return "open" }}
	return &Envelope{
		Label:  "letter",
		Inner:  Sealed{Visible: "v", hidden: 42},
		Shared: shared,
		Alias:  shared,
		notify: func() {},
	}
}

// Hidden returns the unexported value of s.
func (s *Sealed) Hidden() int { return s.hidden }

// Diamond embeds diamondBase through both DiamondLeft and DiamondRight.
type Diamond struct {
	DiamondLeft
	DiamondRight
}

// DiamondLeft is one path to diamondBase.
type DiamondLeft struct {
	diamondBase
}

// DiamondRight is the other path to diamondBase.
type DiamondRight struct {
	diamondBase
}

type diamondBase struct {
	secret int
}
