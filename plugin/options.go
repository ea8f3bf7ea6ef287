package plugin

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/maruel/natural"
)

type OptionType int

const (
	OptionBool OptionType = iota
	OptionInt
	OptionFloat
	OptionString
)

var optionTypeNames = [...]string{"bool", "int", "float", "string"}

func (t OptionType) String() string {
	if t < 0 || int(t) >= len(optionTypeNames) {
		return "unknown"
	}
	return optionTypeNames[t]
}

type OptionDescription struct {
	Type        OptionType
	Description string
	Default     any
}

// Options holds declared options of a plugin and their current values.
type Options struct {
	descriptions map[string]OptionDescription
	values       map[string]any
}

func NewOptions() *Options {
	return &Options{
		descriptions: make(map[string]OptionDescription),
		values:       make(map[string]any),
	}
}

// Declare adds an option, def must match the option type.
func (o *Options) Declare(name string, t OptionType, description string, def any) error {
	if err := checkType(t, def); err != nil {
		return fmt.Errorf("option %q default: %w", name, err)
	}
	o.descriptions[name] = OptionDescription{Type: t, Description: description, Default: def}
	o.values[name] = def
	return nil
}

func checkType(t OptionType, v any) error {
	ok := false
	switch t {
	case OptionBool:
		_, ok = v.(bool)
	case OptionInt:
		_, ok = v.(int64)
	case OptionFloat:
		_, ok = v.(float64)
	case OptionString:
		_, ok = v.(string)
	}
	if !ok {
		return fmt.Errorf("value of type %T is not %s: %w", v, t, ErrInvalidArgument)
	}
	return nil
}

// Names returns declared option names in natural order.
func (o *Options) Names() []string {
	names := make([]string, 0, len(o.descriptions))
	for n := range o.descriptions {
		names = append(names, n)
	}
	sort.Sort(natural.StringSlice(names))
	return names
}

func (o *Options) Description(name string) (OptionDescription, bool) {
	d, ok := o.descriptions[name]
	return d, ok
}

func (o *Options) Set(name string, v any) error {
	d, ok := o.descriptions[name]
	if !ok {
		return fmt.Errorf("option %q: %w", name, ErrInvalidArgument)
	}
	if err := checkType(d.Type, v); err != nil {
		return fmt.Errorf("option %q: %w", name, err)
	}
	o.values[name] = v
	return nil
}

// SetOptionFromString parses value according to the declared type. Booleans
// are given as integers, non zero is true.
func (o *Options) SetOptionFromString(name, value string) error {
	d, ok := o.descriptions[name]
	if !ok {
		return fmt.Errorf("option %q: %w", name, ErrInvalidArgument)
	}
	var (
		v   any
		err error
	)
	switch d.Type {
	case OptionBool:
		var n int64
		if n, err = strconv.ParseInt(value, 10, 64); err == nil {
			v = n != 0
		} else if b, berr := strconv.ParseBool(value); berr == nil {
			v, err = b, nil
		}
	case OptionInt:
		v, err = strconv.ParseInt(value, 10, 64)
	case OptionFloat:
		v, err = strconv.ParseFloat(value, 64)
	case OptionString:
		v = value
	}
	if err != nil {
		return fmt.Errorf("option %q: cannot parse %q as %s: %w", name, value, d.Type, ErrInvalidArgument)
	}
	o.values[name] = v
	return nil
}

func (o *Options) OptionToString(name string) (string, error) {
	if _, ok := o.descriptions[name]; !ok {
		return "", fmt.Errorf("option %q: %w", name, ErrInvalidArgument)
	}
	return valueToString(o.values[name])
}

func valueToString(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case bool:
		if x {
			return "1", nil
		}
		return "0", nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case string:
		return x, nil
	}
	return "", fmt.Errorf("no conversion for value of type %T: %w", v, ErrInvalidArgument)
}

func (o *Options) get(name string, t OptionType) (any, error) {
	d, ok := o.descriptions[name]
	if !ok {
		return nil, fmt.Errorf("option %q: %w", name, ErrInvalidArgument)
	}
	if d.Type != t {
		return nil, fmt.Errorf("option %q is %s, not %s: %w", name, d.Type, t, ErrInvalidArgument)
	}
	return o.values[name], nil
}

func (o *Options) Bool(name string) (bool, error) {
	v, err := o.get(name, OptionBool)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (o *Options) Int(name string) (int64, error) {
	v, err := o.get(name, OptionInt)
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (o *Options) Float(name string) (float64, error) {
	v, err := o.get(name, OptionFloat)
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (o *Options) String(name string) (string, error) {
	v, err := o.get(name, OptionString)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Reset restores every option to its default.
func (o *Options) Reset() {
	for n, d := range o.descriptions {
		o.values[n] = d.Default
	}
}

// Configure sets options from their string form and makes the values the
// new defaults, so Reset keeps them.
func (o *Options) Configure(values map[string]string) error {
	for name, value := range values {
		if err := o.SetOptionFromString(name, value); err != nil {
			return err
		}
		d := o.descriptions[name]
		d.Default = o.values[name]
		o.descriptions[name] = d
	}
	return nil
}
