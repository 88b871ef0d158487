// internal/converter/parse.go
package converter

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse builds one converter from its profile notation:
//
//	direct | invert | keep_positive
//	scale_factor:<int> | factor:<float> | offset:<float>
func Parse(step string, opts ...Option) (Converter, error) {
	name, arg, hasArg := strings.Cut(strings.TrimSpace(step), ":")
	name = strings.ToLower(strings.TrimSpace(name))
	arg = strings.TrimSpace(arg)

	switch name {
	case "", "direct":
		return Direct(), nil
	case "invert":
		return Invert(opts...), nil
	case "keep_positive":
		return KeepPositive(), nil
	}

	if !hasArg || arg == "" {
		return nil, fmt.Errorf("%w: %q needs an argument", ErrInvalid, step)
	}

	switch name {
	case "scale_factor":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalid, step, err)
		}
		return ScaleFactor(n, opts...)
	case "factor":
		f, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalid, step, err)
		}
		return Factor(f, opts...)
	case "offset":
		k, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalid, step, err)
		}
		return Offset(k, opts...)
	}

	return nil, fmt.Errorf("%w: unknown converter %q", ErrInvalid, name)
}

// ParseChain parses steps in order. No steps means Direct.
func ParseChain(steps []string, opts ...Option) (Converter, error) {
	cs := make([]Converter, 0, len(steps))
	for _, s := range steps {
		c, err := Parse(s, opts...)
		if err != nil {
			return nil, err
		}
		cs = append(cs, c)
	}
	return Chain(cs...), nil
}
