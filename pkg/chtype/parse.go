package chtype

import (
	"strconv"
	"strings"

	"github.com/ajitpratap0/chnative/pkg/errors"
)

// Parse converts ClickHouse textual type syntax into a descriptor, e.g.
// "Array(Nullable(String))", "Map(LowCardinality(String), UInt64)" or
// "Enum8('a' = 1, 'b' = 2)". Nesting depth is unbounded; argument splitting
// honors parentheses and quoted enum literals, including commas inside them.
func Parse(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Type{}, errors.New(errors.ErrorTypeUnknownType, "empty type name")
	}

	name := s
	var args string
	hasArgs := false
	if open := strings.IndexByte(s, '('); open >= 0 {
		if !strings.HasSuffix(s, ")") {
			return Type{}, errors.Newf(errors.ErrorTypeUnknownType, "unbalanced parentheses in type %q", s)
		}
		name = strings.TrimSpace(s[:open])
		args = s[open+1 : len(s)-1]
		hasArgs = true
	}

	switch name {
	case "UInt8":
		return leaf(UInt8(), s, hasArgs)
	case "UInt16":
		return leaf(UInt16(), s, hasArgs)
	case "UInt32":
		return leaf(UInt32(), s, hasArgs)
	case "UInt64":
		return leaf(UInt64(), s, hasArgs)
	case "Int8":
		return leaf(Int8(), s, hasArgs)
	case "Int16":
		return leaf(Int16(), s, hasArgs)
	case "Int32":
		return leaf(Int32(), s, hasArgs)
	case "Int64":
		return leaf(Int64(), s, hasArgs)
	case "Float32":
		return leaf(Float32(), s, hasArgs)
	case "Float64":
		return leaf(Float64(), s, hasArgs)
	case "String":
		return leaf(String(), s, hasArgs)
	case "Date":
		return leaf(Date(), s, hasArgs)
	case "UUID":
		return leaf(UUID(), s, hasArgs)
	case "Bool":
		return leaf(Bool(), s, hasArgs)
	case "DateTime":
		// An optional timezone argument is accepted and ignored; the codec
		// deals in epoch instants.
		if hasArgs {
			if _, err := parseQuoted(strings.TrimSpace(args)); err != nil {
				return Type{}, errors.Newf(errors.ErrorTypeUnknownType, "bad DateTime argument in %q", s)
			}
		}
		return DateTime(), nil
	case "DateTime64":
		return parseDateTime64(s, args, hasArgs)
	case "FixedString":
		n, err := parseIntArg(s, args, hasArgs)
		if err != nil {
			return Type{}, err
		}
		return FixedString(n)
	case "Decimal":
		return parseDecimal(s, args, hasArgs)
	case "Decimal32":
		n, err := parseIntArg(s, args, hasArgs)
		if err != nil {
			return Type{}, err
		}
		return Decimal32(n)
	case "Decimal64":
		n, err := parseIntArg(s, args, hasArgs)
		if err != nil {
			return Type{}, err
		}
		return Decimal64(n)
	case "Decimal128":
		n, err := parseIntArg(s, args, hasArgs)
		if err != nil {
			return Type{}, err
		}
		return Decimal128(n)
	case "Nullable":
		inner, err := parseSingle(s, args, hasArgs)
		if err != nil {
			return Type{}, err
		}
		return Nullable(inner)
	case "Array":
		inner, err := parseSingle(s, args, hasArgs)
		if err != nil {
			return Type{}, err
		}
		return Array(inner), nil
	case "LowCardinality":
		inner, err := parseSingle(s, args, hasArgs)
		if err != nil {
			return Type{}, err
		}
		return LowCardinality(inner), nil
	case "Map":
		parts, err := wrapperArgs(s, args, hasArgs, 2)
		if err != nil {
			return Type{}, err
		}
		key, err := Parse(parts[0])
		if err != nil {
			return Type{}, err
		}
		value, err := Parse(parts[1])
		if err != nil {
			return Type{}, err
		}
		return Map(key, value), nil
	case "Tuple":
		parts, err := wrapperArgs(s, args, hasArgs, -1)
		if err != nil {
			return Type{}, err
		}
		elems := make([]Type, 0, len(parts))
		for _, p := range parts {
			elem, err := Parse(p)
			if err != nil {
				return Type{}, err
			}
			elems = append(elems, elem)
		}
		return Tuple(elems...)
	case "Enum8":
		pairs, err := parseEnumArgs(s, args, hasArgs)
		if err != nil {
			return Type{}, err
		}
		return Enum8(pairs)
	case "Enum16":
		pairs, err := parseEnumArgs(s, args, hasArgs)
		if err != nil {
			return Type{}, err
		}
		return Enum16(pairs)
	default:
		return Type{}, errors.Newf(errors.ErrorTypeUnknownType, "unknown type name %q", name)
	}
}

func leaf(t Type, full string, hasArgs bool) (Type, error) {
	if hasArgs {
		return Type{}, errors.Newf(errors.ErrorTypeUnknownType, "type %q takes no arguments", full)
	}
	return t, nil
}

func parseSingle(full, args string, hasArgs bool) (Type, error) {
	parts, err := wrapperArgs(full, args, hasArgs, 1)
	if err != nil {
		return Type{}, err
	}
	return Parse(parts[0])
}

func wrapperArgs(full, args string, hasArgs bool, want int) ([]string, error) {
	if !hasArgs {
		return nil, errors.Newf(errors.ErrorTypeUnknownType, "type %q requires arguments", full)
	}
	parts, err := splitArgs(args)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeUnknownType, full)
	}
	if want >= 0 && len(parts) != want {
		return nil, errors.Newf(errors.ErrorTypeUnknownType, "type %q expects %d argument(s), got %d", full, want, len(parts))
	}
	if len(parts) == 0 {
		return nil, errors.Newf(errors.ErrorTypeUnknownType, "type %q has empty argument list", full)
	}
	return parts, nil
}

func parseIntArg(full, args string, hasArgs bool) (int, error) {
	if !hasArgs {
		return 0, errors.Newf(errors.ErrorTypeUnknownType, "type %q requires a numeric argument", full)
	}
	n, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil {
		return 0, errors.Newf(errors.ErrorTypeUnknownType, "bad numeric argument in %q", full)
	}
	return n, nil
}

func parseDateTime64(full, args string, hasArgs bool) (Type, error) {
	if !hasArgs {
		return Type{}, errors.Newf(errors.ErrorTypeUnknownType, "type %q requires a precision argument", full)
	}
	parts, err := splitArgs(args)
	if err != nil || len(parts) < 1 || len(parts) > 2 {
		return Type{}, errors.Newf(errors.ErrorTypeUnknownType, "bad DateTime64 arguments in %q", full)
	}
	precision, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Type{}, errors.Newf(errors.ErrorTypeUnknownType, "bad DateTime64 precision in %q", full)
	}
	if len(parts) == 2 {
		// Timezone argument, accepted and ignored.
		if _, err := parseQuoted(strings.TrimSpace(parts[1])); err != nil {
			return Type{}, errors.Newf(errors.ErrorTypeUnknownType, "bad DateTime64 timezone in %q", full)
		}
	}
	return DateTime64(precision)
}

// parseDecimal handles the generic Decimal(P, S) spelling, mapping precision
// to the narrowest concrete width.
func parseDecimal(full, args string, hasArgs bool) (Type, error) {
	parts, err := wrapperArgs(full, args, hasArgs, 2)
	if err != nil {
		return Type{}, err
	}
	precision, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Type{}, errors.Newf(errors.ErrorTypeUnknownType, "bad Decimal precision in %q", full)
	}
	scale, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Type{}, errors.Newf(errors.ErrorTypeUnknownType, "bad Decimal scale in %q", full)
	}
	switch {
	case precision >= 1 && precision <= 9:
		return Decimal32(scale)
	case precision <= 18:
		return Decimal64(scale)
	case precision <= 38:
		return Decimal128(scale)
	default:
		return Type{}, errors.Newf(errors.ErrorTypeUnknownType, "Decimal precision %d out of supported range", precision)
	}
}

func parseEnumArgs(full, args string, hasArgs bool) ([]EnumPair, error) {
	if !hasArgs {
		return nil, errors.Newf(errors.ErrorTypeValidation, "type %q requires name=value pairs", full)
	}
	parts, err := splitArgs(args)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, full)
	}
	pairs := make([]EnumPair, 0, len(parts))
	for _, part := range parts {
		pair, err := parseEnumLiteral(part)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// parseEnumLiteral parses one 'name' = value entry.
func parseEnumLiteral(s string) (EnumPair, error) {
	s = strings.TrimSpace(s)
	name, rest, err := takeQuoted(s)
	if err != nil {
		return EnumPair{}, err
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "=") {
		return EnumPair{}, errors.Newf(errors.ErrorTypeValidation, "malformed enum literal %q: missing '='", s)
	}
	v, err := strconv.Atoi(strings.TrimSpace(rest[1:]))
	if err != nil {
		return EnumPair{}, errors.Newf(errors.ErrorTypeValidation, "malformed enum literal %q: bad value", s)
	}
	if v < -32768 || v > 32767 {
		return EnumPair{}, errors.Newf(errors.ErrorTypeValidation, "enum value %d does not fit in 16 bits", v)
	}
	return EnumPair{Name: name, Value: int16(v)}, nil
}

// parseQuoted parses a complete single-quoted literal.
func parseQuoted(s string) (string, error) {
	name, rest, err := takeQuoted(s)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(rest) != "" {
		return "", errors.Newf(errors.ErrorTypeValidation, "trailing input after quoted literal in %q", s)
	}
	return name, nil
}

// takeQuoted consumes a leading single-quoted literal, honoring backslash
// escapes, and returns the unescaped content plus the unconsumed remainder.
func takeQuoted(s string) (string, string, error) {
	if len(s) == 0 || s[0] != '\'' {
		return "", "", errors.Newf(errors.ErrorTypeValidation, "malformed enum literal %q: missing opening quote", s)
	}
	var b strings.Builder
	i := 1
	for i < len(s) {
		c := s[i]
		switch c {
		case '\\':
			if i+1 >= len(s) {
				return "", "", errors.Newf(errors.ErrorTypeValidation, "malformed enum literal %q: dangling escape", s)
			}
			b.WriteByte(s[i+1])
			i += 2
		case '\'':
			return b.String(), s[i+1:], nil
		default:
			b.WriteByte(c)
			i++
		}
	}
	return "", "", errors.Newf(errors.ErrorTypeValidation, "malformed enum literal %q: unterminated quote", s)
}

// splitArgs splits a comma separated argument list at depth zero, honoring
// nested parentheses and quoted literals.
func splitArgs(s string) ([]string, error) {
	var (
		parts    []string
		depth    int
		inQuote  bool
		start    int
		escaping bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inQuote {
			switch {
			case escaping:
				escaping = false
			case c == '\\':
				escaping = true
			case c == '\'':
				inQuote = false
			}
			continue
		}
		switch c {
		case '\'':
			inQuote = true
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, errors.Newf(errors.ErrorTypeValidation, "unbalanced parentheses in %q", s)
			}
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, errors.Newf(errors.ErrorTypeValidation, "unbalanced parentheses in %q", s)
	}
	if inQuote {
		return nil, errors.Newf(errors.ErrorTypeValidation, "unterminated quote in %q", s)
	}
	last := strings.TrimSpace(s[start:])
	if last != "" || len(parts) > 0 {
		parts = append(parts, last)
	}
	for _, p := range parts {
		if p == "" {
			return nil, errors.Newf(errors.ErrorTypeValidation, "empty argument in %q", s)
		}
	}
	return parts, nil
}
