package mapping

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/path2target/transform-core/internal/core"
	"github.com/path2target/transform-core/internal/source"
)

// applyFunc evaluates one transform against a raw row. normalizeIdentifier
// bindings return the raw value; resolution is the builder's concern.
type applyFunc func(row source.Row) (any, error)

// compile turns a rule into its transform closure. The transform set is
// closed; an unknown kind is a configuration error caught at resolve time.
func compile(r *Rule) (applyFunc, error) {
	switch r.Transform {
	case TransformRename, TransformNormalize:
		field, def := r.SourceField, r.Default
		return func(row source.Row) (any, error) {
			v := strings.TrimSpace(row.Values[field])
			if v == "" {
				v = def
			}
			return v, nil
		}, nil

	case TransformCast:
		field, def, target := r.SourceField, r.Default, r.CastType
		return func(row source.Row) (any, error) {
			v := strings.TrimSpace(row.Values[field])
			if v == "" {
				v = def
			}
			if v == "" {
				return nil, nil
			}
			return castValue(v, target)
		}, nil

	case TransformConstant:
		value := r.Value
		return func(source.Row) (any, error) { return value, nil }, nil

	case TransformConcat:
		fields, sep, def := r.Fields, r.Separator, r.Default
		return func(row source.Row) (any, error) {
			parts := make([]string, 0, len(fields))
			for _, f := range fields {
				if v := strings.TrimSpace(row.Values[f]); v != "" {
					parts = append(parts, v)
				}
			}
			if len(parts) == 0 {
				if def != "" {
					return def, nil
				}
				return "", nil
			}
			return strings.Join(parts, sep), nil
		}, nil

	default:
		return nil, core.Errorf(core.CodeConfiguration, "unknown transform %q", r.Transform)
	}
}

func castValue(v string, target core.ColumnType) (any, error) {
	switch target {
	case core.TypeInteger:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cast %q to integer: %w", v, err)
		}
		return n, nil
	case core.TypeFloat:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("cast %q to float: %w", v, err)
		}
		return f, nil
	case core.TypeBoolean:
		switch strings.ToLower(v) {
		case "true", "t", "yes":
			return true, nil
		case "false", "f", "no":
			return false, nil
		}
		return nil, fmt.Errorf("cast %q to boolean", v)
	case core.TypeDate:
		for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC().Format("2006-01-02"), nil
			}
		}
		return nil, fmt.Errorf("cast %q to date", v)
	case core.TypeString, core.TypeIdentifier, "":
		return v, nil
	}
	return nil, fmt.Errorf("unsupported cast target %q", target)
}
