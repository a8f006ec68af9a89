package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DateLayout is the layout used when a date is entered as text.
const DateLayout = "2006-01-02"

type FieldKind string

const (
	KindText   FieldKind = "text"
	KindSelect FieldKind = "select"
	KindDate   FieldKind = "date"
	KindNumber FieldKind = "number"
)

// Field describes one input so a form or a command line can collect it.
type Field struct {
	Name     string
	Label    string
	Kind     FieldKind
	Required bool
	Options  []string
	// Min is the exclusive (gt, dgt) or inclusive (min) lower bound, if any.
	Min string
}

var (
	dateType    = reflect.TypeOf(datatypes.Date{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
)

// Describe lists the fields of an input struct in declaration order.
// Embedded structs are flattened the same way encoding/json does.
func Describe(v any) []Field {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return describe(t)
}

func describe(t reflect.Type) []Field {
	var fields []Field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Anonymous && sf.Type.Kind() == reflect.Struct {
			fields = append(fields, describe(sf.Type)...)
			continue
		}
		if !sf.IsExported() {
			continue
		}
		name := strings.SplitN(sf.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}
		f := Field{Name: name, Label: sf.Tag.Get("label"), Kind: kindOf(sf.Type)}
		if f.Label == "" {
			f.Label = sf.Name
		}
		for _, rule := range strings.Split(sf.Tag.Get("validate"), ",") {
			tag, param, _ := strings.Cut(rule, "=")
			switch tag {
			case "required", "notblank":
				f.Required = true
			case "oneof":
				f.Kind = KindSelect
				f.Options = strings.Fields(param)
				f.Required = true
			case "gt", "dgt", "min":
				if f.Kind == KindNumber {
					f.Min = param
					f.Required = true
				}
			}
		}
		fields = append(fields, f)
	}
	return fields
}

func kindOf(t reflect.Type) FieldKind {
	switch {
	case t == dateType:
		return KindDate
	case t == decimalType:
		return KindNumber
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int32, reflect.Int64, reflect.Float32, reflect.Float64:
		return KindNumber
	}
	return KindText
}

// FromStrings fills dst from text values keyed by field name, converting
// each value according to its declared kind. Empty values are left unset
// so that Validate reports them.
func FromStrings(dst any, values map[string]string) error {
	raw := make(map[string]any, len(values))
	for _, f := range Describe(dst) {
		s, ok := values[f.Name]
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		switch f.Kind {
		case KindDate:
			d, err := time.Parse(DateLayout, strings.TrimSpace(s))
			if err != nil {
				return &ValidationError{Issues: []Issue{{Field: f.Name, Message: "must be a date (YYYY-MM-DD)"}}}
			}
			raw[f.Name] = d.Format(time.RFC3339)
		case KindNumber:
			n := json.Number(strings.TrimSpace(s))
			if _, err := n.Float64(); err != nil {
				return &ValidationError{Issues: []Issue{{Field: f.Name, Message: "must be a number"}}}
			}
			raw[f.Name] = n
		default:
			raw[f.Name] = s
		}
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode fields: %w", err)
	}
	return nil
}
