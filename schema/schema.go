// Package schema declares the shape and constraints of every procedure
// input. The same struct tags drive boundary validation in the RPC layer
// and form/flag generation on the input-collection side.
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

var (
	Statuses = []string{"single", "married", "divorced", "separated", "widowed"}
	Genders  = []string{"male", "female"}
)

// ListRecordsInput is the input of record.all.
type ListRecordsInput struct {
	PageNumber int    `json:"pageNumber" validate:"min=1" label:"Page"`
	SearchTerm string `json:"searchTerm,omitempty" validate:"max=100" label:"Search"`
	SortType   string `json:"sortType" validate:"required,oneof=asc desc" label:"Sort"`
}

// SuggestInput is the input of record.suggest.
type SuggestInput struct {
	Prefix string `json:"prefix" validate:"notblank,max=100" label:"Prefix"`
}

// Record is a patient without its identifier (record.add).
type Record struct {
	Name       string         `json:"name" validate:"notblank" label:"Name"`
	Address    string         `json:"address" validate:"notblank" label:"Address"`
	Telephone  string         `json:"telephone" validate:"notblank" label:"Telephone"`
	Occupation string         `json:"occupation" validate:"notblank" label:"Occupation"`
	Status     string         `json:"status" validate:"required,oneof=single married divorced separated widowed" label:"Status"`
	Gender     string         `json:"gender" validate:"required,oneof=male female" label:"Gender"`
	Complaint  string         `json:"complaint" validate:"notblank" label:"Complaint"`
	Birthday   datatypes.Date `json:"birthday" validate:"required,notfuture" label:"Birthday"`
}

// RecordEdit is a patient including its identifier (record.edit).
type RecordEdit struct {
	ID string `json:"id" validate:"notblank" label:"ID"`
	Record
}

// Transaction is a treatment entry without identifiers.
type Transaction struct {
	Date    datatypes.Date  `json:"date" validate:"required" label:"Date"`
	Tooth   string          `json:"tooth" validate:"notblank" label:"Tooth"`
	Service string          `json:"service" validate:"notblank" label:"Service"`
	Fees    decimal.Decimal `json:"fees" validate:"dgt=0,dscale=2,dlte=9999999999.99" label:"Fees"`
}

// TransactionAdd is the input of transaction.add.
type TransactionAdd struct {
	RecordID string `json:"recordId" validate:"notblank" label:"Record ID"`
	Transaction
}

// TransactionEdit is the input of transaction.edit. The owning record
// cannot be changed.
type TransactionEdit struct {
	ID string `json:"id" validate:"notblank" label:"ID"`
	Transaction
}

// Issue is a single failed constraint.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when an input fails its declared
// constraints.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, is.Field+" "+is.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(f reflect.Value) interface{} {
		// Decimals are validated from their exact text form.
		if d, ok := f.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterCustomTypeFunc(func(f reflect.Value) interface{} {
		if d, ok := f.Interface().(datatypes.Date); ok {
			return time.Time(d)
		}
		return nil
	}, datatypes.Date{})

	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("notfuture", notFuture); err != nil {
		panic(err)
	}
	for tag, fn := range map[string]validator.Func{
		"dgt":    decimalGreater,
		"dlte":   decimalAtMost,
		"dscale": decimalScale,
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	return v
}

func notFuture(fl validator.FieldLevel) bool {
	t, ok := fl.Field().Interface().(time.Time)
	if !ok {
		return false
	}
	return !t.After(time.Now())
}

// decimalArgs parses a decimal field and its numeric tag parameter.
func decimalArgs(fl validator.FieldLevel) (decimal.Decimal, decimal.Decimal, bool) {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	p, err := decimal.NewFromString(fl.Param())
	if err != nil {
		panic(fmt.Sprintf("bad decimal parameter %q on %s", fl.Param(), fl.FieldName()))
	}
	return d, p, true
}

func decimalGreater(fl validator.FieldLevel) bool {
	d, p, ok := decimalArgs(fl)
	return ok && d.GreaterThan(p)
}

func decimalAtMost(fl validator.FieldLevel) bool {
	d, p, ok := decimalArgs(fl)
	return ok && d.LessThanOrEqual(p)
}

// decimalScale accepts values with at most param fractional digits.
func decimalScale(fl validator.FieldLevel) bool {
	d, p, ok := decimalArgs(fl)
	if !ok {
		return false
	}
	places := int32(p.IntPart())
	return d.Equal(d.Truncate(places))
}

// Validate checks v against its validate tags.
func Validate(v any) error {
	return convert(validate.Struct(v))
}

// ValidateID checks a bare identifier argument.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Issues: []Issue{{Field: "id", Message: "is required"}}}
	}
	return nil
}

func convert(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Issues: make([]Issue, 0, len(verrs))}
	for _, fe := range verrs {
		out.Issues = append(out.Issues, Issue{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gt", "dgt":
		return "must be greater than " + fe.Param()
	case "dlte":
		return "must be at most " + fe.Param()
	case "dscale":
		return "must have at most " + fe.Param() + " decimal places"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "notfuture":
		return "must not be in the future"
	}
	return "is invalid"
}
