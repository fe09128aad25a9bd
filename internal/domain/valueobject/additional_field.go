package valueobject

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
)

// FieldType is the declared type of an additional field.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeNumber   FieldType = "number"
	FieldTypeEmail    FieldType = "email"
	FieldTypePhone    FieldType = "phone"
	FieldTypeDate     FieldType = "date"
	FieldTypeURL      FieldType = "url"
	FieldTypeSelect   FieldType = "select"
	FieldTypeCheckbox FieldType = "checkbox"
)

// Теги validator для типов, которые проверяются строкой.
var fieldTypeTags = map[FieldType]string{
	FieldTypeText:   "max=2000",
	FieldTypeNumber: "numeric",
	FieldTypeEmail:  "email",
	FieldTypePhone:  "e164",
	FieldTypeDate:   "datetime=2006-01-02",
	FieldTypeURL:    "url",
}

var fieldValidator = validator.New()

func (t FieldType) IsValid() bool {
	if _, ok := fieldTypeTags[t]; ok {
		return true
	}
	return t == FieldTypeSelect || t == FieldTypeCheckbox
}

// FieldSchema describes a field declared in the service catalog.
type FieldSchema struct {
	Name     string    `json:"name"`
	Label    string    `json:"label,omitempty"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Options  []string  `json:"options,omitempty"`
}

// AdditionalField represents a field value in an order.
// Value is stored as a string, the type comes from the schema.
type AdditionalField struct {
	Name  string    `json:"name"`
	Value string    `json:"value"`
	Type  FieldType `json:"type"`
}

// ValidateAdditionalFields проверяет переданные поля по схеме услуги
// и возвращает поля с типами из схемы.
func ValidateAdditionalFields(schema []FieldSchema, input map[string]string) ([]AdditionalField, error) {
	known := make(map[string]FieldSchema, len(schema))
	for _, f := range schema {
		known[f.Name] = f
	}

	for name := range input {
		if _, ok := known[name]; !ok {
			return nil, apperror.Newf(apperror.ErrCodeValidation, "additionalFields.%s: поле не объявлено в услуге", name)
		}
	}

	fields := make([]AdditionalField, 0, len(input))
	for _, def := range schema {
		raw, ok := input[def.Name]
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" {
			if def.Required {
				return nil, apperror.Newf(apperror.ErrCodeValidation, "additionalFields.%s: поле обязательно", def.Name)
			}
			continue
		}

		if err := validateFieldValue(def, raw); err != nil {
			return nil, apperror.Newf(apperror.ErrCodeValidation, "additionalFields.%s: %v", def.Name, err)
		}

		fields = append(fields, AdditionalField{Name: def.Name, Value: raw, Type: def.Type})
	}

	return fields, nil
}

func validateFieldValue(def FieldSchema, value string) error {
	switch def.Type {
	case FieldTypeSelect:
		for _, opt := range def.Options {
			if opt == value {
				return nil
			}
		}
		return fmt.Errorf("значение %q не входит в список допустимых", value)
	case FieldTypeCheckbox:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("ожидается true или false")
		}
		return nil
	}

	tag, ok := fieldTypeTags[def.Type]
	if !ok {
		return fmt.Errorf("неизвестный тип поля %q", def.Type)
	}
	if err := fieldValidator.Var(value, tag); err != nil {
		return fmt.Errorf("значение не соответствует типу %s", def.Type)
	}
	return nil
}
