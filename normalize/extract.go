// Package normalize extracts candidate identity and display fields from a
// loosely-typed intake payload. Extraction is a pure function: an absent or
// malformed field is not an error, it just yields fewer identities.
package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lippelima5/repolead-sub000/core"
)

const (
	defaultMaxTags        = 30
	defaultMinPhoneDigits = 8
)

type Identity struct {
	Type       core.IdentityType
	Normalized string
	Raw        string
}

type Extraction struct {
	Name       string
	Email      string
	Phone      string
	Tags       []string
	Identities []Identity
}

type Config struct {
	EmailFields      []string
	PhoneFields      []string
	ExternalIDFields []string
	NameFields       []string
	MaxTags          int
	MinPhoneDigits   int
}

func DefaultConfig() Config {
	return Config{
		EmailFields:      []string{"email", "email_address", "mail"},
		PhoneFields:      []string{"phone", "phone_number", "mobile", "tel"},
		ExternalIDFields: []string{"external_id", "lead_id", "ref", "id"},
		NameFields:       []string{"name", "full_name"},
		MaxTags:          defaultMaxTags,
		MinPhoneDigits:   defaultMinPhoneDigits,
	}
}

func Extract(payload map[string]any, cfg Config) Extraction {
	cfg = cfg.withDefaults()

	extraction := Extraction{
		Name: firstNonEmpty(payload, cfg.NameFields),
		Tags: extractTags(payload["tags"], cfg.MaxTags),
	}
	if extraction.Name == "" {
		extraction.Name = joinedName(payload)
	}

	if raw := firstNonEmpty(payload, cfg.EmailFields); raw != "" {
		if email := normalizeEmail(raw); email != "" {
			extraction.Email = email
			extraction.Identities = append(extraction.Identities, Identity{
				Type:       core.IdentityTypeEmail,
				Normalized: email,
				Raw:        raw,
			})
		}
	}
	if raw := firstNonEmpty(payload, cfg.PhoneFields); raw != "" {
		if phone := normalizePhone(raw, cfg.MinPhoneDigits); phone != "" {
			extraction.Phone = phone
			extraction.Identities = append(extraction.Identities, Identity{
				Type:       core.IdentityTypePhone,
				Normalized: phone,
				Raw:        raw,
			})
		}
	}
	if raw := firstNonEmpty(payload, cfg.ExternalIDFields); raw != "" {
		extraction.Identities = append(extraction.Identities, Identity{
			Type:       core.IdentityTypeExternal,
			Normalized: strings.ToLower(raw),
			Raw:        raw,
		})
	}
	return extraction
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if len(c.EmailFields) == 0 {
		c.EmailFields = defaults.EmailFields
	}
	if len(c.PhoneFields) == 0 {
		c.PhoneFields = defaults.PhoneFields
	}
	if len(c.ExternalIDFields) == 0 {
		c.ExternalIDFields = defaults.ExternalIDFields
	}
	if len(c.NameFields) == 0 {
		c.NameFields = defaults.NameFields
	}
	if c.MaxTags <= 0 {
		c.MaxTags = defaults.MaxTags
	}
	if c.MinPhoneDigits <= 0 {
		c.MinPhoneDigits = defaults.MinPhoneDigits
	}
	return c
}

func normalizeEmail(raw string) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	if !strings.Contains(email, "@") {
		return ""
	}
	return email
}

func normalizePhone(raw string, minDigits int) string {
	trimmed := strings.TrimSpace(raw)
	var builder strings.Builder
	digits := 0
	for i, r := range trimmed {
		if r == '+' && i == 0 {
			builder.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			builder.WriteRune(r)
			digits++
		}
	}
	if digits < minDigits {
		return ""
	}
	return builder.String()
}

func extractTags(raw any, maxTags int) []string {
	var candidates []string
	switch typed := raw.(type) {
	case []string:
		candidates = typed
	case []any:
		for _, entry := range typed {
			value, ok := entry.(string)
			if !ok {
				return nil
			}
			candidates = append(candidates, value)
		}
	default:
		return nil
	}

	tags := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if len(tags) >= maxTags {
			break
		}
		trimmed := strings.TrimSpace(candidate)
		if trimmed == "" {
			continue
		}
		tags = append(tags, trimmed)
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

func firstNonEmpty(payload map[string]any, fields []string) string {
	for _, field := range fields {
		if value := readString(payload[field]); value != "" {
			return value
		}
	}
	return ""
}

func joinedName(payload map[string]any) string {
	first := readString(payload["first_name"])
	last := readString(payload["last_name"])
	return strings.TrimSpace(strings.Join([]string{first, last}, " "))
}

func readString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	case json.Number:
		return strings.TrimSpace(typed.String())
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	default:
		return ""
	}
}
