package dnsservice

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/miekg/dns"
	"github.com/spf13/cast"
)

// stringField はペイロードの値を文字列として取り出す。存在しない場合は空文字列。
func stringField(p map[string]any, key string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", nil
	}
	if n, ok := v.(json.Number); ok {
		return n.String(), nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", &InvalidFieldError{Field: key}
	}
	return strings.TrimSpace(s), nil
}

// requiredString は空でない文字列フィールドを取り出す。
func requiredString(p map[string]any, key string) (string, error) {
	s, err := stringField(p, key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("Missing field: %s", key)
	}
	return s, nil
}

// int64Field はペイロードの値を整数として取り出す。
// 文字列は10進数としてのみ解釈する。
func int64Field(p map[string]any, key string) (int64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("Missing field: %s", key)
	}
	switch t := v.(type) {
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, &InvalidFieldError{Field: key}
		}
		return n, nil
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, &InvalidFieldError{Field: key}
		}
		return n, nil
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return 0, &InvalidFieldError{Field: key}
	}
	return n, nil
}

// decodeConfig はJSON文字列として渡されたドメイン設定をオブジェクトに復元する。
func decodeConfig(raw any) (map[string]any, error) {
	s, ok := raw.(string)
	if !ok || s == "" {
		return nil, fmt.Errorf("Missing field: config")
	}

	var cfg map[string]any
	if err := json.Unmarshal([]byte(s), &cfg); err != nil || cfg == nil {
		return nil, &InvalidFieldError{Field: "config", Reason: "expected a JSON object"}
	}
	return cfg, nil
}

// normalizeDomain はドメイン名を小文字・末尾ドット無しに正規化して検証する。
func normalizeDomain(name string) (string, error) {
	n := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))
	if n == "" {
		return "", fmt.Errorf("Missing field: domain_name")
	}
	if strings.ContainsAny(n, " \t\r\n") {
		return "", &InvalidFieldError{Field: "domain_name", Reason: name}
	}
	if _, ok := dns.IsDomainName(n); !ok {
		return "", &InvalidFieldError{Field: "domain_name", Reason: name}
	}
	return n, nil
}

// normalizeType はレコードタイプを大文字に正規化し、既知のタイプかを検証する。
func normalizeType(t string) (string, error) {
	upper := strings.ToUpper(t)
	if _, ok := dns.StringToType[upper]; !ok || upper == "ANY" || upper == "NONE" {
		return "", fmt.Errorf("Unsupported record_type: %s", t)
	}
	return upper, nil
}
