package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Payload はサービスファサードに渡す検証済みのリクエスト内容。
type Payload = map[string]any

// ValidationError は入力検証に失敗した場合のエラー。メッセージはそのままレスポンスに使用する。
type ValidationError struct {
	// Field は検証に失敗したフィールド名。
	Field string
	// Message はクライアントに返すメッセージ。
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// presence はフィールドの必須条件。
type presence int

const (
	// present はキーが存在し、値がnullでないことを要求する。
	present presence = iota
	// nonEmpty はさらに値が空（"", "0", 0, false, 空配列, 空オブジェクト）でないことを要求する。
	nonEmpty
)

// coercion はフィールドの値の変換規則。
type coercion int

const (
	// keep は値を変換しない。
	keep coercion = iota
	// looseInt は整数に寛容に変換する。変換できない値は0になる。
	looseInt
	// strictInt は整数として厳密に解釈する。解釈できない値はエラー。
	strictInt
	// jsonString は値をJSON文字列に再シリアライズする。
	jsonString
)

// field はスキーマの1フィールド。
type field struct {
	name     string
	presence presence
	coerce   coercion
}

// schema は操作ごとの入力検証の定義。
type schema struct {
	// fields は検証するフィールド。必須条件はこの順に判定する。
	fields []field
	// missing は必須条件を満たさない場合のメッセージ。空の場合は "Missing field: <name>"。
	missing string
	// only が真の場合、ペイロードはfieldsのみで構成する。偽の場合はボディ全体を引き継ぐ。
	only bool
	// enrich が真の場合、検証後にプロバイダ名とAPIキーを設定値で上書きする。
	enrich bool
}

// schemas は操作ごとのスキーマ。
var schemas = map[Operation]schema{
	OpInstall:   {},
	OpUninstall: {},
	OpCreateDomain: {
		fields: []field{
			{name: "client_id", presence: present, coerce: looseInt},
			{name: "config", presence: present, coerce: jsonString},
		},
		missing: "Missing parameters: client_id and config are required",
		only:    true,
	},
	OpDeleteDomain: {
		fields: []field{
			{name: "config", presence: nonEmpty, coerce: jsonString},
		},
	},
	OpAddRecord: {
		fields: []field{
			{name: "domain_name", presence: nonEmpty},
			{name: "record_name", presence: nonEmpty},
			{name: "record_type", presence: nonEmpty},
			{name: "record_value", presence: nonEmpty},
			{name: "record_ttl", presence: nonEmpty, coerce: strictInt},
		},
		enrich: true,
	},
	OpUpdateRecord: {
		fields: []field{
			{name: "domain_name", presence: nonEmpty},
			{name: "record_id", presence: nonEmpty},
			{name: "record_name", presence: nonEmpty},
			{name: "record_type", presence: nonEmpty},
			{name: "record_value", presence: nonEmpty},
			{name: "record_ttl", presence: nonEmpty, coerce: strictInt},
		},
		enrich: true,
	},
	OpDeleteRecord: {
		fields: []field{
			{name: "domain_name", presence: nonEmpty},
			{name: "record_id", presence: nonEmpty},
		},
		enrich: true,
	},
}

// Identity はサービスファサードに注入するプロバイダの識別情報。
type Identity struct {
	// Provider はDNSプロバイダ名。
	Provider string
	// APIKey はプロバイダのAPIキー。
	APIKey string
}

// validate はボディをスキーマで検証し、サービスファサードに渡すペイロードを組み立てる。
func (s schema) validate(body *requestBody, id Identity) (Payload, error) {
	for _, f := range s.fields {
		if !f.presence.satisfied(body.fields, f.name) {
			msg := s.missing
			if msg == "" {
				msg = "Missing field: " + f.name
			}
			return nil, &ValidationError{Field: f.name, Message: msg}
		}
	}

	payload := make(Payload, len(body.fields)+2)
	if !s.only {
		for k, v := range body.fields {
			payload[k] = v
		}
	}
	for _, f := range s.fields {
		v, err := f.coerce.apply(body, f.name)
		if err != nil {
			return nil, err
		}
		payload[f.name] = v
	}

	if s.enrich {
		payload["provider"] = id.Provider
		payload["apikey"] = id.APIKey
	}
	return payload, nil
}

func (p presence) satisfied(fields map[string]any, name string) bool {
	v, ok := fields[name]
	if !ok || v == nil {
		return false
	}
	if p == present {
		return true
	}
	return !isEmpty(v)
}

// isEmpty は値が空とみなされるかを返す。
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == "" || t == "0"
	case bool:
		return !t
	case json.Number:
		f, err := strconv.ParseFloat(t.String(), 64)
		return err == nil && f == 0
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

func (c coercion) apply(body *requestBody, name string) (any, error) {
	v := body.fields[name]
	switch c {
	case looseInt:
		return toLooseInt(v), nil
	case strictInt:
		n, ok := toStrictInt(v)
		if !ok {
			return nil, &ValidationError{Field: name, Message: "Invalid " + name}
		}
		return n, nil
	case jsonString:
		var buf bytes.Buffer
		if err := json.Compact(&buf, body.raw[name]); err != nil {
			return nil, &ValidationError{Field: name, Message: "Invalid " + name}
		}
		return buf.String(), nil
	}
	return v, nil
}

// strictIntPattern は厳密な整数表記。先頭の0や小数、指数表記は許可しない。
var strictIntPattern = regexp.MustCompile(`^[+-]?(0|[1-9][0-9]*)$`)

// toStrictInt は整数のJSON数値、または前後の空白を除いて整数表記となる文字列を整数に変換する。
// JSON数値は 1.0 や 1e3 のように整数値を表すものも受け付ける。true は1。
func toStrictInt(v any) (int64, bool) {
	var s string
	switch t := v.(type) {
	case json.Number:
		if !strictIntPattern.MatchString(t.String()) {
			return integralNumber(t)
		}
		s = t.String()
	case bool:
		if t {
			return 1, true
		}
		return 0, false
	case string:
		s = strings.TrimSpace(t)
	default:
		return 0, false
	}
	if !strictIntPattern.MatchString(s) {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// integralNumber は小数部が0のJSON数値をint64に変換する。
func integralNumber(n json.Number) (int64, bool) {
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// looseIntPattern は文字列の先頭にある数値部分。
var looseIntPattern = regexp.MustCompile(`^[+-]?([0-9]+(\.[0-9]*)?|\.[0-9]+)([eE][+-]?[0-9]+)?`)

// toLooseInt は値を寛容に整数へ変換する。
// 文字列は先頭の数値部分のみを解釈し、小数は0方向に切り捨てる。解釈できない値は0。
func toLooseInt(v any) int64 {
	switch t := v.(type) {
	case json.Number:
		return numericPrefix(t.String())
	case string:
		return numericPrefix(strings.TrimLeft(t, " \t\n\r\v\f"))
	case bool:
		if t {
			return 1
		}
		return 0
	case []any:
		if len(t) > 0 {
			return 1
		}
	case map[string]any:
		if len(t) > 0 {
			return 1
		}
	}
	return 0
}

func numericPrefix(s string) int64 {
	m := looseIntPattern.FindString(s)
	if m == "" {
		return 0
	}
	if n, err := strconv.ParseInt(m, 10, 64); err == nil {
		return n
	} else if errors.Is(err, strconv.ErrRange) {
		if strings.HasPrefix(m, "-") {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return truncate(m)
}

// truncate は小数表記を0方向に切り捨てる。int64の範囲外やNaNは0。
func truncate(s string) int64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}
