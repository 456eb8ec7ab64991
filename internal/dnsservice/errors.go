package dnsservice

import (
	"fmt"

	"github.com/nao1215/plexdns-gateway/pkg/migration"
)

// スキーマの構築状態に関するエラー。
var (
	ErrAlreadyInstalled = migration.ErrAlreadyInstalled
	ErrNotInstalled     = migration.ErrNotInstalled
)

// NotFoundError は対象のドメインやレコードが存在しない場合のエラー。
type NotFoundError struct {
	// Kind は対象の種類（"Domain" または "Record"）。
	Kind string
	// Key は対象を特定する値。
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
}

// ConflictError は同じドメインが既に存在する場合のエラー。
type ConflictError struct {
	// Kind は対象の種類。
	Kind string
	// Key は重複した値。
	Key string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Kind, e.Key)
}

// InvalidFieldError はファサードに渡された値が不正な場合のエラー。
type InvalidFieldError struct {
	// Field はフィールド名。
	Field string
	// Reason は補足説明。空の場合は付与しない。
	Reason string
}

func (e *InvalidFieldError) Error() string {
	if e.Reason == "" {
		return "Invalid " + e.Field
	}
	return fmt.Sprintf("Invalid %s: %s", e.Field, e.Reason)
}
