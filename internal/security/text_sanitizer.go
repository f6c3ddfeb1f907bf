// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はユーザー入力の表示名などをプレーンテキストに正規化し、
// 明細書PDFやSMS本文へ埋め込む前にHTMLや制御文字を取り除く。
package security

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// 表示名の最大文字数
const maxTextLength = 100

// TextSanitizer はプレーンテキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// Sanitize は全てのHTMLタグを除去し、制御文字を取り除き、
	// 連続する空白を1つにまとめた文字列を返す。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのStrictPolicyで全タグを除去する。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はプレーンテキストに正規化した文字列を返す。
func (s *textSanitizer) Sanitize(raw string) string {
	// StrictPolicyは&などをエスケープするため元に戻す
	text := html.UnescapeString(s.policy.Sanitize(raw))

	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, text)
	text = strings.Join(strings.Fields(text), " ")

	if runes := []rune(text); len(runes) > maxTextLength {
		text = string(runes[:maxTextLength])
	}
	return text
}
