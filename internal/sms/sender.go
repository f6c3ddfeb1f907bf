// Package sms はSMS送信の抽象とPlivoによる実装を提供する。
package sms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/plivo/plivo-go/v7"
)

// ErrNotConfigured はSMS送信元の設定がない場合のエラー。
var ErrNotConfigured = errors.New("sms sender is not configured")

// Sender はSMSを1通送信するインターフェース。
type Sender interface {
	Send(ctx context.Context, to, text string) error
}

// messageCreator はplivo.MessageServiceの送信部分。
type messageCreator interface {
	Create(params plivo.MessageCreateParams) (*plivo.MessageCreateResponseBody, error)
}

// PlivoSender はPlivo Messages APIを使ったSender実装。
type PlivoSender struct {
	messages messageCreator
	src      string
}

// NewPlivoSender はPlivoクライアントを生成してPlivoSenderを返す。
// 認証情報または送信元番号が空の場合はErrNotConfiguredを返す。
func NewPlivoSender(authID, authToken, src string, timeout time.Duration) (*PlivoSender, error) {
	if authID == "" || authToken == "" || src == "" {
		return nil, ErrNotConfigured
	}

	client, err := plivo.NewClient(authID, authToken, &plivo.ClientOptions{
		HttpClient: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("Plivoクライアントの生成に失敗しました: %w", err)
	}

	return &PlivoSender{messages: client.Messages, src: src}, nil
}

// Send はtoにtextを送信する。
// Plivo SDKはcontextを受け取らないため、ctxの終了時は応答を待たずに返る。
func (s *PlivoSender) Send(ctx context.Context, to, text string) error {
	if to == "" {
		return errors.New("送信先の電話番号が空です")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.messages.Create(plivo.MessageCreateParams{
			Src:  s.src,
			Dst:  to,
			Text: text,
		})
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("SMSの送信に失敗しました: %w", err)
		}
		return nil
	}
}

// DisabledSender はSMS未設定時に使うSender。常にErrNotConfiguredを返す。
type DisabledSender struct{}

// Send は常にErrNotConfiguredを返す。
func (DisabledSender) Send(ctx context.Context, to, text string) error {
	return ErrNotConfigured
}

var (
	_ Sender = (*PlivoSender)(nil)
	_ Sender = DisabledSender{}
)
