package userbot

import (
	"context"
	"errors"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

// Prompter asks the user for login secrets through the control bot. Both
// calls block until the user replies or ctx is canceled.
type Prompter interface {
	AskCode(ctx context.Context, userID int64) (string, error)
	AskPassword(ctx context.Context, userID int64) (string, error)
}

// promptAuthenticator drives gotd's auth flow with values collected over the
// control bot conversation.
type promptAuthenticator struct {
	userID  int64
	phone   string
	prompts Prompter
}

func (a promptAuthenticator) Phone(_ context.Context) (string, error) {
	if a.phone == "" {
		return "", errors.New("no phone number on record")
	}
	return a.phone, nil
}

func (a promptAuthenticator) Code(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
	return a.prompts.AskCode(ctx, a.userID)
}

func (a promptAuthenticator) Password(ctx context.Context) (string, error) {
	return a.prompts.AskPassword(ctx, a.userID)
}

func (a promptAuthenticator) AcceptTermsOfService(_ context.Context, _ tg.HelpTermsOfService) error {
	return nil
}

func (a promptAuthenticator) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errors.New("sign up is not supported, use an existing account")
}
