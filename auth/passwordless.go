package auth

import (
	"context"
	"io"

	"github.com/johnsto/go-passwordless"
)

func (a *Auth) getTransport() string {
	if a.Environment == EnvProduction {
		return "Email"
	}
	return "Log"
}

// Request will send a link to email with the sign-in token
func (a *Auth) Request(ctx context.Context, uid, recipient string) error {
	return a.pw.RequestToken(ctx, a.getTransport(), uid, recipient)
}

// Verify checks if the sign-in token is valid and corresponds to the user
func (a *Auth) Verify(ctx context.Context, uid, token string) (bool, error) {
	valid, err := a.pw.VerifyToken(ctx, uid, token)
	switch err {
	case passwordless.ErrNoResponseWriter, passwordless.ErrNoStore, passwordless.ErrNoTransport, passwordless.ErrNotValidForContext:
		return valid, err
	default:
		return valid, nil
	}
}

func composeFuncGetter(options EmailOption) passwordless.ComposerFunc {
	return func(ctx context.Context, token, uid, recipient string, w io.Writer) error {
		e := &passwordless.Email{
			Subject: "Your sign-in link for " + options.Name,
			To:      recipient,
		}

		link := options.LinkGenerator(uid, token)

		text := "Someone asked to sign in to " + options.Name +
			" with this email address.\n\n" +
			"Your sign-in token is " + token + ", valid for 15 minutes - " +
			"or use the following link: " + link + "\n\n" +
			"(If this wasn't you, you can safely ignore this email.)"
		html := "<!doctype html><html><body>" +
			"<p>Someone asked to sign in to " + options.Name +
			" with this email address.</p>" +
			"<p>Your sign-in token is <b>" + token + "</b>, valid for 15 minutes - " +
			"or <a href=\"" + link + "\">click here</a> to sign in.</p>" +
			"<p>(If this wasn't you, you can safely ignore this email.)</p>" +
			"</body></html>"

		e.AddBody("text/plain", text)
		e.AddBody("text/html", html)

		_, err := e.Write(w)

		return err
	}
}
