// Package dispatch delivers plaintext one-time codes to their owners.
//
// Every dispatcher implements SendCode(ctx, email, code) and can be handed
// to goOTC.Builder.WithDispatcher. Three are provided:
//
//   - Func adapts a plain function, the usual choice when an application
//     already owns a mail client.
//   - Log writes the code to a logging.Logger instead of sending it. It is
//     meant for local development only.
//   - SMTP renders a text template and submits it to an SMTP relay.
package dispatch
