// Package logger builds *slog.Logger values for oidckit binaries and
// provides attribute helpers that keep key names consistent across packages.
//
// New creates a logger from functional options. The handler is text or JSON
// and is wrapped in a LogHandlerDecorator that runs ContextExtractor
// callbacks on every record, so request-scoped values end up in the output
// without being passed explicitly.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithEnvironment(logger.Development, "oidc-login"),
//	    logger.WithContextValue("request_id", requestIDKey),
//	)
//	log.InfoContext(ctx, "signed in",
//	    logger.Subject(user.Subject()),
//	    logger.Navigator("signinPopup"),
//	)
//
// Helpers such as Error, Subject, Source and Navigator return an empty Attr
// for zero input, which slog drops, so
//
//	log.Info("sign-in finished", logger.Error(err))
//
// needs no nil check.
package logger
