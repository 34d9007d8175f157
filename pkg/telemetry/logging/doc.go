// Package logging builds the service's log/slog logger.
//
// The returned Logger wraps a JSON or text handler with a handler that
// appends request_id, user_id and job_id from the context and, when PII
// redaction is on, masks e-mail addresses, bearer tokens, passwords and
// API keys in messages and attribute values:
//
//	log, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
//	log.SetDefault()
//	slog.InfoContext(logging.WithRequestID(ctx, id), "expense added", "email", user.Email)
//	// {"msg":"expense added","request_id":"...","email":"a***@example.com"}
//
// The minimum level is held in a slog.LevelVar, so SetLevel applied from a
// config reload takes effect on every derived logger.
package logging
