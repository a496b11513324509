package command

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/io7m-com/idstore-sub007/internal/errs"
	"github.com/io7m-com/idstore-sub007/middleware"
)

// HandlerFunc is the business logic of one command. It may read and write
// through the context's transaction, call SecurityCheck, and raise errors
// from the closed domain set.
type HandlerFunc[C any, R any] func(ctx context.Context, cctx *Context, cmd C) (R, error)

// Execute runs the handler and normalizes its failure, implementing the
// dispatch contract once for every concrete command.
//
// On success the typed response is returned and the caller commits. On a
// recognized failure a *errs.Failure is returned and the caller must roll
// back. An unrecognized error propagates unwrapped: it is a programming
// defect, not something to dress up as a structured failure, and it too
// forces a rollback.
func Execute[C any, R any](ctx context.Context, cctx *Context, cmd C, h HandlerFunc[C, R]) (R, error) {
	ctx, span := middleware.StartSpan(ctx, "command.execute", trace.WithAttributes(
		attribute.String("layer", "command"),
		attribute.String("request_id", cctx.RequestID().String()),
	))
	defer span.End()

	resp, err := h(ctx, cctx, cmd)
	if err == nil {
		return resp, nil
	}

	span.RecordError(err)

	var zero R
	failure := cctx.normalize(err)
	if failure == nil {
		// Outside the closed set: propagate as a fatal request failure.
		cctx.logger.Error().Err(err).Msg("Unrecognized command failure")
		return zero, err
	}

	cctx.logger.Warn().
		Str("code", failure.Code).
		Int("status", failure.Status).
		Err(err).
		Msg("Command failed")
	return zero, failure
}

// normalize converts a recognized domain error into a Failure, or returns
// nil for errors outside the closed set.
func (c *Context) normalize(err error) *errs.Failure {
	var validation *errs.ValidationError
	if errors.As(err, &validation) {
		return c.FailValidation(validation)
	}

	var security *errs.SecurityError
	if errors.As(err, &security) {
		return c.FailSecurity(security)
	}

	var password *errs.PasswordError
	if errors.As(err, &password) {
		return c.FailPassword(password)
	}

	var protocol *errs.ProtocolError
	if errors.As(err, &protocol) {
		return c.FailProtocol(protocol)
	}

	var mail *errs.MailError
	if errors.As(err, &mail) {
		return c.FailMail(mail)
	}

	var storage *errs.StorageError
	if errors.As(err, &storage) {
		return c.FailStorage(storage)
	}

	var failure *errs.Failure
	if errors.As(err, &failure) {
		// Already normalized; pass through with its request id intact.
		return failure
	}

	var coded errs.Coded
	if errors.As(err, &coded) {
		return c.FailCoded(coded)
	}

	return nil
}
