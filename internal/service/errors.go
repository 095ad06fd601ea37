package service

import (
	"context"
	"errors"

	domainerrors "github.com/midasapp/midas-server/internal/errors"
	"github.com/midasapp/midas-server/internal/store"
)

// storeErr translates a store failure about noun ("user", "tag", ...) into a
// domain error. Context cancellation passes through untouched.
func storeErr(err error, noun string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, store.ErrNotFound):
		return domainerrors.Wrap(err, domainerrors.CodeNotFound, noun+" not found")
	case errors.Is(err, store.ErrAlreadyExists):
		return domainerrors.Wrap(err, domainerrors.CodeAlreadyExists, noun+" already exists")
	default:
		return domainerrors.Store(err, noun)
	}
}

func requireRequester(requesterID string) error {
	if requesterID == "" {
		return domainerrors.Unauthorized("authentication required")
	}
	return nil
}
