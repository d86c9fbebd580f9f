package service

import (
	"errors"

	apperrors "github.com/laggis/Discord-Ticket-bot/pkg/util"
)

func storeError(err error) error {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.NewStoreError(err)
}

func gatewayError(err error) error {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.NewExternalServiceError(err)
}
