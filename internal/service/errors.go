package service

import (
	"errors"

	"github.com/sakif/foodshare/internal/apperror"
)

func isNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}
