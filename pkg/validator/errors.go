package validator

import "github.com/sandboxlab/sandbox-core/pkg/sberrors"

func blockedError(message string) error {
	return sberrors.NewBlocked(message)
}
