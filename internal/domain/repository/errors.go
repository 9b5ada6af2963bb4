package repository

import "errors"

var (
	// ErrNotFound indica que el recurso solicitado no existe.
	ErrNotFound = errors.New("not found")

	// ErrConflict indica un conflicto de nombre (PENDING duplicado para el usuario).
	ErrConflict = errors.New("conflict")

	// ErrDuplicateAccount indica que (user, provider, email) ya está ACTIVE.
	ErrDuplicateAccount = errors.New("duplicate account")

	// ErrInvalidTransition indica una transición de estado fuera de la máquina
	// (ej: finalize sobre una fila que ya no es PENDING).
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrInvalidInput indica que los datos de entrada son inválidos.
	ErrInvalidInput = errors.New("invalid input")
)

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict verifica si el error es ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
