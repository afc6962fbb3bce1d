// Package core предоставляет базовые интерфейсы и систему ошибок библиотеки.
package core

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Коды ошибок библиотеки
const (
	ErrNotFound      = "NOT_FOUND"
	ErrAlreadyExists = "ALREADY_EXISTS"
	ErrConflict      = "CONFLICT"
	ErrInvalidConfig = "INVALID_CONFIG"
)

// StoreError базовый тип ошибки библиотеки
type StoreError struct {
	Code       string
	Message    string
	Cause      error
	StackTrace string
}

// Error реализует интерфейс error
func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap возвращает причину ошибки
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Is проверяет, соответствует ли ошибка коду
func (e *StoreError) Is(target error) bool {
	if t, ok := target.(*StoreError); ok {
		return e.Code == t.Code
	}
	return false
}

// NewError создает новую ошибку библиотеки
func NewError(code, message string) *StoreError {
	return &StoreError{
		Code:       code,
		Message:    message,
		StackTrace: captureStackTrace(),
	}
}

// Wrap оборачивает существующую ошибку
func Wrap(err error, code, message string) *StoreError {
	if err == nil {
		return nil
	}
	return &StoreError{
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: captureStackTrace(),
	}
}

// IsCode проверяет, несет ли ошибка (или ее причина) указанный код
func IsCode(err error, code string) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsNotFound проверяет, является ли ошибка ошибкой отсутствия entity
func IsNotFound(err error) bool {
	return IsCode(err, ErrNotFound)
}

// IsAlreadyExists проверяет, является ли ошибка ошибкой дубликата
func IsAlreadyExists(err error) bool {
	return IsCode(err, ErrAlreadyExists)
}

// captureStackTrace захватывает stack trace
func captureStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	stack := string(buf[:n])

	// Убираем первые несколько строк (сама функция captureStackTrace)
	lines := strings.Split(stack, "\n")
	if len(lines) > 4 {
		lines = lines[4:]
	}
	return strings.Join(lines, "\n")
}
