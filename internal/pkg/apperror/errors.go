package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound               ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized           ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden              ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest             ErrorCode = "BAD_REQUEST"
	ErrCodeValidation             ErrorCode = "VALIDATION_ERROR"
	ErrCodeStateConflict          ErrorCode = "STATE_CONFLICT"
	ErrCodeInsufficientBalance    ErrorCode = "INSUFFICIENT_BALANCE"
	ErrCodeConcurrentModification ErrorCode = "CONCURRENT_MODIFICATION"
	ErrCodeExternalService        ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeStateConflict, ErrCodeConcurrentModification:
		return http.StatusConflict
	case ErrCodeInsufficientBalance:
		return http.StatusUnprocessableEntity
	case ErrCodeExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает машинный код ошибки, INTERNAL_ERROR если ошибка не AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeNotFound
}

func IsStateConflict(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeStateConflict
}

func IsValidation(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeValidation
}

func IsInsufficientBalance(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeInsufficientBalance
}

var (
	ErrConversationNotFound = New(ErrCodeNotFound, "беседа не найдена")
	ErrNegotiationNotFound  = New(ErrCodeNotFound, "активное предложение не найдено")
	ErrPaymentNotFound      = New(ErrCodeNotFound, "платёж не найден")
	ErrWalletNotFound       = New(ErrCodeNotFound, "кошелёк не найден")
	ErrApplicationNotFound  = New(ErrCodeNotFound, "отклик не найден")
	ErrGigNotFound          = New(ErrCodeNotFound, "задание не найдено")
	ErrUnauthorized         = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden            = New(ErrCodeForbidden, "недостаточно прав")

	ErrInvalidAmount          = New(ErrCodeValidation, "сумма должна быть положительной")
	ErrNotAParticipant        = New(ErrCodeForbidden, "пользователь не является участником беседы")
	ErrNoActiveNegotiation    = New(ErrCodeStateConflict, "в беседе нет ожидающего предложения")
	ErrSelfAcceptance         = New(ErrCodeStateConflict, "нельзя принять собственное предложение")
	ErrNoAgreedAmount         = New(ErrCodeStateConflict, "сумма не согласована и не передана явно")
	ErrPaymentInFlight        = New(ErrCodeStateConflict, "по беседе уже есть незавершённый платёж")
	ErrInvalidTransition      = New(ErrCodeStateConflict, "недопустимый переход статуса")
	ErrAlreadyRejected        = New(ErrCodeStateConflict, "отклик уже отклонён")
	ErrNoIterationsLeft       = New(ErrCodeStateConflict, "лимит итераций исчерпан")
	ErrWalletBlocked          = New(ErrCodeForbidden, "кошелёк заблокирован")
	ErrInsufficientBalance    = New(ErrCodeInsufficientBalance, "недостаточно средств на кошельке")
	ErrConcurrentModification = New(ErrCodeConcurrentModification, "сущность изменена параллельно, повторите запрос")
	ErrGatewayUnavailable     = New(ErrCodeExternalService, "платёжный шлюз недоступен, попробуйте позже")
	ErrInvalidSignature       = New(ErrCodeForbidden, "подпись подтверждения оплаты не прошла проверку")
)
