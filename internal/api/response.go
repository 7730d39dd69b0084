package api

import (
	"encoding/json"
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/apperror"
)

const SuccessCode = 0

type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type retryInfo struct {
	Retryable bool `json:"retryable"`
	Detail    any  `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func SuccessJSON(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Code: SuccessCode, Message: "success", Data: data})
}

func ErrorJSON(w http.ResponseWriter, status int, code apperror.Code, message string, data any) {
	if message == "" {
		message = apperror.ErrStrMap[code]
	}
	writeJSON(w, status, Response{Code: int(code), Message: message, Data: data})
}

// WriteError AppError 以外的錯誤一律回 500, 不帶內部訊息
func WriteError(w http.ResponseWriter, err error) {
	appErr, ok := apperror.From(err)
	if !ok || appErr.Code == apperror.InternalCode {
		ErrorJSON(w, http.StatusInternalServerError, apperror.InternalCode, "", nil)
		return
	}
	var data any
	if appErr.Retryable || appErr.Detail != nil {
		data = retryInfo{Retryable: appErr.Retryable, Detail: appErr.Detail}
	}
	ErrorJSON(w, appErr.HTTPStatus(), appErr.Code, appErr.Message, data)
}
