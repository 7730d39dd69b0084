package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/RoyceAzure/lab/storefront/internal/apperror"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/util"
	"github.com/go-chi/chi/v5"
)

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperror.Validation("invalid request body")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.Validation("invalid %s", name)
	}
	return id, nil
}

// memberID auth middleware 之後一定存在, 這裡再防一次
func memberID(r *http.Request) (int64, error) {
	id, ok := util.MemberIDFromContext(r.Context())
	if !ok {
		return 0, apperror.Unauthenticated()
	}
	return id, nil
}

func parseSelector(optionID *int64) (model.OptionSelector, error) {
	selector, err := model.ParseOptionSelector(optionID)
	if err != nil {
		return selector, apperror.Validation("%s", err.Error())
	}
	return selector, nil
}
