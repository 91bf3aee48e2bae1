package service

import (
	"errors"
	"fmt"
	"strings"

	"deeplink/internal/model"
	"deeplink/internal/utils"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// NewValidationRequest normalizes the domain input and trims the optional
// app identifiers.
func NewValidationRequest(input, prefix, bundle, pkg string) (model.ValidationRequest, error) {
	domain, err := utils.NormalizeDomain(input)
	if err != nil {
		return model.ValidationRequest{}, fmt.Errorf("invalid domain: %w", err)
	}
	req := model.ValidationRequest{
		Domain:         domain,
		IOSPrefix:      strings.TrimSpace(prefix),
		IOSBundle:      strings.TrimSpace(bundle),
		AndroidPackage: strings.TrimSpace(pkg),
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return model.ValidationRequest{}, fmt.Errorf("invalid %s", strings.ToLower(verrs[0].Field()))
		}
		return model.ValidationRequest{}, err
	}
	return req, nil
}

// CacheKey identifies a request in the report cache.
func CacheKey(req model.ValidationRequest) string {
	return strings.Join([]string{req.Domain, req.IOSPrefix, req.IOSBundle, req.AndroidPackage}, "|")
}
