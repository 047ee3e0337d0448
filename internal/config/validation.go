package config

import (
	"fmt"
	"math"
	"net/url"

	"git.home.luguber.info/inful/stargazer/internal/foundation/errors"
)

// Validate checks a defaulted configuration.
func Validate(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	return v.validate()
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validate() error {
	if err := cv.validateAPI(); err != nil {
		return err
	}
	if err := cv.validateStorage(); err != nil {
		return err
	}
	if err := cv.validateSession(); err != nil {
		return err
	}
	return nil
}

func (cv *configurationValidator) validateAPI() error {
	u, err := url.Parse(cv.config.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.ValidationError("api.base_url must be an absolute URL").
			WithContext("base_url", cv.config.API.BaseURL).
			Build()
	}
	if cv.config.API.Retry.Max < cv.config.API.Retry.Initial {
		return errors.ValidationError("api.retry.max must not be smaller than api.retry.initial").Build()
	}
	return nil
}

func (cv *configurationValidator) validateStorage() error {
	s := cv.config.Storage
	if NormalizeStorageBackend(string(s.Backend)) == "" {
		return errors.ValidationError(fmt.Sprintf("unknown storage backend %q, valid options: %v", s.Backend, StorageBackendNames())).Build()
	}
	if s.Backend == StorageNATS && s.NATSURL == "" {
		return errors.ValidationError("storage.nats_url is required for the nats backend").Build()
	}
	return nil
}

func (cv *configurationValidator) validateSession() error {
	loc := cv.config.Session.DefaultLocation
	if loc == nil {
		return nil
	}
	if math.IsNaN(loc.Lat) || loc.Lat < -90 || loc.Lat > 90 {
		return errors.ValidationError("session.default_location.lat must be within [-90, 90]").
			WithContext("lat", loc.Lat).
			Build()
	}
	if math.IsNaN(loc.Lon) || loc.Lon < -180 || loc.Lon > 180 {
		return errors.ValidationError("session.default_location.lon must be within [-180, 180]").
			WithContext("lon", loc.Lon).
			Build()
	}
	return nil
}
