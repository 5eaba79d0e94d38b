package geolocation

import (
	"context"
	"encoding/json"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultIPLocatorURL is queried by IPLocator when no URL is configured.
const DefaultIPLocatorURL = "http://ip-api.com/json"

// IPLocator resolves the caller's approximate position from its public IP.
type IPLocator struct {
	client *resty.Client
	url    string
}

func NewIPLocator(url string) *IPLocator {
	if url == "" {
		url = DefaultIPLocatorURL
	}
	return &IPLocator{
		client: resty.New().SetTimeout(DefaultTimeout),
		url:    url,
	}
}

type ipLookupResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

func (l *IPLocator) Locate(ctx context.Context) (Position, error) {
	res, err := l.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(l.url)
	if err != nil {
		log.Debug().Err(err).Str("url", l.url).Msg("ip lookup failed")
		return Position{}, errors.Wrap(ErrGroundingUnavailable, err.Error())
	}
	if !res.IsSuccess() {
		log.Debug().Int("status_code", res.StatusCode()).Str("body", res.String()).Msg("ip lookup returned error")
		return Position{}, errors.Wrapf(ErrGroundingUnavailable, "ip lookup returned status %d", res.StatusCode())
	}

	var body ipLookupResponse
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return Position{}, errors.Wrap(ErrGroundingUnavailable, "could not parse ip lookup response")
	}
	if body.Status != "" && body.Status != "success" {
		return Position{}, errors.Wrapf(ErrGroundingUnavailable, "ip lookup failed: %s", body.Message)
	}
	if body.Lat == nil || body.Lon == nil {
		return Position{}, errors.Wrap(ErrGroundingUnavailable, "ip lookup returned no coordinates")
	}
	return Position{Latitude: *body.Lat, Longitude: *body.Lon}, nil
}
