package geolocation

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// DefaultTimeout bounds how long a caller waits for a position.
const DefaultTimeout = 5 * time.Second

// ErrGroundingUnavailable is returned when no position could be determined.
// Callers treat it as non-fatal and send the request without location bias.
var ErrGroundingUnavailable = errors.New("location unavailable for grounding")

// Position is a latitude/longitude pair in decimal degrees.
type Position struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Locator determines the caller's position.
type Locator interface {
	Locate(ctx context.Context) (Position, error)
}

// StaticLocator always returns the configured position.
type StaticLocator struct {
	Position Position
}

func (s *StaticLocator) Locate(ctx context.Context) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, errors.Wrap(ErrGroundingUnavailable, err.Error())
	}
	return s.Position, nil
}

// NoopLocator never yields a position.
type NoopLocator struct{}

func (NoopLocator) Locate(context.Context) (Position, error) {
	return Position{}, ErrGroundingUnavailable
}

// LocateWithin asks l for a position, giving up after timeout. Every failure
// is reported as ErrGroundingUnavailable.
func LocateWithin(ctx context.Context, l Locator, timeout time.Duration) (Position, error) {
	if l == nil {
		return Position{}, ErrGroundingUnavailable
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		pos Position
		err error
	}
	c := make(chan result, 1)
	go func() {
		pos, err := l.Locate(ctx)
		c <- result{pos, err}
	}()

	select {
	case <-ctx.Done():
		return Position{}, errors.Wrap(ErrGroundingUnavailable, ctx.Err().Error())
	case r := <-c:
		if r.err != nil {
			if errors.Is(r.err, ErrGroundingUnavailable) {
				return Position{}, r.err
			}
			return Position{}, errors.Wrap(ErrGroundingUnavailable, r.err.Error())
		}
		return r.pos, nil
	}
}
