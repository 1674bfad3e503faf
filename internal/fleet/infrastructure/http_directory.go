package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/felixgeelhaar/convoy/internal/fleet/domain"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/resilience"
	"github.com/felixgeelhaar/convoy/pkg/observability"
)

const defaultHTTPTimeout = 10 * time.Second

// HTTPDirectoryConfig configures the remote fleet service client.
type HTTPDirectoryConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
	Timeout      time.Duration
	Breaker      resilience.BreakerConfig
}

// HTTPDirectory looks drivers and vehicles up in a remote fleet service.
// Requests carry a client-credentials token and go through a circuit breaker.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
	breaker *resilience.Breaker[[]byte]
	logger  *slog.Logger
}

// NewHTTPDirectory creates the client. When TokenURL is empty requests are sent
// without credentials, which suits a fleet service on a private network.
func NewHTTPDirectory(ctx context.Context, cfg HTTPDirectoryConfig, logger *slog.Logger, metrics observability.Metrics) *HTTPDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}

	client := &http.Client{Timeout: cfg.Timeout}
	if cfg.TokenURL != "" {
		creds := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		client = creds.Client(ctx)
		client.Timeout = cfg.Timeout
	}

	breakerCfg := cfg.Breaker
	breakerCfg.Ignore = func(err error) bool { return errors.Is(err, domain.ErrNotFound) }

	return &HTTPDirectory{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		breaker: resilience.NewBreaker[[]byte]("fleet-directory", breakerCfg, logger, metrics),
		logger:  logger,
	}
}

var _ domain.Directory = (*HTTPDirectory)(nil)

func (d *HTTPDirectory) GetDriver(ctx context.Context, id uuid.UUID) (*domain.Driver, error) {
	body, err := d.fetch(ctx, "/drivers/"+id.String(), domain.ErrDriverNotFound)
	if err != nil {
		return nil, err
	}
	var driver domain.Driver
	if err := json.Unmarshal(body, &driver); err != nil {
		return nil, fmt.Errorf("decode driver: %w", err)
	}
	if err := driver.Validate(); err != nil {
		return nil, err
	}
	return &driver, nil
}

func (d *HTTPDirectory) GetVehicle(ctx context.Context, id uuid.UUID) (*domain.Vehicle, error) {
	body, err := d.fetch(ctx, "/vehicles/"+id.String(), domain.ErrVehicleNotFound)
	if err != nil {
		return nil, err
	}
	var vehicle domain.Vehicle
	if err := json.Unmarshal(body, &vehicle); err != nil {
		return nil, fmt.Errorf("decode vehicle: %w", err)
	}
	if err := vehicle.Validate(); err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func (d *HTTPDirectory) fetch(ctx context.Context, path string, notFound error) ([]byte, error) {
	return d.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if cid := observability.CorrelationIDFromContext(ctx); cid != "" {
			req.Header.Set("X-Correlation-ID", cid)
		}

		resp, err := d.client.Do(req)
		if err != nil {
			d.logger.Warn("fleet directory request failed", "path", path, "error", err)
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, notFound
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return nil, responseError(resp)
		}
		return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	})
}

func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return fmt.Errorf("fleet directory request failed: status=%d body=%s", resp.StatusCode, string(body))
}

// BreakerState reports the circuit state for readiness checks.
func (d *HTTPDirectory) BreakerState() string { return d.breaker.State() }
