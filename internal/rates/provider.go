package rates

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dstam/smart-import/internal/config"
)

// Store caches resolved rates keyed by (from, to, date).
type Store interface {
	GetRate(ctx context.Context, from, to, date string) (float64, bool, error)
	SaveRate(ctx context.Context, from, to, date string, rate float64) error
}

// Provider resolves historical exchange rates. Frankfurter is consulted
// first; on failure it falls back to the ECB SDMX data API and finally
// to the ECB daily reference XML. Resolved rates are cached in the
// store so repeated lookups for the same day stay local.
type Provider struct {
	cfg    config.RatesConfig
	client *http.Client
	store  Store
	logger *zap.Logger
}

// NewProvider creates an exchange rate provider
func NewProvider(cfg config.RatesConfig, store Store, logger *zap.Logger) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		store:  store,
		logger: logger,
	}
}

// Rate returns the conversion rate from one currency to another on the
// given date. Identical currencies yield 1 without any lookup.
func (p *Provider) Rate(ctx context.Context, from, to string, date time.Time) (float64, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to {
		return 1.0, nil
	}

	day := date.Format("2006-01-02")

	if cached, ok, err := p.store.GetRate(ctx, from, to, day); err != nil {
		p.logger.Warn("Rate cache lookup failed", zap.Error(err))
	} else if ok {
		return cached, nil
	}

	rate, err := p.frankfurter(ctx, from, to, day)
	if err != nil {
		p.logger.Warn("Frankfurter lookup failed, trying ECB data API", zap.Error(err))
		rate, err = p.ecbData(ctx, from, to, day)
	}
	if err != nil {
		p.logger.Warn("ECB data API lookup failed, trying ECB daily XML", zap.Error(err))
		rate, err = p.ecbDaily(ctx, from, to)
	}
	if err != nil {
		return 0, fmt.Errorf("no exchange rate available for %s/%s on %s: %w", from, to, day, err)
	}

	if err := p.store.SaveRate(ctx, from, to, day, rate); err != nil {
		p.logger.Warn("Failed to cache exchange rate", zap.Error(err))
	}

	p.logger.Info("Exchange rate resolved",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("date", day),
		zap.Float64("rate", rate))
	return rate, nil
}

// frankfurter queries the Frankfurter API for a historical rate.
func (p *Provider) frankfurter(ctx context.Context, from, to, day string) (float64, error) {
	url := fmt.Sprintf("%s/%s?from=%s&to=%s", p.cfg.FrankfurterURL, day, from, to)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("frankfurter returned status %d", resp.StatusCode)
	}

	var body struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	rate, ok := body.Rates[to]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("frankfurter response missing rate for %s", to)
	}
	return rate, nil
}

// ecbData queries the ECB SDMX data API. The EXR dataset quotes EUR
// against each currency, so non-EUR pairs cross through EUR.
func (p *Provider) ecbData(ctx context.Context, from, to, day string) (float64, error) {
	quoteFrom, err := p.ecbQuote(ctx, from, day)
	if err != nil {
		return 0, err
	}
	quoteTo, err := p.ecbQuote(ctx, to, day)
	if err != nil {
		return 0, err
	}
	return quoteTo / quoteFrom, nil
}

// ecbQuote returns how many units of the currency one EUR buys on the
// given day. EUR itself quotes as 1.
func (p *Provider) ecbQuote(ctx context.Context, currency, day string) (float64, error) {
	if currency == "EUR" {
		return 1.0, nil
	}

	url := fmt.Sprintf("%s/D.%s.EUR.SP00.A?startPeriod=%s&endPeriod=%s&format=csvdata",
		p.cfg.ECBDataURL, currency, day, day)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("ECB data API returned status %d for %s", resp.StatusCode, currency)
	}

	records, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		return 0, err
	}
	if len(records) < 2 {
		return 0, fmt.Errorf("ECB data API returned no observations for %s", currency)
	}

	obsCol := -1
	for i, col := range records[0] {
		if col == "OBS_VALUE" {
			obsCol = i
			break
		}
	}
	if obsCol < 0 {
		return 0, fmt.Errorf("ECB data API response has no OBS_VALUE column")
	}

	last := records[len(records)-1]
	if obsCol >= len(last) {
		return 0, fmt.Errorf("malformed ECB data API row")
	}
	quote, err := strconv.ParseFloat(last[obsCol], 64)
	if err != nil || quote <= 0 {
		return 0, fmt.Errorf("invalid ECB observation %q", last[obsCol])
	}
	return quote, nil
}

type ecbEnvelope struct {
	Cubes []struct {
		Currency string `xml:"currency,attr"`
		Rate     string `xml:"rate,attr"`
	} `xml:"Cube>Cube>Cube"`
}

// ecbDaily falls back to the published daily reference rates. These are
// today's rates, not historical ones, which is acceptable as a last
// resort.
func (p *Provider) ecbDaily(ctx context.Context, from, to string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.ECBDailyXMLURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("ECB daily XML returned status %d", resp.StatusCode)
	}

	var envelope ecbEnvelope
	if err := xml.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return 0, err
	}

	quotes := map[string]float64{"EUR": 1.0}
	for _, cube := range envelope.Cubes {
		if rate, err := strconv.ParseFloat(cube.Rate, 64); err == nil && rate > 0 {
			quotes[cube.Currency] = rate
		}
	}

	quoteFrom, okFrom := quotes[from]
	quoteTo, okTo := quotes[to]
	if !okFrom || !okTo {
		return 0, fmt.Errorf("ECB daily XML has no quote for %s/%s", from, to)
	}
	return quoteTo / quoteFrom, nil
}
