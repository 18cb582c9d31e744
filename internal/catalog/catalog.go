// Package catalog resolves hotels against the catalog service.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"stazy/pkg/client"
	"stazy/pkg/logger"
	"stazy/pkg/model"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrHotelNotFound      = errors.New("hotel not found in catalog")
	ErrCatalogUnavailable = errors.New("catalog service unavailable")
	ErrInvalidHotel       = errors.New("catalog returned an invalid hotel")
)

var tracer = otel.Tracer("stazy/internal/catalog")

// Hotel is the part of a catalog entry a booking needs.
type Hotel struct {
	ID          model.HotelID
	Name        string
	Slug        string
	Address     string
	Image       string
	Stars       int
	NightlyRate int64
}

// Snapshot freezes the hotel into the denormalized booking copy.
func (h *Hotel) Snapshot() model.BookingSnapshot {
	return model.BookingSnapshot{
		Hotel: model.HotelSnapshot{
			ID:      h.ID,
			Name:    h.Name,
			Slug:    h.Slug,
			Address: h.Address,
			Image:   h.Image,
			Stars:   h.Stars,
		},
		Room: model.RoomSnapshot{
			Name:           model.DefaultRoomName,
			PriceAtBooking: h.NightlyRate,
		},
	}
}

type Client interface {
	GetHotel(ctx context.Context, id model.HotelID) (*Hotel, error)
}

type httpCatalog struct {
	http *client.HttpClient
	log  *logger.Logger
}

func NewHTTPClient(httpClient *client.HttpClient, log *logger.Logger) Client {
	return &httpCatalog{http: httpClient, log: log}
}

// hotelResponse accepts the field spellings the catalog has used over time.
type hotelResponse struct {
	ID            json.Number `json:"id"`
	Name          string      `json:"name"`
	Title         string      `json:"title"`
	Slug          string      `json:"slug"`
	Address       string      `json:"address"`
	FeaturedImage string      `json:"featuredImage"`
	Image         string      `json:"image"`
	StarRating    json.Number `json:"starRating"`
	ReviewStar    json.Number `json:"reviewStar"`
	Price         json.Number `json:"price"`
}

func (c *httpCatalog) GetHotel(ctx context.Context, id model.HotelID) (*Hotel, error) {
	ctx, span := tracer.Start(ctx, "catalog.GetHotel")
	defer span.End()
	span.SetAttributes(attribute.Int64("hotel.id", int64(id)))

	resp, err := c.http.GET(ctx, "/api/hotels/"+id.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog request failed")
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrHotelNotFound, id)
	case !resp.IsSuccess():
		// Only 404 says anything about the hotel; auth, throttling and
		// server failures are the catalog's problem.
		c.log.Warn("Unexpected catalog response", "hotel_id", id, "status", resp.StatusCode)
		span.SetStatus(codes.Error, resp.Status)
		return nil, fmt.Errorf("%w: status %d: %s", ErrCatalogUnavailable, resp.StatusCode, client.GetErrorMessage(resp))
	}

	body, err := unwrapData(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHotel, err)
	}
	var raw hotelResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHotel, err)
	}

	hotel, err := raw.toHotel(id)
	if err != nil {
		return nil, err
	}
	return hotel, nil
}

// unwrapData returns the object under "data" when the body is an envelope.
func unwrapData(body []byte) ([]byte, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	if data, ok := envelope["data"]; ok && len(data) > 0 && data[0] == '{' {
		return data, nil
	}
	return body, nil
}

func (r *hotelResponse) toHotel(requested model.HotelID) (*Hotel, error) {
	h := &Hotel{
		ID:      requested,
		Name:    firstNonEmpty(r.Name, r.Title),
		Slug:    r.Slug,
		Address: r.Address,
		Image:   firstNonEmpty(r.FeaturedImage, r.Image),
	}

	if r.ID != "" {
		n, err := strconv.ParseInt(r.ID.String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: id %q", ErrInvalidHotel, r.ID)
		}
		h.ID = model.HotelID(n)
	}

	stars := r.StarRating
	if stars == "" {
		stars = r.ReviewStar
	}
	if stars != "" {
		if f, err := stars.Float64(); err == nil {
			h.Stars = int(math.Round(f))
		}
	}

	rate, err := parseAmount(r.Price)
	if err != nil {
		return nil, fmt.Errorf("%w: price %q: %v", ErrInvalidHotel, r.Price, err)
	}
	h.NightlyRate = rate
	return h, nil
}

// parseAmount reads a price that may be an integer, a decimal or a quoted
// decimal, rounding to whole currency units.
func parseAmount(n json.Number) (int64, error) {
	s := strings.Trim(n.String(), `" `)
	if s == "" {
		return 0, errors.New("missing")
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		if v < 0 {
			return 0, errors.New("negative")
		}
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("not a number")
	}
	if f < 0 {
		return 0, errors.New("negative")
	}
	return int64(math.Round(f)), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
