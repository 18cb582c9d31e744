package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stazy/pkg/client"
	"stazy/pkg/logger"
	"stazy/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalog(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(client.NewHttpClient(srv.URL, time.Second), logger.Discard())
}

func TestGetHotel(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    *Hotel
		wantErr error
	}{
		{
			name:   "name and numeric price",
			status: http.StatusOK,
			body:   `{"id":12,"name":"Sea View","slug":"sea-view","address":"1 Beach Rd","image":"a.jpg","starRating":4,"price":500000}`,
			want:   &Hotel{ID: 12, Name: "Sea View", Slug: "sea-view", Address: "1 Beach Rd", Image: "a.jpg", Stars: 4, NightlyRate: 500000},
		},
		{
			name:   "title, featured image and decimal string price",
			status: http.StatusOK,
			body:   `{"id":"12","title":"Old Town","featuredImage":"f.jpg","image":"ignored.jpg","price":"750000.00"}`,
			want:   &Hotel{ID: 12, Name: "Old Town", Image: "f.jpg", NightlyRate: 750000},
		},
		{
			name:   "data envelope",
			status: http.StatusOK,
			body:   `{"data":{"id":12,"name":"Wrapped","price":100}}`,
			want:   &Hotel{ID: 12, Name: "Wrapped", NightlyRate: 100},
		},
		{
			name:    "not found",
			status:  http.StatusNotFound,
			body:    `{"message":"no such hotel"}`,
			wantErr: ErrHotelNotFound,
		},
		{
			name:    "server error",
			status:  http.StatusBadGateway,
			body:    `{"error":"db down"}`,
			wantErr: ErrCatalogUnavailable,
		},
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			body:    `{"message":"bad token"}`,
			wantErr: ErrCatalogUnavailable,
		},
		{
			name:    "forbidden",
			status:  http.StatusForbidden,
			wantErr: ErrCatalogUnavailable,
		},
		{
			name:    "throttled",
			status:  http.StatusTooManyRequests,
			wantErr: ErrCatalogUnavailable,
		},
		{
			name:    "missing price",
			status:  http.StatusOK,
			body:    `{"id":12,"name":"Free"}`,
			wantErr: ErrInvalidHotel,
		},
		{
			name:    "negative price",
			status:  http.StatusOK,
			body:    `{"id":12,"name":"Odd","price":-5}`,
			wantErr: ErrInvalidHotel,
		},
		{
			name:    "not json",
			status:  http.StatusOK,
			body:    `<html>`,
			wantErr: ErrInvalidHotel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCatalog(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/hotels/12", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			got, err := c.GetHotel(context.Background(), model.HotelID(12))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetHotel_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewHTTPClient(client.NewHttpClient(url, time.Second), logger.Discard())
	_, err := c.GetHotel(context.Background(), model.HotelID(1))
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestHotel_Snapshot(t *testing.T) {
	h := &Hotel{ID: 3, Name: "Inn", Slug: "inn", Stars: 2, NightlyRate: 900}
	s := h.Snapshot()

	assert.Equal(t, model.HotelID(3), s.Hotel.ID)
	assert.Equal(t, "Inn", s.Hotel.Name)
	assert.Equal(t, model.DefaultRoomName, s.Room.Name)
	assert.Equal(t, int64(900), s.Room.PriceAtBooking)
}
