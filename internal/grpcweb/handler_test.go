package grpcweb_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"appointment-scheduler/internal/booking"
	"appointment-scheduler/internal/grpcapi"
	"appointment-scheduler/internal/grpcweb"
	"appointment-scheduler/internal/middleware"
	"appointment-scheduler/internal/store"
)

func newService(t *testing.T) *grpcapi.Server {
	t.Helper()
	st, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	now := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
	p := booking.DefaultPolicy(time.UTC)
	clock := booking.WithClock(func() time.Time { return now })
	return grpcapi.New(booking.NewValidator(st, p, clock), booking.NewSlotQuery(st, p, clock), st, nil, nil)
}

func setup(t *testing.T, opts grpcweb.Options) http.Handler {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpcapi.NewGRPCServer(newService(t), nil, "", nil, nil)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	b, err := grpcweb.New("passthrough:///bufnet", opts, nil,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }))
	if err != nil {
		t.Fatalf("bridge: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b.Handler()
}

func post(h http.Handler, method string, msg []byte) *httptest.ResponseRecorder {
	body := make([]byte, 5+len(msg))
	binary.BigEndian.PutUint32(body[1:5], uint32(len(msg)))
	copy(body[5:], msg)

	req := httptest.NewRequest(http.MethodPost, method, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/grpc-web+proto")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// frames splits a gRPC-Web response into its data payload and trailer text.
func frames(t *testing.T, b []byte) (data []byte, trailer string) {
	t.Helper()
	for len(b) >= 5 {
		n := int(binary.BigEndian.Uint32(b[1:5]))
		if len(b) < 5+n {
			t.Fatalf("truncated frame")
		}
		if b[0]&0x80 != 0 {
			trailer = string(b[5 : 5+n])
		} else {
			data = b[5 : 5+n]
		}
		b = b[5+n:]
	}
	return data, trailer
}

func TestBridgeBook(t *testing.T) {
	h := setup(t, grpcweb.Options{})

	req := (&grpcapi.BookRequest{AppointmentTime: "2025-03-17T14:00", Details: "via browser"}).Marshal()
	rec := post(h, grpcapi.MethodBook, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("http status %d", rec.Code)
	}
	data, trailer := frames(t, rec.Body.Bytes())
	if !strings.Contains(trailer, "grpc-status:0") {
		t.Fatalf("trailer: %q", trailer)
	}
	var resp grpcapi.BookResponse
	if err := resp.Unmarshal(data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Appointment == nil || resp.Appointment.AppointmentTime != "2025-03-17T14:00" {
		t.Errorf("response: %+v", resp)
	}

	// second booking of the hour comes back as a trailer-only error
	rec = post(h, grpcapi.MethodBook, req)
	_, trailer = frames(t, rec.Body.Bytes())
	if !strings.Contains(trailer, "grpc-status:6") || !strings.Contains(trailer, "Time slot already booked") {
		t.Errorf("trailer: %q", trailer)
	}
}

func TestBridgeList(t *testing.T) {
	h := setup(t, grpcweb.Options{})
	post(h, grpcapi.MethodBook, (&grpcapi.BookRequest{AppointmentTime: "2025-03-17T14:00", Details: "x"}).Marshal())

	rec := post(h, grpcapi.MethodListBookedSlots, nil)
	data, _ := frames(t, rec.Body.Bytes())
	var list grpcapi.ListBookedSlotsResponse
	if err := list.Unmarshal(data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.AppointmentTimes) != 1 {
		t.Errorf("list: %v", list.AppointmentTimes)
	}
}

func TestBridgeRejectsNonGRPCWeb(t *testing.T) {
	h := setup(t, grpcweb.Options{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, grpcapi.MethodBook, nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, grpcapi.MethodBook, strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("json: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, grpcapi.MethodBook, nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight: %d", rec.Code)
	}
}

func TestBridgeCORS(t *testing.T) {
	h := setup(t, grpcweb.Options{AllowedOrigins: []string{"https://book.example.com/"}})

	preflight := func(origin, host string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, grpcapi.MethodBook, nil)
		req.Host = host
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	tests := []struct {
		name, origin, host string
		want               int
	}{
		{"configured", "https://book.example.com", "api.example.com", http.StatusNoContent},
		{"same origin", "http://localhost:8080", "localhost:8080", http.StatusNoContent},
		{"foreign", "https://evil.example.net", "api.example.com", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := preflight(tt.origin, tt.host)
			if rec.Code != tt.want {
				t.Fatalf("got %d, want %d", rec.Code, tt.want)
			}
			allow := rec.Header().Get("Access-Control-Allow-Origin")
			if tt.want == http.StatusNoContent && allow != tt.origin {
				t.Errorf("allow-origin %q", allow)
			}
			if tt.want == http.StatusForbidden && allow != "" {
				t.Errorf("foreign origin got allow-origin %q", allow)
			}
		})
	}

	// a foreign page cannot post either
	body := []byte{0, 0, 0, 0, 0}
	req := httptest.NewRequest(http.MethodPost, grpcapi.MethodListBookedSlots, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/grpc-web+proto")
	req.Header.Set("Origin", "https://evil.example.net")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("foreign post: got %d", rec.Code)
	}

	wild := setup(t, grpcweb.Options{AllowedOrigins: []string{"*"}})
	req = httptest.NewRequest(http.MethodOptions, grpcapi.MethodBook, nil)
	req.Header.Set("Origin", "https://anything.example.org")
	rec = httptest.NewRecorder()
	wild.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("wildcard: got %d", rec.Code)
	}
}

// Browsers reach the gRPC server through one loopback connection; each must
// still be limited on its own address.
func TestBridgeRateLimitsPerBrowser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	rl := middleware.NewRateLimiter(ctx, 0.001, 1, nil)
	srv := grpcapi.NewGRPCServer(newService(t), rl, "", nil, nil)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	b, err := grpcweb.New(lis.Addr().String(), grpcweb.Options{}, nil)
	if err != nil {
		t.Fatalf("bridge: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	h := b.Handler()

	book := func(remote, at string) string {
		msg := (&grpcapi.BookRequest{AppointmentTime: at, Details: "x"}).Marshal()
		body := make([]byte, 5+len(msg))
		binary.BigEndian.PutUint32(body[1:5], uint32(len(msg)))
		copy(body[5:], msg)
		req := httptest.NewRequest(http.MethodPost, grpcapi.MethodBook, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/grpc-web+proto")
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		_, trailer := frames(t, rec.Body.Bytes())
		return trailer
	}

	if tr := book("198.51.100.1:1000", "2025-03-17T10:00"); !strings.Contains(tr, "grpc-status:0") {
		t.Fatalf("first browser: %q", tr)
	}
	if tr := book("203.0.113.7:2000", "2025-03-17T11:00"); !strings.Contains(tr, "grpc-status:0") {
		t.Fatalf("second browser: %q", tr)
	}
	if tr := book("198.51.100.1:1001", "2025-03-17T12:00"); !strings.Contains(tr, "grpc-status:8") {
		t.Errorf("first browser again: %q", tr)
	}

	// the resolved client IP from the router takes precedence over RemoteAddr
	msg := (&grpcapi.BookRequest{AppointmentTime: "2025-03-17T13:00", Details: "x"}).Marshal()
	body := append([]byte{0, 0, 0, 0, byte(len(msg))}, msg...)
	req := httptest.NewRequest(http.MethodPost, grpcapi.MethodBook, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/grpc-web+proto")
	req.RemoteAddr = "198.51.100.1:1002"
	req = req.WithContext(grpcweb.WithClientIP(req.Context(), "192.0.2.44"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if _, tr := frames(t, rec.Body.Bytes()); !strings.Contains(tr, "grpc-status:0") {
		t.Errorf("resolved client: %q", tr)
	}
}

func TestBridgeShortBody(t *testing.T) {
	h := setup(t, grpcweb.Options{})
	req := httptest.NewRequest(http.MethodPost, grpcapi.MethodBook, bytes.NewReader([]byte{0, 0}))
	req.Header.Set("Content-Type", "application/grpc-web+proto")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	_, trailer := frames(t, rec.Body.Bytes())
	if !strings.Contains(trailer, "grpc-status:3") {
		t.Errorf("trailer: %q", trailer)
	}
}
