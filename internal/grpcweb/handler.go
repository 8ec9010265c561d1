package grpcweb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"appointment-scheduler/internal/middleware"
)

// maxBody caps a single gRPC-Web request; booking messages are tiny.
const maxBody = 1 << 20

type Options struct {
	// AllowedOrigins may call the bridge cross-origin. "*" allows any.
	// Same-origin requests are always accepted.
	AllowedOrigins []string
}

// Bridge forwards browser gRPC-Web calls to the native gRPC server without
// decoding them: the request frame goes out as-is and the reply bytes come
// back as-is. The caller's IP travels as x-forwarded-for so per-client
// limits still apply behind the bridge.
type Bridge struct {
	conn    *grpc.ClientConn
	origins map[string]bool
	anyOrig bool
	log     *zap.Logger
}

// New dials the gRPC server at addr (e.g. "localhost:50051"). Extra dial
// options are appended to the insecure transport default.
func New(addr string, opts Options, log *zap.Logger, dial ...grpc.DialOption) (*Bridge, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dial = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, dial...)
	conn, err := grpc.NewClient(addr, dial...)
	if err != nil {
		return nil, fmt.Errorf("grpcweb dial: %w", err)
	}

	b := &Bridge{conn: conn, origins: map[string]bool{}, log: log}
	for _, o := range opts.AllowedOrigins {
		if o == "*" {
			b.anyOrig = true
			continue
		}
		b.origins[strings.TrimRight(o, "/")] = true
	}
	return b, nil
}

func (b *Bridge) Close() error { return b.conn.Close() }

type clientIPKey struct{}

// WithClientIP records the resolved client address for the bridge. Without
// it the bridge falls back to the request's RemoteAddr.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok && ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (b *Bridge) Handler() http.Handler {
	return http.HandlerFunc(b.serve)
}

func (b *Bridge) serve(w http.ResponseWriter, r *http.Request) {
	if origin := r.Header.Get("Origin"); origin != "" {
		if !b.allowOrigin(origin, r.Host) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Grpc-Web, X-User-Agent")
		h.Set("Access-Control-Expose-Headers", "Grpc-Status, Grpc-Message")
		h.Set("Access-Control-Max-Age", "600")
	}

	switch {
	case r.Method == http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case r.Method != http.MethodPost:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	case !strings.HasPrefix(r.Header.Get("Content-Type"), "application/grpc-web"):
		http.Error(w, "not grpc-web", http.StatusUnsupportedMediaType)
		return
	}

	payload, err := readFrame(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeResponse(w, nil, status.New(codes.InvalidArgument, err.Error()))
		return
	}

	md := metadata.Pairs(middleware.ForwardedForKey, clientIP(r))
	if v := r.Header.Get("Authorization"); v != "" {
		md.Set("authorization", v)
	}
	ctx := metadata.NewOutgoingContext(r.Context(), md)

	var reply frameBytes
	err = b.conn.Invoke(ctx, r.URL.Path, frameBytes(payload), &reply, grpc.ForceCodec(passthrough{}))
	st := status.Convert(err)
	if err != nil {
		b.log.Debug("grpc-web call failed",
			zap.String("method", r.URL.Path), zap.String("code", st.Code().String()))
		reply = nil
	}
	writeResponse(w, reply, st)
}

func (b *Bridge) allowOrigin(origin, host string) bool {
	if b.anyOrig || b.origins[origin] {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == host
}

// frameBytes is an already-encoded protobuf message.
type frameBytes []byte

// passthrough hands frameBytes to the transport untouched.
type passthrough struct{}

func (passthrough) Name() string { return "proto" }

func (passthrough) Marshal(v any) ([]byte, error) {
	return []byte(v.(frameBytes)), nil
}

func (passthrough) Unmarshal(data []byte, v any) error {
	*v.(*frameBytes) = append(frameBytes(nil), data...)
	return nil
}

const (
	dataFrame    byte = 0x00
	trailerFrame byte = 0x80
	headerLen         = 5
)

var errFrame = errors.New("malformed grpc-web frame")

// readFrame returns the message of the first data frame in r.
func readFrame(r io.Reader) ([]byte, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, errFrame
	}
	if hdr[0]&trailerFrame != 0 {
		return nil, errFrame
	}
	n := uint32(hdr[1])<<24 | uint32(hdr[2])<<16 | uint32(hdr[3])<<8 | uint32(hdr[4])
	if n > maxBody {
		return nil, errFrame
	}
	msg := make([]byte, n)
	if _, err := io.ReadFull(r, msg); err != nil {
		return nil, errFrame
	}
	return msg, nil
}

func appendFrame(out []byte, flag byte, msg []byte) []byte {
	n := len(msg)
	out = append(out, flag, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	return append(out, msg...)
}

// writeResponse emits an optional data frame followed by the trailer frame.
// gRPC-Web always answers 200; the outcome lives in grpc-status.
func writeResponse(w http.ResponseWriter, reply []byte, st *status.Status) {
	var out []byte
	if st.Code() == codes.OK {
		out = appendFrame(out, dataFrame, reply)
	}
	trailer := fmt.Sprintf("grpc-status:%d\r\n", st.Code())
	if msg := st.Message(); msg != "" {
		trailer += "grpc-message:" + encodeMessage(msg) + "\r\n"
	}
	out = appendFrame(out, trailerFrame, []byte(trailer))

	w.Header().Set("Content-Type", "application/grpc-web+proto")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// encodeMessage percent-encodes grpc-message as the gRPC HTTP/2 mapping does.
func encodeMessage(msg string) string {
	var sb strings.Builder
	for i := 0; i < len(msg); i++ {
		c := msg[i]
		if c >= ' ' && c <= '~' && c != '%' {
			sb.WriteByte(c)
			continue
		}
		fmt.Fprintf(&sb, "%%%02X", c)
	}
	return sb.String()
}
