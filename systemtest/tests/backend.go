package tests

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/EternisAI/silo-enroll/internal/bsidca"
)

const envelope = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>%s</soap:Body>
</soap:Envelope>`

// Backend is a scripted SOAP endpoint. Each operation answers with the
// result element registered through Reply. While Down is set, Connect is
// refused and PingConnection reports false.
type Backend struct {
	mu      sync.Mutex
	replies map[string]string
	calls   map[string]int
	bodies  map[string]string
	down    bool
}

func NewBackend() *Backend {
	b := &Backend{
		replies: map[string]string{},
		calls:   map[string]int{},
		bodies:  map[string]string{},
	}
	b.Reply("Connect", "<ConnectResult>Success</ConnectResult>")
	b.Reply("PingConnection", "<PingConnectionResult>true</PingConnectionResult>")
	return b
}

// Reply registers the inner XML of <op>Response.
func (b *Backend) Reply(op, inner string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies[op] = inner
}

func (b *Backend) SetDown(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.down = down
}

func (b *Backend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// LastRequest returns the most recent request envelope received for op.
func (b *Backend) LastRequest(op string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bodies[op]
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	op := strings.TrimPrefix(strings.Trim(r.Header.Get("SOAPAction"), `"`), bsidca.Namespace)

	b.mu.Lock()
	b.calls[op]++
	b.bodies[op] = string(raw)
	inner, ok := b.replies[op]
	if b.down {
		switch op {
		case "Connect":
			inner, ok = "<ConnectResult>Failed</ConnectResult>", true
		case "PingConnection":
			inner, ok = "<PingConnectionResult>false</PingConnectionResult>", true
		}
	}
	b.mu.Unlock()

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, envelope, `<soap:Fault><faultcode>soap:Server</faultcode><faultstring>unexpected `+op+`</faultstring></soap:Fault>`)
		return
	}
	body := fmt.Sprintf(`<%sResponse xmlns="%s">%s</%sResponse>`, op, bsidca.Namespace, inner, op)
	fmt.Fprintf(w, envelope, body)
}
