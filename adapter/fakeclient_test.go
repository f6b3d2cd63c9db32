package adapter

import (
	"context"
	"encoding/json"
	"sync"
)

// fakeRDPClient is an in-memory rdp.Client used across adapter tests: it
// records every call it receives and lets a test script canned results or
// errors per method name, the same shape docker-buildx's own tests fake
// out a gateway client with.
type fakeRDPClient struct {
	mu       sync.Mutex
	calls    []fakeCall
	results  map[string]any
	errors   map[string]error
	handlers map[string]func(json.RawMessage)
}

type fakeCall struct {
	Method string
	Params any
}

func newFakeRDPClient() *fakeRDPClient {
	return &fakeRDPClient{
		results:  make(map[string]any),
		errors:   make(map[string]error),
		handlers: make(map[string]func(json.RawMessage)),
	}
}

func (f *fakeRDPClient) Call(ctx context.Context, method string, params, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{Method: method, Params: params})
	err := f.errors[method]
	result, hasResult := f.results[method]
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if hasResult && out != nil {
		b, mErr := json.Marshal(result)
		if mErr != nil {
			return mErr
		}
		return json.Unmarshal(b, out)
	}
	return nil
}

func (f *fakeRDPClient) On(method string, fn func(params json.RawMessage)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = fn
}

func (f *fakeRDPClient) Close() error { return nil }

func (f *fakeRDPClient) fire(method string, params json.RawMessage) {
	f.mu.Lock()
	fn := f.handlers[method]
	f.mu.Unlock()
	if fn != nil {
		fn(params)
	}
}

func (f *fakeRDPClient) setError(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[method] = err
}

func (f *fakeRDPClient) callsFor(method string) []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}
