// SPDX-License-Identifier: MIT

package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// MockServer provides a configurable catalog mock for testing.
type MockServer struct {
	*httptest.Server
	mu       sync.RWMutex
	places   []Place
	channels map[string][]mockChannel // placeID -> channels
	failures map[string]int           // endpoint -> failures before success
	raw      map[string]string        // endpoint -> raw body override
	hits     map[string]int           // endpoint -> requests served
}

type mockChannel struct {
	title string
	page  *Page // nil marks a bare item without a listen page
}

// NewMockServer creates an empty catalog mock. Populate it with
// AddPlace and AddChannel before use.
func NewMockServer() *MockServer {
	mock := &MockServer{
		channels: make(map[string][]mockChannel),
		failures: make(map[string]int),
		raw:      make(map[string]string),
		hits:     make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/places", mock.handlePlaces)
	mux.HandleFunc("/page/", mock.handleChannels)
	mux.HandleFunc("/listen/", mock.handleListen)

	mock.Server = httptest.NewServer(mux)
	return mock
}

// AddPlace registers a place in the catalog.
func (m *MockServer) AddPlace(id, title, country string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.places = append(m.places, Place{ID: id, Title: title, Country: country})
}

// AddChannel registers a playable channel under a place.
func (m *MockServer) AddChannel(placeID, title, pageURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[placeID] = append(m.channels[placeID], mockChannel{
		title: title,
		page:  &Page{URL: pageURL, Title: title},
	})
}

// AddBareItem registers a channel item without a listen page. Clients
// must skip these.
func (m *MockServer) AddBareItem(placeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[placeID] = append(m.channels[placeID], mockChannel{})
}

// SetFailures makes the next count requests to endpoint answer 500.
func (m *MockServer) SetFailures(endpoint string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[endpoint] = count
}

// SetRawResponse overrides the body served for endpoint.
func (m *MockServer) SetRawResponse(endpoint, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw[endpoint] = body
}

// Hits returns how many requests an endpoint has served.
func (m *MockServer) Hits(endpoint string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hits[endpoint]
}

// gate applies failure injection and raw overrides. It reports whether
// the handler should continue with its regular response.
func (m *MockServer) gate(w http.ResponseWriter, endpoint string) bool {
	m.mu.Lock()
	m.hits[endpoint]++
	if m.failures[endpoint] > 0 {
		m.failures[endpoint]--
		m.mu.Unlock()
		http.Error(w, "injected failure", http.StatusInternalServerError)
		return false
	}
	raw, hasRaw := m.raw[endpoint]
	m.mu.Unlock()

	if hasRaw {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(raw))
		return false
	}
	return true
}

func (m *MockServer) handlePlaces(w http.ResponseWriter, r *http.Request) {
	if !m.gate(w, "places") {
		return
	}

	m.mu.RLock()
	resp := placesResponse{}
	resp.Data.List = append(resp.Data.List, m.places...)
	m.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (m *MockServer) handleChannels(w http.ResponseWriter, r *http.Request) {
	if !m.gate(w, "channels") {
		return
	}

	placeID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/page/"), "/channels")

	m.mu.RLock()
	chs := m.channels[placeID]
	resp := channelsResponse{}
	if len(chs) > 0 {
		content := struct {
			Items []struct {
				Page *Page `json:"page"`
			} `json:"items"`
		}{}
		for _, ch := range chs {
			content.Items = append(content.Items, struct {
				Page *Page `json:"page"`
			}{Page: ch.page})
		}
		resp.Data.Content = append(resp.Data.Content, content)
	}
	m.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleListen serves a short fake MP3 payload so resolved stream URLs
// are fetchable in tests.
func (m *MockServer) handleListen(w http.ResponseWriter, r *http.Request) {
	if !m.gate(w, "listen") {
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	_, _ = w.Write([]byte("ID3mockaudio"))
}
