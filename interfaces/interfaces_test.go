package interfaces

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/giygas/cureid-api/caseparser/entities"
)

// MockScheduler implements Scheduler for testing
type MockScheduler struct {
	started bool
	status  IngestionStatus
}

func (m *MockScheduler) Start() error {
	m.started = true
	m.status.LastRun = time.Now()
	return nil
}

func (m *MockScheduler) Stop() {
	m.started = false
}

func (m *MockScheduler) Status() IngestionStatus {
	return m.status
}

// MockSink implements EntrySink for testing
type MockSink struct {
	drugs    []*entities.DrugEntry
	regimens []*entities.RegimenEntry
}

func (m *MockSink) EmitDrug(_ context.Context, entry *entities.DrugEntry) error {
	m.drugs = append(m.drugs, entry)
	return nil
}

func (m *MockSink) EmitRegimen(_ context.Context, entry *entities.RegimenEntry) error {
	m.regimens = append(m.regimens, entry)
	return nil
}

// MockHTTPHandler implements HTTPHandler for testing
type MockHTTPHandler struct {
	calls []string
}

func (m *MockHTTPHandler) ServeDrugs(w http.ResponseWriter, r *http.Request) {
	m.calls = append(m.calls, "drugs")
	w.WriteHeader(http.StatusOK)
}

func (m *MockHTTPHandler) ServeRegimens(w http.ResponseWriter, r *http.Request) {
	m.calls = append(m.calls, "regimens")
	w.WriteHeader(http.StatusOK)
}

func (m *MockHTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	m.calls = append(m.calls, "health")
	w.WriteHeader(http.StatusOK)
}

// MockRequestValidator implements RequestValidator for testing
type MockRequestValidator struct{}

func (MockRequestValidator) ValidateAge(input string) (int, error) {
	return strconv.Atoi(input)
}

func (MockRequestValidator) ValidateGender(input string) (string, error) {
	return input, nil
}

func (MockRequestValidator) ValidateDrugID(input string) (int, error) {
	return strconv.Atoi(input)
}

var (
	_ Scheduler        = (*MockScheduler)(nil)
	_ EntrySink        = (*MockSink)(nil)
	_ HTTPHandler      = (*MockHTTPHandler)(nil)
	_ RequestValidator = MockRequestValidator{}
)

func TestSchedulerInterface(t *testing.T) {
	var s Scheduler = &MockScheduler{}

	if err := s.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if s.Status().LastRun.IsZero() {
		t.Error("Expected LastRun to be set after Start")
	}
	s.Stop()
}

func TestEntrySinkAcceptsBothKinds(t *testing.T) {
	sink := &MockSink{}
	var drugs DrugSink = sink
	var regimens RegimenSink = sink
	ctx := context.Background()

	if err := drugs.EmitDrug(ctx, &entities.DrugEntry{DrugID: 1}); err != nil {
		t.Fatal(err)
	}
	if err := regimens.EmitRegimen(ctx, &entities.RegimenEntry{RegimenID: 2}); err != nil {
		t.Fatal(err)
	}
	if len(sink.drugs) != 1 || len(sink.regimens) != 1 {
		t.Errorf("Expected one entry of each kind, got %d drugs and %d regimens", len(sink.drugs), len(sink.regimens))
	}
}

func TestHTTPHandlerInterface(t *testing.T) {
	m := &MockHTTPHandler{}
	var h HTTPHandler = m

	for _, serve := range []http.HandlerFunc{h.ServeDrugs, h.ServeRegimens, h.HealthCheck} {
		rr := httptest.NewRecorder()
		serve(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", rr.Code)
		}
	}
	if len(m.calls) != 3 {
		t.Errorf("Expected 3 calls, got %v", m.calls)
	}
}

func TestRequestValidatorInterface(t *testing.T) {
	var v RequestValidator = MockRequestValidator{}

	if age, err := v.ValidateAge("42"); err != nil || age != 42 {
		t.Errorf("ValidateAge(42) = %d, %v", age, err)
	}
	if _, err := v.ValidateDrugID("abc"); err == nil {
		t.Error("Expected error for non-numeric drug id")
	}
}
