package warehouse

import (
	"context"
	"sync"

	"github.com/wliao/retaildw/internal/contracts"
)

// Memory is an in-process warehouse store backing all four storage
// contracts. It mirrors the Postgres semantics exactly: natural-key
// upserts converge on one surrogate, fact inserts are idempotent on the
// composite key, report writes replace by run date. Used by tests and
// dry runs; not durable.
type Memory struct {
	mu sync.Mutex

	surrogates map[contracts.Dimension]map[string]int64
	nextKey    map[contracts.Dimension]int64
	products   map[string]string

	facts     map[factKey]*contracts.FactSale
	factOrder []factKey

	staging []contracts.RawRow

	reports map[string]*contracts.Report
}

type factKey struct {
	invoiceNo  string
	productKey int64
	timeKey    int64
}

// NewMemory creates an empty in-memory warehouse.
func NewMemory() *Memory {
	m := &Memory{
		surrogates: make(map[contracts.Dimension]map[string]int64),
		nextKey:    make(map[contracts.Dimension]int64),
		products:   make(map[string]string),
		facts:      make(map[factKey]*contracts.FactSale),
		reports:    make(map[string]*contracts.Report),
	}
	for _, dim := range []contracts.Dimension{
		contracts.DimProduct, contracts.DimCustomer,
		contracts.DimTime, contracts.DimCountry,
	} {
		m.surrogates[dim] = make(map[string]int64)
		m.nextKey[dim] = 1
	}
	return m
}

// Dimensions returns the surrogate-key mapping store.
func (m *Memory) Dimensions() contracts.DimensionStore { return &memDimensionStore{m: m} }

// Facts returns the fact store.
func (m *Memory) Facts() contracts.FactStore { return &memFactStore{m: m} }

// Staging returns the raw-row store.
func (m *Memory) Staging() contracts.StagingStore { return &memStagingStore{m: m} }

// Reports returns the report sink.
func (m *Memory) Reports() contracts.ReportSink { return &memReportStore{m: m} }

// FactCount returns the number of loaded facts.
func (m *Memory) FactCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.facts)
}

// LoadedFacts returns the loaded facts in insertion order.
func (m *Memory) LoadedFacts() []contracts.FactSale {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]contracts.FactSale, 0, len(m.factOrder))
	for _, k := range m.factOrder {
		out = append(out, *m.facts[k])
	}
	return out
}

// LatestReport returns the most recently written report, or nil.
func (m *Memory) LatestReport() *contracts.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *contracts.Report
	for _, r := range m.reports {
		if latest == nil || r.RunDate.After(latest.RunDate) {
			latest = r
		}
	}
	return latest
}

// ProductDescription returns the registered description for a stock code.
func (m *Memory) ProductDescription(stockCode string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[stockCode]
}

type memDimensionStore struct {
	m *Memory
}

func (s *memDimensionStore) Lookup(_ context.Context, dim contracts.Dimension, naturalKey string) (int64, bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	surrogate, ok := s.m.surrogates[dim][naturalKey]
	return surrogate, ok, nil
}

func (s *memDimensionStore) Insert(_ context.Context, dim contracts.Dimension, naturalKey string, attrs contracts.DimensionAttributes) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if dim == contracts.DimProduct {
		if existing, ok := s.m.products[naturalKey]; !ok || existing == "" {
			s.m.products[naturalKey] = attrs.Description
		}
	}

	if surrogate, ok := s.m.surrogates[dim][naturalKey]; ok {
		return surrogate, nil
	}

	surrogate := s.m.nextKey[dim]
	s.m.nextKey[dim]++
	s.m.surrogates[dim][naturalKey] = surrogate
	return surrogate, nil
}

type memFactStore struct {
	m *Memory
}

func (s *memFactStore) Exists(_ context.Context, invoiceNo string, productKey, timeKey int64) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	_, ok := s.m.facts[factKey{invoiceNo, productKey, timeKey}]
	return ok, nil
}

func (s *memFactStore) Insert(_ context.Context, fact *contracts.FactSale) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	key := factKey{fact.InvoiceNo, fact.ProductKey, fact.TimeKey}
	if _, ok := s.m.facts[key]; ok {
		return false, nil
	}

	stored := *fact
	stored.FactID = int64(len(s.m.factOrder) + 1)
	s.m.facts[key] = &stored
	s.m.factOrder = append(s.m.factOrder, key)
	return true, nil
}

type memStagingStore struct {
	m *Memory
}

func (s *memStagingStore) SaveRaw(_ context.Context, rows []contracts.RawRow) (int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	s.m.staging = append(s.m.staging, rows...)
	return len(rows), nil
}

func (s *memStagingStore) LoadRaw(_ context.Context) ([]contracts.RawRow, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	out := make([]contracts.RawRow, len(s.m.staging))
	copy(out, s.m.staging)
	return out, nil
}

// Cleanup drops all staged rows. The in-memory store tracks no row ages,
// so the retention window is ignored.
func (s *memStagingStore) Cleanup(_ context.Context, _ int) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	deleted := int64(len(s.m.staging))
	s.m.staging = nil
	return deleted, nil
}

type memReportStore struct {
	m *Memory
}

func (s *memReportStore) Write(_ context.Context, report *contracts.Report) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	stored := *report
	s.m.reports[report.RunDate.Format("2006-01-02")] = &stored
	return nil
}
