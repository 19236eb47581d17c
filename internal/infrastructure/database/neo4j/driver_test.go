package neo4j

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/xas-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/xas-miner/pkg/errors"
)

type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) VerifyConnectivity(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDriver) NewSession(ctx context.Context, config neo4j.SessionConfig) internalSession {
	return m.Called(ctx, config).Get(0).(internalSession)
}

func (m *MockDriver) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockSession runs the work against tx, or fails with err when set.
type MockSession struct {
	mock.Mock
	tx  Transaction
	err error
}

func (m *MockSession) ExecuteRead(ctx context.Context, work TransactionWork) (any, error) {
	m.Called(ctx)
	if m.err != nil {
		return nil, m.err
	}
	return work(m.tx)
}

func (m *MockSession) ExecuteWrite(ctx context.Context, work TransactionWork) (any, error) {
	m.Called(ctx)
	if m.err != nil {
		return nil, m.err
	}
	return work(m.tx)
}

func (m *MockSession) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type fakeTx struct {
	records []*neo4j.Record
	err     error
}

func (t *fakeTx) Run(context.Context, string, map[string]any) (Result, error) {
	if t.err != nil {
		return nil, t.err
	}
	return &sliceResult{records: t.records}, nil
}

type sliceResult struct {
	records []*neo4j.Record
	pos     int
}

func (r *sliceResult) Next(context.Context) bool {
	if r.pos >= len(r.records) {
		return false
	}
	r.pos++
	return true
}

func (r *sliceResult) Record() *neo4j.Record { return r.records[r.pos-1] }
func (r *sliceResult) Err() error            { return nil }
func (r *sliceResult) Consume(context.Context) (neo4j.ResultSummary, error) {
	return nil, nil
}

func healthRecord() *neo4j.Record {
	return &neo4j.Record{Keys: []string{"health"}, Values: []any{int64(1)}}
}

func TestDriver_HealthCheck(t *testing.T) {
	md := new(MockDriver)
	ms := &MockSession{tx: &fakeTx{records: []*neo4j.Record{healthRecord()}}}
	d := newDriver(md, Neo4jConfig{}, logging.NewNopLogger())

	md.On("VerifyConnectivity", mock.Anything).Return(nil)
	md.On("NewSession", mock.Anything, neo4j.SessionConfig{
		DatabaseName: defaultDatabase,
		AccessMode:   neo4j.AccessModeRead,
	}).Return(ms)
	ms.On("ExecuteRead", mock.Anything).Return()
	ms.On("Close", mock.Anything).Return(nil)

	require.NoError(t, d.HealthCheck(context.Background()))
	md.AssertExpectations(t)
	ms.AssertExpectations(t)
}

func TestDriver_HealthCheck_Unreachable(t *testing.T) {
	md := new(MockDriver)
	d := newDriver(md, Neo4jConfig{}, logging.NewNopLogger())
	md.On("VerifyConnectivity", mock.Anything).Return(stderrors.New("dial tcp: refused"))

	err := d.HealthCheck(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))
	md.AssertNotCalled(t, "NewSession", mock.Anything, mock.Anything)
}

func TestDriver_ExecuteWrite_UsesConfiguredDatabase(t *testing.T) {
	md := new(MockDriver)
	ms := &MockSession{tx: &fakeTx{}}
	d := newDriver(md, Neo4jConfig{Database: "xas"}, logging.NewNopLogger())

	md.On("NewSession", mock.Anything, neo4j.SessionConfig{
		DatabaseName: "xas",
		AccessMode:   neo4j.AccessModeWrite,
	}).Return(ms)
	ms.On("ExecuteWrite", mock.Anything).Return()
	ms.On("Close", mock.Anything).Return(nil)

	got, err := d.ExecuteWrite(context.Background(), func(tx Transaction) (any, error) {
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", got)
	md.AssertExpectations(t)
}

func TestDriver_ExecuteRead_WrapsFailure(t *testing.T) {
	md := new(MockDriver)
	ms := &MockSession{err: stderrors.New("session expired")}
	d := newDriver(md, Neo4jConfig{}, logging.NewNopLogger())

	md.On("NewSession", mock.Anything, mock.Anything).Return(ms)
	ms.On("ExecuteRead", mock.Anything).Return()
	ms.On("Close", mock.Anything).Return(nil)

	_, err := d.ExecuteRead(context.Background(), func(tx Transaction) (any, error) {
		return nil, nil
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))
	ms.AssertCalled(t, "Close", mock.Anything)
}

func TestDriver_CloseOnce(t *testing.T) {
	md := new(MockDriver)
	d := newDriver(md, Neo4jConfig{}, logging.NewNopLogger())
	md.On("Close", mock.Anything).Return(nil).Once()

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	md.AssertNumberOfCalls(t, "Close", 1)
}

func TestExtractSingleRecord_Empty(t *testing.T) {
	_, err := ExtractSingleRecord(context.Background(), &sliceResult{}, func(r *neo4j.Record) (int, error) {
		return 0, nil
	})
	assert.True(t, errors.IsNotFound(err))
}

func TestCollectRecords(t *testing.T) {
	res := &sliceResult{records: []*neo4j.Record{
		{Keys: []string{"id"}, Values: []any{"a"}},
		{Keys: []string{"id"}, Values: []any{"b"}},
	}}
	ids, err := CollectRecords(context.Background(), res, func(r *neo4j.Record) (string, error) {
		v, _ := r.Get("id")
		return v.(string), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}
